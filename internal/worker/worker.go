// Package worker projects operation events from Kafka into the Postgres ledger
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/events"
	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type OperationStore interface {
	Create(ctx context.Context, rec *model.OperationRecord) error
}

// Committer - подтверждение обработанного сообщения, у wbf-консюмера это Commit
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

var insertStrategy = retry.Strategy{Attempts: 3, Delay: time.Second, Backoff: 2}

type Worker struct {
	store     OperationStore
	queue     <-chan kafkago.Message
	committer Committer
	strategy  retry.Strategy
}

func NewWorkerInstance(store OperationStore, q <-chan kafkago.Message, c Committer) *Worker {
	return &Worker{store: store, queue: q, committer: c, strategy: insertStrategy}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			if err := w.handle(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Str("key", string(msg.Key)).Int64("offset", msg.Offset).Msg("Event processing failed")
				continue
			}
			if err := w.committer.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Msg("Failed to commit queue-message")
			}
		}
	}
}

// handle возвращает ошибку только если сообщение стоит перечитать
func (w *Worker) handle(ctx context.Context, msg kafkago.Message) error {
	rec, err := events.Decode(msg.Value)
	if err != nil {
		// битое сообщение не исправится при повторе - пропускаем с коммитом
		zlog.Logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("Skipping malformed operation event")
		return nil
	}

	err = retry.DoContext(ctx, w.strategy, func() error {
		return w.store.Create(ctx, &rec)
	})
	if err != nil {
		return fmt.Errorf("failed to insert operation %s into ledger: %w", rec.ID, err)
	}
	zlog.Logger.Debug().Str("id", rec.ID.String()).Str("operation", string(rec.Operation)).Msg("Operation recorded")
	return nil
}
