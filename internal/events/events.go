// Package events publishes completed operations to the history ledger
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/UnendingLoop/ImageGenAPI/internal/repository"
	"github.com/wb-go/wbf/retry"
)

// Recorder - контракт записи операции в историю
type Recorder interface {
	Record(ctx context.Context, rec model.OperationRecord) error
}

// Publisher - то, что нужно от wbf/kafka.Producer
type Publisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// Стратегия ретрая отправки в очередь
var publishStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    500 * time.Millisecond,
	Backoff:  2,
}

// KafkaRecorder sends records as JSON keyed by record id; cmd/worker projects them into the ledger
type KafkaRecorder struct {
	pub Publisher
}

func NewKafkaRecorder(pub Publisher) *KafkaRecorder {
	return &KafkaRecorder{pub: pub}
}

func (k *KafkaRecorder) Record(ctx context.Context, rec model.OperationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal operation record: %w", err)
	}
	if err := k.pub.SendWithRetry(ctx, publishStrategy, []byte(rec.ID.String()), payload); err != nil {
		return fmt.Errorf("failed to publish operation record %s: %w", rec.ID, err)
	}
	return nil
}

// RepoRecorder writes straight to the ledger when there is no broker
type RepoRecorder struct {
	repo repository.OperationRepo
}

func NewRepoRecorder(repo repository.OperationRepo) *RepoRecorder {
	return &RepoRecorder{repo: repo}
}

func (r *RepoRecorder) Record(ctx context.Context, rec model.OperationRecord) error {
	return r.repo.Create(ctx, &rec)
}

// Noop - история выключена
type Noop struct{}

func (Noop) Record(context.Context, model.OperationRecord) error { return nil }

// Decode parses a published record
func Decode(payload []byte) (model.OperationRecord, error) {
	var rec model.OperationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("malformed operation record: %w", err)
	}
	return rec, nil
}
