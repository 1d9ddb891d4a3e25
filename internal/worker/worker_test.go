package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func eventMsg(t *testing.T, offset int64, rec model.OperationRecord) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(rec)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(rec.ID.String()), Value: payload, Offset: offset}
}

func runWorker(t *testing.T, store OperationStore, msgs ...kafkago.Message) *mockCommitter {
	t.Helper()
	queue := make(chan kafkago.Message, len(msgs))
	for _, m := range msgs {
		queue <- m
	}
	close(queue)

	c := &mockCommitter{}
	w := NewWorkerInstance(store, queue, c)
	w.strategy = retry.Strategy{Attempts: 2, Delay: time.Millisecond, Backoff: 1}

	done := make(chan struct{})
	go func() {
		w.StartWorker(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after queue was closed")
	}
	return c
}

func TestWorker_RecordsAndCommits(t *testing.T) {
	id := uuid.New()
	var got *model.OperationRecord

	store := &mockStore{createFn: func(_ context.Context, rec *model.OperationRecord) error {
		got = rec
		return nil
	}}

	c := runWorker(t, store, eventMsg(t, 7, model.OperationRecord{ID: id, Operation: model.OpUpscale, Storage: "local"}))

	require.NotNil(t, got)
	require.Equal(t, id, got.ID)
	require.Equal(t, model.OpUpscale, got.Operation)
	require.Equal(t, []int64{7}, c.committed())
}

func TestWorker_MalformedEventIsCommitted(t *testing.T) {
	store := &mockStore{createFn: func(context.Context, *model.OperationRecord) error {
		t.Fatal("store must not be called for malformed event")
		return nil
	}}

	c := runWorker(t, store, kafkago.Message{Value: []byte("{not json"), Offset: 3})
	require.Equal(t, []int64{3}, c.committed())
}

func TestWorker_StoreFailureIsNotCommitted(t *testing.T) {
	calls := 0
	store := &mockStore{createFn: func(context.Context, *model.OperationRecord) error {
		calls++
		return errors.New("db down")
	}}

	c := runWorker(t, store, eventMsg(t, 1, model.OperationRecord{ID: uuid.New(), Operation: model.OpGenerate}))

	require.Equal(t, 2, calls)
	require.Empty(t, c.committed())
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	w := NewWorkerInstance(&mockStore{}, make(chan kafkago.Message), &mockCommitter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		w.StartWorker(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker ignored cancelled context")
	}
}
