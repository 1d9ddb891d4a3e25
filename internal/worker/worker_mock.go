package worker

import (
	"context"
	"sync"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	kafkago "github.com/segmentio/kafka-go"
)

type mockStore struct {
	createFn func(ctx context.Context, rec *model.OperationRecord) error
}

func (m *mockStore) Create(ctx context.Context, rec *model.OperationRecord) error {
	return m.createFn(ctx, rec)
}

//----------------------------------

type mockCommitter struct {
	mu      sync.Mutex
	offsets []int64
}

func (m *mockCommitter) Commit(_ context.Context, msg kafkago.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets = append(m.offsets, msg.Offset)
	return nil
}

func (m *mockCommitter) committed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.offsets...)
}
