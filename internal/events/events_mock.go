package events

import (
	"context"

	"github.com/UnendingLoop/ImageGenAPI/internal/model"
	"github.com/wb-go/wbf/retry"
)

type publisherMock struct {
	SendWithRetryFn func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

func (m *publisherMock) SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
	return m.SendWithRetryFn(ctx, strategy, key, v)
}

type repoMock struct {
	CreateFn  func(ctx context.Context, rec *model.OperationRecord) error
	GetListFn func(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error)
}

func (m *repoMock) Create(ctx context.Context, rec *model.OperationRecord) error {
	return m.CreateFn(ctx, rec)
}

func (m *repoMock) GetList(ctx context.Context, req *model.ListRequest) ([]model.OperationRecord, error) {
	return m.GetListFn(ctx, req)
}
