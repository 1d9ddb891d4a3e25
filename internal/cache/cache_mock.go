package cache

import (
	"context"
	"time"
)

type kvMock struct {
	GetFn               func(ctx context.Context, key string) (string, error)
	SetWithExpirationFn func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

func (m *kvMock) Get(ctx context.Context, key string) (string, error) {
	return m.GetFn(ctx, key)
}

func (m *kvMock) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetWithExpirationFn(ctx, key, value, expiration)
}
