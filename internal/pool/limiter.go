package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of blocking vendor calls running at once
type Limiter struct {
	sem *semaphore.Weighted
}

func NewLimiter(n int) *Limiter {
	if n <= 0 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n))}
}

// Do waits for a free slot (or ctx cancellation) and runs fn
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if l == nil {
		return fn()
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return fn()
}
