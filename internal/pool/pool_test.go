package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id     int32
	closed atomic.Bool
}

func newCounterPool(size int) (*Pool[*fakeClient], *atomic.Int32) {
	var created atomic.Int32
	p := New(size,
		func(ctx context.Context) (*fakeClient, error) {
			return &fakeClient{id: created.Add(1)}, nil
		},
		func(c *fakeClient) error {
			c.closed.Store(true)
			return nil
		})
	return p, &created
}

func TestPool_ReusesIdleClient(t *testing.T) {
	p, created := newCounterPool(2)
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(c1)

	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.Equal(t, int32(1), created.Load())
}

func TestPool_NoClientSharedBetweenWorkers(t *testing.T) {
	p, created := newCounterPool(3)
	ctx := context.Background()

	var inUse sync.Map
	var wg sync.WaitGroup
	var conflicts atomic.Int32

	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = p.With(ctx, func(c *fakeClient) error {
				if _, loaded := inUse.LoadOrStore(c.id, true); loaded {
					conflicts.Add(1)
				}
				time.Sleep(time.Millisecond)
				inUse.Delete(c.id)
				return nil
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Zero(t, conflicts.Load())
	require.LessOrEqual(t, created.Load(), int32(3))
}

func TestPool_AcquireHonoursContext(t *testing.T) {
	p, _ := newCounterPool(1)

	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_NewFnErrorFreesSlot(t *testing.T) {
	calls := 0
	p := New(1, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("auth failed")
		}
		return calls, nil
	}, nil)

	_, err := p.Acquire(context.Background())
	require.Error(t, err)

	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, c)
}

func TestPool_WithKeepsClientAfterError(t *testing.T) {
	p, created := newCounterPool(1)
	ctx := context.Background()
	boom := errors.New("boom")

	var first *fakeClient
	err := p.With(ctx, func(c *fakeClient) error {
		first = c
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = p.With(ctx, func(c *fakeClient) error {
		require.Same(t, first, c)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), created.Load())
	require.False(t, first.closed.Load())
}

func TestPool_Close(t *testing.T) {
	p, _ := newCounterPool(2)
	ctx := context.Background()

	idle, err := p.Acquire(ctx)
	require.NoError(t, err)
	busy, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(idle)

	require.NoError(t, p.Close())
	require.True(t, idle.closed.Load())
	require.False(t, busy.closed.Load())

	p.Release(busy)
	require.True(t, busy.closed.Load())

	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := NewLimiter(2)
	var running, peak atomic.Int32
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func() error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLimiter_PropagatesError(t *testing.T) {
	l := NewLimiter(1)
	boom := errors.New("boom")
	require.ErrorIs(t, l.Do(context.Background(), func() error { return boom }), boom)
}
