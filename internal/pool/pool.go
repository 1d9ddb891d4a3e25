// Package pool provides a lazily filled pool of per-worker clients and a limiter for blocking vendor calls
package pool

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("pool is closed")

// Pool hands every concurrent worker its own T. Clients are created on demand
// up to size and are never used by two workers at the same time.
type Pool[T any] struct {
	mu      sync.Mutex
	idle    chan T
	slots   chan struct{}
	newFn   func(ctx context.Context) (T, error)
	closeFn func(T) error
	closed  bool
}

func New[T any](size int, newFn func(ctx context.Context) (T, error), closeFn func(T) error) *Pool[T] {
	if size <= 0 {
		size = 1
	}
	return &Pool[T]{
		idle:    make(chan T, size),
		slots:   make(chan struct{}, size),
		newFn:   newFn,
		closeFn: closeFn,
	}
}

// Acquire returns an idle client or creates a new one while there is a free slot,
// otherwise waits for a release.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T
	if p.isClosed() {
		return zero, ErrPoolClosed
	}

	select {
	case c := <-p.idle:
		return c, nil
	default:
	}

	select {
	case c := <-p.idle:
		return c, nil
	case p.slots <- struct{}{}:
		c, err := p.newFn(ctx)
		if err != nil {
			<-p.slots
			return zero, err
		}
		return c, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Release puts the client back; after Close the client is closed right away
func (p *Pool[T]) Release(c T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.closeOne(c)
		<-p.slots
		return
	}
	p.idle <- c
}

// With runs fn on a borrowed client. Clients hold no per-call state,
// so the client goes back to the pool even when fn fails.
func (p *Pool[T]) With(ctx context.Context, fn func(T) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(c)
	return fn(c)
}

// Close closes idle clients; busy ones are closed on release
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for {
		select {
		case c := <-p.idle:
			if err := p.closeOne(c); err != nil {
				errs = append(errs, err)
			}
			<-p.slots
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *Pool[T]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool[T]) closeOne(c T) error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn(c)
}
