package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promise is the single implementation of both the Promise and Future
// interfaces. Completion is signalled by closing the done channel, so any
// number of goroutines may Await the same future.
type promise[T any] struct {
	// done is closed exactly once, after result has been set.
	done chan struct{}

	// result holds the completed value. Only valid after done is closed.
	result fn.Result[T]

	// once guards the transition from pending to completed.
	once sync.Once
}

// NewPromise creates a new unfulfilled promise.
func NewPromise[T any]() Promise[T] {
	return &promise[T]{
		done: make(chan struct{}),
	}
}

// Future returns the Future associated with this promise.
func (p *promise[T]) Future() Future[T] {
	return p
}

// Complete attempts to set the result of the future. Only the first call has
// any effect; it returns true if this call set the result.
func (p *promise[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		completed = true
	})

	return completed
}

// Await blocks until the result is available or the context is cancelled.
func (p *promise[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}
