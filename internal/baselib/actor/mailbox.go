package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// envelope wraps a message with its associated promise and caller context. A
// nil promise marks a "tell" (fire-and-forget); a non-nil promise marks an
// "ask" whose sender awaits a response.
type envelope[M Message, R any] struct {
	message   M
	promise   Promise[R]
	callerCtx context.Context
}

// mailbox is a channel-backed message queue for a single actor. Send and
// TrySend may be called concurrently; Receive and Drain must only run on the
// actor's own goroutine.
type mailbox[M Message, R any] struct {
	ch chan envelope[M, R]

	// closed flips once when Close runs. Lock-free reads.
	closed atomic.Bool

	// mu prevents sends racing against channel close.
	mu sync.RWMutex

	closeOnce sync.Once

	// actorCtx is the owning actor's lifecycle context. Receives stop when
	// it cancels.
	actorCtx context.Context
}

func newMailbox[M Message, R any](actorCtx context.Context,
	capacity int) *mailbox[M, R] {

	if capacity <= 0 {
		capacity = 1
	}

	return &mailbox[M, R]{
		ch:       make(chan envelope[M, R], capacity),
		actorCtx: actorCtx,
	}
}

// send attempts to enqueue an envelope, blocking until the envelope is
// accepted, the caller's context cancels, or the actor's context cancels. It
// returns true only if the envelope was enqueued.
func (m *mailbox[M, R]) send(ctx context.Context, env envelope[M, R]) bool {
	// Fast-path rejection when either context is already cancelled.
	if ctx.Err() != nil || m.actorCtx.Err() != nil {
		return false
	}

	// Hold the read lock for the whole send so Close (which takes the
	// write lock) cannot close the channel underneath us.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true

	case <-ctx.Done():
		return false

	case <-m.actorCtx.Done():
		return false
	}
}

// receive returns an iterator over envelopes. The iterator blocks when the
// mailbox is empty and stops when the context cancels or the mailbox closes.
func (m *mailbox[M, R]) receive(ctx context.Context) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		for {
			// Check the context before each receive so shutdown is
			// deterministic rather than racing the select.
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// close closes the mailbox, preventing further sends. Idempotent.
func (m *mailbox[M, R]) close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.ch)
	})
}

// drain yields any envelopes still queued after close.
func (m *mailbox[M, R]) drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !m.closed.Load() {
			return
		}

		for {
			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}

			default:
				return
			}
		}
	}
}
