// Package actor implements a small actor runtime: each actor owns a mailbox
// and processes messages sequentially on a dedicated goroutine. All state a
// behavior touches is therefore mutated from exactly one goroutine, which
// removes the need for locking inside behaviors entirely.
package actor

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrActorTerminated indicates that an operation failed because the target
// actor was terminated or in the process of shutting down.
var ErrActorTerminated = errors.New("actor terminated")

// BaseMessage is a helper struct that can be embedded in message types defined
// outside the actor package to satisfy the Message interface's unexported
// marker method.
type BaseMessage struct{}

// messageMarker implements the unexported method of the Message interface.
func (BaseMessage) messageMarker() {}

// Message is a sealed interface for actor messages. The interface is sealed by
// the unexported messageMarker method, so only types embedding BaseMessage (or
// defined in this package) can be Messages.
type Message interface {
	// messageMarker is a private method that makes this a sealed interface
	// (see BaseMessage for embedding).
	messageMarker()

	// MessageType returns the type name of the message for routing and
	// log filtering.
	MessageType() string
}

// Future represents the result of an asynchronous computation.
type Future[T any] interface {
	// Await blocks until the result is available or the context is
	// cancelled, then returns it.
	Await(ctx context.Context) fn.Result[T]
}

// Promise allows the producer of an asynchronous result to complete the
// associated Future. Consumers hold the Future, producers the Promise.
type Promise[T any] interface {
	// Future returns the Future associated with this Promise.
	Future() Future[T]

	// Complete attempts to set the result of the future. It returns true
	// if this call was the first to complete it.
	Complete(result fn.Result[T]) bool
}

// TellOnlyRef is a reference to an actor that only supports fire-and-forget
// message passing. Handing one out restricts the holder's capabilities.
type TellOnlyRef[M Message] interface {
	// ID returns the unique identifier for this actor.
	ID() string

	// Tell sends a message without waiting for a response. If the context
	// is cancelled before the message reaches the mailbox, the message is
	// dropped.
	Tell(ctx context.Context, msg M)
}

// ActorRef is a reference to an actor that supports both "tell" and "ask"
// operations.
type ActorRef[M Message, R any] interface {
	TellOnlyRef[M]

	// Ask sends a message and returns a Future for the response.
	Ask(ctx context.Context, msg M) Future[R]
}

// Behavior defines how an actor processes incoming messages. The context
// passed to Receive is the actor's lifecycle context; it cancels when the
// actor is stopped.
type Behavior[M Message, R any] interface {
	// Receive processes a single message and returns its result. Receive
	// is never invoked concurrently with itself.
	Receive(ctx context.Context, msg M) fn.Result[R]
}

// Stoppable is an optional interface a Behavior can implement to release
// external resources when its actor shuts down. OnStop runs after the message
// loop exits, before the actor goroutine terminates.
type Stoppable interface {
	OnStop(ctx context.Context) error
}

// BehaviorFunc adapts a plain function to the Behavior interface.
type BehaviorFunc[M Message, R any] func(ctx context.Context, msg M) fn.Result[R]

// Receive implements Behavior.
func (f BehaviorFunc[M, R]) Receive(ctx context.Context,
	msg M) fn.Result[R] {

	return f(ctx, msg)
}
