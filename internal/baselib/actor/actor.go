package actor

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// defaultCleanupTimeout bounds how long a Stoppable behavior may spend in
// OnStop during shutdown.
const defaultCleanupTimeout = 5 * time.Second

// Config holds the parameters for creating a new Actor.
type Config[M Message, R any] struct {
	// ID is the unique identifier for the actor.
	ID string

	// Behavior defines how the actor responds to messages.
	Behavior Behavior[M, R]

	// MailboxSize is the buffer capacity of the actor's mailbox.
	MailboxSize int

	// Wg, if non-nil, tracks the actor goroutine: Add(1) on Start, Done()
	// when the process loop exits. Used for deterministic shutdown.
	Wg *sync.WaitGroup

	// CleanupTimeout bounds OnStop cleanup. Zero means the default.
	CleanupTimeout time.Duration
}

// Actor processes messages from its mailbox sequentially in its own
// goroutine. State held by the behavior is only ever touched from that
// goroutine.
type Actor[M Message, R any] struct {
	id       string
	behavior Behavior[M, R]
	mailbox  *mailbox[M, R]

	// ctx governs the actor's lifecycle; cancel stops the process loop.
	ctx    context.Context
	cancel context.CancelFunc

	wg             *sync.WaitGroup
	cleanupTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once

	ref ActorRef[M, R]
}

// New creates a new actor. Start must be called to begin processing.
func New[M Message, R any](cfg Config[M, R]) *Actor[M, R] {
	ctx, cancel := context.WithCancel(context.Background())

	cleanup := cfg.CleanupTimeout
	if cleanup == 0 {
		cleanup = defaultCleanupTimeout
	}

	a := &Actor[M, R]{
		id:             cfg.ID,
		behavior:       cfg.Behavior,
		mailbox:        newMailbox[M, R](ctx, cfg.MailboxSize),
		ctx:            ctx,
		cancel:         cancel,
		wg:             cfg.Wg,
		cleanupTimeout: cleanup,
	}
	a.ref = &actorRef[M, R]{actor: a}

	return a
}

// Start launches the actor's message processing goroutine. Repeated calls are
// no-ops.
func (a *Actor[M, R]) Start() {
	a.startOnce.Do(func() {
		log.DebugS(a.ctx, "Starting actor", "actor_id", a.id)

		if a.wg != nil {
			a.wg.Add(1)
		}
		go a.process()
	})
}

// Stop signals the actor to terminate its processing loop. Non-blocking and
// idempotent; pending asks are completed with ErrActorTerminated.
func (a *Actor[M, R]) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
	})
}

// Ref returns a reference that can Tell and Ask this actor.
func (a *Actor[M, R]) Ref() ActorRef[M, R] {
	return a.ref
}

// TellRef returns a reference restricted to fire-and-forget sends.
func (a *Actor[M, R]) TellRef() TellOnlyRef[M] {
	return a.ref
}

// process is the actor's main loop. It drains the mailbox after the lifecycle
// context cancels so pending asks fail deterministically rather than hanging.
func (a *Actor[M, R]) process() {
	if a.wg != nil {
		defer a.wg.Done()
	}

	for env := range a.mailbox.receive(a.ctx) {
		log.TraceS(a.ctx, "Actor processing message",
			"actor_id", a.id,
			"msg_type", env.message.MessageType(),
			"is_ask", env.promise != nil)

		result := a.behavior.Receive(a.ctx, env.message)

		if env.promise != nil {
			env.promise.Complete(result)
		}
	}

	// The lifecycle context has been cancelled. Refuse new sends, then
	// fail any messages that were enqueued before the close.
	a.mailbox.close()

	drained := 0
	for env := range a.mailbox.drain() {
		drained++
		if env.promise != nil {
			env.promise.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	if stoppable, ok := a.behavior.(Stoppable); ok {
		cleanupCtx, cancel := context.WithTimeout(
			context.Background(), a.cleanupTimeout,
		)
		defer cancel()

		if err := stoppable.OnStop(cleanupCtx); err != nil {
			log.WarnS(a.ctx, "Actor cleanup error", err,
				"actor_id", a.id)
		}
	}

	log.DebugS(a.ctx, "Actor terminated",
		"actor_id", a.id,
		"drained_messages", drained)
}

// actorRef is the concrete ActorRef implementation.
type actorRef[M Message, R any] struct {
	actor *Actor[M, R]
}

// ID returns the unique identifier of the referenced actor.
func (r *actorRef[M, R]) ID() string {
	return r.actor.id
}

// Tell sends a message without waiting for a response. Messages that cannot
// be enqueued (cancelled caller, terminated actor) are dropped.
func (r *actorRef[M, R]) Tell(ctx context.Context, msg M) {
	env := envelope[M, R]{
		message:   msg,
		callerCtx: ctx,
	}
	if !r.actor.mailbox.send(ctx, env) {
		log.TraceS(ctx, "Tell dropped",
			"actor_id", r.actor.id,
			"msg_type", msg.MessageType())
	}
}

// Ask sends a message and returns a Future for the response. The future
// completes with ErrActorTerminated if the actor is already stopped.
func (r *actorRef[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	p := NewPromise[R]()

	if r.actor.ctx.Err() != nil {
		p.Complete(fn.Err[R](ErrActorTerminated))
		return p.Future()
	}

	env := envelope[M, R]{
		message:   msg,
		promise:   p,
		callerCtx: ctx,
	}
	if !r.actor.mailbox.send(ctx, env) {
		// Actor termination takes precedence over caller cancellation
		// when reporting why the send failed.
		if r.actor.ctx.Err() != nil {
			p.Complete(fn.Err[R](ErrActorTerminated))
		} else if err := ctx.Err(); err != nil {
			p.Complete(fn.Err[R](err))
		} else {
			p.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	return p.Future()
}
