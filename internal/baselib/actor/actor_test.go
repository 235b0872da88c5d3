package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// echoMsg is a simple test message carrying a payload to echo back.
type echoMsg struct {
	BaseMessage
	payload string
}

func (m *echoMsg) MessageType() string { return "echo" }

// echoBehavior replies with the message payload, tracking how many messages
// it has seen.
type echoBehavior struct {
	seen      int
	stopped   bool
	stopErr   error
	onReceive func()
}

func (b *echoBehavior) Receive(_ context.Context,
	msg *echoMsg) fn.Result[string] {

	b.seen++
	if b.onReceive != nil {
		b.onReceive()
	}

	return fn.Ok(msg.payload)
}

func (b *echoBehavior) OnStop(_ context.Context) error {
	b.stopped = true
	return b.stopErr
}

func newEchoActor(t *testing.T,
	behavior *echoBehavior) (*Actor[*echoMsg, string], *sync.WaitGroup) {

	t.Helper()

	var wg sync.WaitGroup
	a := New(Config[*echoMsg, string]{
		ID:          "echo",
		Behavior:    behavior,
		MailboxSize: 8,
		Wg:          &wg,
	})
	a.Start()

	return a, &wg
}

// TestActorAsk verifies the request/response round trip through the mailbox.
func TestActorAsk(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{}
	a, wg := newEchoActor(t, behavior)
	defer func() {
		a.Stop()
		wg.Wait()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	future := a.Ref().Ask(ctx, &echoMsg{payload: "hello"})
	result := future.Await(ctx)

	reply, err := result.Unpack()
	require.NoError(t, err)
	require.Equal(t, "hello", reply)
}

// TestActorTell verifies fire-and-forget delivery.
func TestActorTell(t *testing.T) {
	t.Parallel()

	processed := make(chan struct{}, 1)
	behavior := &echoBehavior{
		onReceive: func() {
			processed <- struct{}{}
		},
	}
	a, wg := newEchoActor(t, behavior)
	defer func() {
		a.Stop()
		wg.Wait()
	}()

	ctx := context.Background()
	a.Ref().Tell(ctx, &echoMsg{payload: "fire"})

	select {
	case <-processed:
	case <-time.After(time.Second):
		t.Fatal("message was not processed")
	}
}

// TestActorSequentialProcessing verifies that messages are handled one at a
// time in send order.
func TestActorSequentialProcessing(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{}
	a, wg := newEchoActor(t, behavior)
	defer func() {
		a.Stop()
		wg.Wait()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	const n = 50
	futures := make([]Future[string], 0, n)
	for i := 0; i < n; i++ {
		futures = append(futures, a.Ref().Ask(ctx, &echoMsg{
			payload: "m",
		}))
	}
	for _, f := range futures {
		_, err := f.Await(ctx).Unpack()
		require.NoError(t, err)
	}

	require.Equal(t, n, behavior.seen)
}

// TestActorAskAfterStop verifies that asks against a stopped actor fail with
// ErrActorTerminated instead of hanging.
func TestActorAskAfterStop(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{}
	a, wg := newEchoActor(t, behavior)

	a.Stop()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	future := a.Ref().Ask(ctx, &echoMsg{payload: "late"})
	_, err := future.Await(ctx).Unpack()
	require.ErrorIs(t, err, ErrActorTerminated)
}

// TestActorStopInvokesCleanup verifies that Stoppable behaviors get their
// OnStop hook during shutdown, including when cleanup errors.
func TestActorStopInvokesCleanup(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{
		stopErr: errors.New("cleanup failed"),
	}
	a, wg := newEchoActor(t, behavior)

	a.Stop()
	wg.Wait()

	require.True(t, behavior.stopped)
}

// TestActorStopIdempotent verifies repeated Stop calls are safe.
func TestActorStopIdempotent(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{}
	a, wg := newEchoActor(t, behavior)

	a.Stop()
	a.Stop()
	a.Stop()
	wg.Wait()
}

// TestSystemShutdown verifies that the system stops registered actors and
// waits for their goroutines.
func TestSystemShutdown(t *testing.T) {
	t.Parallel()

	system := NewActorSystem()

	behavior := &echoBehavior{}
	a := New(Config[*echoMsg, string]{
		ID:          "sys-echo",
		Behavior:    behavior,
		MailboxSize: 4,
		Wg:          system.WaitGroup(),
	})
	ref := Register(system, a)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ref.Ask(ctx, &echoMsg{payload: "x"}).Await(ctx).Unpack()
	require.NoError(t, err)

	require.NoError(t, system.Shutdown(ctx))
	require.True(t, behavior.stopped)
}

// TestFutureAwaitCancellation verifies that awaiting a future respects caller
// context cancellation.
func TestFutureAwaitCancellation(t *testing.T) {
	t.Parallel()

	p := NewPromise[string]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Future().Await(ctx).Unpack()
	require.ErrorIs(t, err, context.Canceled)
}
