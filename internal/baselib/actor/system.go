package actor

import (
	"context"
	"sync"
)

// stoppable is the minimal surface the system needs from a registered actor.
type stoppable interface {
	Stop()
}

// ActorSystem owns a set of actors and coordinates their shutdown. Actors
// register on Start and the system waits for all of their goroutines to exit
// during Shutdown.
type ActorSystem struct {
	mu     sync.Mutex
	actors []stoppable

	wg sync.WaitGroup
}

// NewActorSystem creates an empty actor system.
func NewActorSystem() *ActorSystem {
	return &ActorSystem{}
}

// WaitGroup returns the group that tracks actor goroutines. Pass it as
// Config.Wg when creating actors that belong to this system.
func (s *ActorSystem) WaitGroup() *sync.WaitGroup {
	return &s.wg
}

// Register adds an actor to the system and starts it.
func Register[M Message, R any](s *ActorSystem, a *Actor[M, R]) ActorRef[M, R] {
	s.mu.Lock()
	s.actors = append(s.actors, a)
	s.mu.Unlock()

	a.Start()

	return a.Ref()
}

// Shutdown stops all registered actors and blocks until their goroutines
// exit or the context expires.
func (s *ActorSystem) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	actors := s.actors
	s.actors = nil
	s.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
