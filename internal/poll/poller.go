// Package poll drives the cursor-based update stream: a single-flight timer
// loop whose cadence adapts to what the last fetch came back with. It is
// the reliability fallback behind the push channel and the only delivery
// path for feeds the push channel does not carry.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/roasbeef/skylark/internal/wire"
)

const (
	// defaultShortInterval is the cadence while polling is healthy and
	// while waiting for the initial cursor.
	defaultShortInterval = 8 * time.Second

	// defaultLongInterval is the cadence after a fetch failed for any
	// reason other than rate limiting.
	defaultLongInterval = 60 * time.Second
)

// Config parameterizes a Poller.
type Config struct {
	// Fetch performs one poll at the given cursor and returns the next
	// cursor. Returning an empty next cursor keeps the current one.
	// Event emission happens inside Fetch; the poller only paces it.
	Fetch func(ctx context.Context, cursor string) (string, error)

	// ShortInterval overrides the healthy cadence.
	ShortInterval time.Duration

	// LongInterval overrides the failure cadence.
	LongInterval time.Duration
}

// Poller is a single-flight poll loop. One fetch is in flight at a time;
// the next tick is scheduled only after the previous fetch finished, so a
// slow network call never stacks cycles.
type Poller struct {
	cfg Config

	cancel context.CancelFunc

	// poke wakes the loop early. Buffered so a burst of pokes collapses
	// into one extra cycle.
	poke chan struct{}

	mu       sync.Mutex
	cursor   string
	disposed bool

	startOnce   sync.Once
	disposeOnce sync.Once
}

// NewPoller creates a stopped poller.
func NewPoller(cfg Config) *Poller {
	if cfg.ShortInterval <= 0 {
		cfg.ShortInterval = defaultShortInterval
	}
	if cfg.LongInterval <= 0 {
		cfg.LongInterval = defaultLongInterval
	}

	return &Poller{
		cfg:  cfg,
		poke: make(chan struct{}, 1),
	}
}

// Start launches the poll loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		loopCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel

		go p.run(loopCtx)
	})
}

// SetCursor installs the resume cursor. Until one is known the loop idles
// without touching the network.
func (p *Poller) SetCursor(cursor string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cursor = cursor
}

// Cursor returns the current resume cursor.
func (p *Poller) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cursor
}

// Poke schedules an immediate cycle, collapsing with any poke already
// pending. Used when the push channel hints that something changed.
func (p *Poller) Poke() {
	select {
	case p.poke <- struct{}{}:
	default:
	}
}

// Dispose stops the loop. Idempotent; a fetch already in flight finishes
// but its result is discarded.
func (p *Poller) Dispose() {
	p.disposeOnce.Do(func() {
		p.mu.Lock()
		p.disposed = true
		p.mu.Unlock()

		if p.cancel != nil {
			p.cancel()
		}
	})
}

// run is the loop body. The timer is rearmed after every cycle without
// exception: a failed cycle changes the delay, never stops the loop.
func (p *Poller) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:

		case <-p.poke:
			// Collapse the pending tick so poke does not double
			// up with it.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		delay := p.cycle(ctx)

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(delay)
	}
}

// cycle performs at most one fetch and returns the delay before the next
// one.
func (p *Poller) cycle(ctx context.Context) time.Duration {
	p.mu.Lock()
	cursor := p.cursor
	disposed := p.disposed
	p.mu.Unlock()

	if disposed {
		return p.cfg.LongInterval
	}

	// Nothing to resume from yet. Not an error; check again shortly.
	if cursor == "" {
		return p.cfg.ShortInterval
	}

	next, err := p.cfg.Fetch(ctx, cursor)
	if err != nil {
		return p.delayForError(ctx, err)
	}

	if next != "" && next != cursor {
		p.mu.Lock()
		// Dispose may have raced the fetch; do not resurrect state.
		if !p.disposed {
			p.cursor = next
		}
		p.mu.Unlock()
	}

	return p.cfg.ShortInterval
}

// delayForError classifies a failed fetch into a next-tick delay. Rate
// limits wait out the server's reset deadline; everything else falls back
// to the long interval, with connectivity loss kept out of the logs.
func (p *Poller) delayForError(ctx context.Context,
	err error) time.Duration {

	if resetAt, ok := wire.RateLimitReset(err); ok {
		delay := time.Until(resetAt)
		if delay <= 0 {
			delay = p.cfg.LongInterval
		}

		log.DebugS(ctx, "Poll rate limited",
			"reset_at", resetAt, "delay", delay)

		return delay
	}

	if wire.IsOffline(err) {
		log.DebugS(ctx, "Poll skipped, network offline")

		return p.cfg.LongInterval
	}

	if ctx.Err() != nil {
		return p.cfg.LongInterval
	}

	log.WarnS(ctx, "Poll cycle failed", err)

	return p.cfg.LongInterval
}
