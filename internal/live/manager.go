// Package live maintains the push channel: a single streaming connection
// whose topic subscriptions are diffed against a server-issued session, kept
// alive ahead of the server's subscription TTL, and re-established whenever
// the connection or the session dies.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/roasbeef/skylark/internal/mapper"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/roasbeef/skylark/internal/wire"
)

const (
	// keepAliveMargin is subtracted from the server TTL when scheduling
	// the subscription refresh, so the refresh lands before expiry.
	keepAliveMargin = 10 * time.Second

	// defaultSubscriptionTTL covers a handshake that omits the TTL.
	defaultSubscriptionTTL = 2 * time.Minute

	// Reconnect backoff bounds. The upstream connection drops routinely;
	// the delay doubles per consecutive failure up to the cap and resets
	// on a successful handshake.
	reconnectBaseDelay = 250 * time.Millisecond
	reconnectMaxDelay  = 30 * time.Second
)

// Config parameterizes a Manager.
type Config struct {
	// Transport drives the network.
	Transport Transport

	// OnEvent receives the canonical events mapped from push frames,
	// currently just typing activity.
	OnEvent func(model.Event)

	// OnUpdatePing is invoked for account-update pings. The frame names
	// the thread but carries no content; the caller reacts by polling.
	OnUpdatePing func(threadID string)
}

// Manager owns one push connection and its subscription state. All state is
// guarded by a single mutex; the frame-reading goroutine and the keep-alive
// timer both serialize through it.
type Manager struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	disposed bool

	stream Stream

	// generation invalidates stale read loops and timers after a
	// teardown.
	generation int

	sessionID string
	ttl       time.Duration

	// topics is the desired subscription set; asserted is the set the
	// server currently knows about. They diverge while no session
	// exists and are reconciled at handshake.
	topics   map[string]struct{}
	asserted map[string]struct{}

	keepAlive      *time.Timer
	reconnectDelay time.Duration
}

// NewManager creates a stopped manager. Start opens the connection.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:            cfg,
		topics:         make(map[string]struct{}),
		asserted:       make(map[string]struct{}),
		reconnectDelay: reconnectBaseDelay,
	}
}

// Start opens the push connection. The manager keeps reconnecting until
// Dispose.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	return m.setupLocked()
}

// setupLocked tears down any existing connection and opens a fresh one
// scoped to the current topic set.
func (m *Manager) setupLocked() error {
	m.teardownLocked()

	m.generation++
	generation := m.generation

	stream, err := m.cfg.Transport.OpenStream(
		m.ctx, topicList(m.topics),
	)
	if err != nil {
		log.WarnS(m.ctx, "Push connection failed to open", err)
		m.scheduleReconnectLocked(generation)

		return err
	}

	m.stream = stream
	m.asserted = cloneTopics(m.topics)

	log.DebugS(m.ctx, "Push connection opened",
		"topics", len(m.topics))

	go m.readLoop(stream, generation)

	return nil
}

// teardownLocked closes the stream and forgets the session. The keep-alive
// timer is cancelled; generation bumping makes any in-flight callbacks
// no-ops.
func (m *Manager) teardownLocked() {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	m.sessionID = ""
	if m.keepAlive != nil {
		m.keepAlive.Stop()
		m.keepAlive = nil
	}
}

// readLoop consumes frames until the stream dies, then schedules a
// reconnect unless the manager was disposed.
func (m *Manager) readLoop(stream Stream, generation int) {
	for frame := range stream.Frames() {
		m.handleFrame(frame, generation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed || generation != m.generation {
		return
	}

	if err := stream.Err(); err != nil {
		log.WarnS(m.ctx, "Push connection lost", err)
	} else {
		log.DebugS(m.ctx, "Push connection closed by server")
	}

	m.scheduleReconnectLocked(generation)
}

func (m *Manager) handleFrame(frame *wire.LiveFrame, generation int) {
	if frame.IsConfig() {
		m.handleConfig(frame.Payload.Config, generation)
		return
	}

	if ping := frame.Payload.DMUpdate; ping != nil {
		if m.cfg.OnUpdatePing != nil {
			m.cfg.OnUpdatePing(ping.ConversationID.String())
		}
		return
	}

	if event, ok := mapper.MapLiveEvent(frame); ok {
		if m.cfg.OnEvent != nil {
			m.cfg.OnEvent(event)
		}
	}
}

// handleConfig processes the session handshake: stores the session id and
// TTL, arms the keep-alive, and reconciles any topic intent that changed
// while no session existed.
func (m *Manager) handleConfig(config *wire.SessionConfig, generation int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed || generation != m.generation {
		return
	}

	m.sessionID = config.SessionID
	m.ttl = time.Duration(config.SubscriptionTTLMillis) *
		time.Millisecond
	if m.ttl <= 0 {
		m.ttl = defaultSubscriptionTTL
	}
	m.reconnectDelay = reconnectBaseDelay

	log.InfoS(m.ctx, "Push session established",
		"session_id", config.SessionID, "ttl", m.ttl)

	m.scheduleKeepAliveLocked(generation)

	if !topicsEqual(m.topics, m.asserted) {
		m.pushSubscriptionsLocked(generation)
	}
}

// SetSubscriptions replaces the desired topic set. Identical sets (compared
// as unordered values) are a no-op. Without a session the intent is stored
// and asserted at the next handshake.
func (m *Manager) SetSubscriptions(topics []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil
	}

	next := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		next[topic] = struct{}{}
	}

	if topicsEqual(next, m.topics) {
		return nil
	}
	m.topics = next

	if m.sessionID == "" {
		// No session to talk to yet; the handshake reconciles.
		return nil
	}

	return m.pushSubscriptionsLocked(m.generation)
}

// pushSubscriptionsLocked diffs desired vs asserted topics against the
// current session. A dead session triggers exactly one re-setup; the
// desired set is then asserted by the fresh connection itself.
func (m *Manager) pushSubscriptionsLocked(generation int) error {
	var sub, unsub []string
	for topic := range m.topics {
		if _, ok := m.asserted[topic]; !ok {
			sub = append(sub, topic)
		}
	}
	for topic := range m.asserted {
		if _, ok := m.topics[topic]; !ok {
			unsub = append(unsub, topic)
		}
	}

	err := m.cfg.Transport.UpdateSubscriptions(
		m.ctx, m.sessionID, sub, unsub,
	)
	if err != nil {
		if wire.IsSessionNotFound(err) {
			log.InfoS(m.ctx, "Push session expired, "+
				"re-establishing",
				"session_id", m.sessionID)

			return m.setupLocked()
		}

		log.WarnS(m.ctx, "Subscription update failed", err,
			"sub", len(sub), "unsub", len(unsub))

		return err
	}

	m.asserted = cloneTopics(m.topics)
	m.scheduleKeepAliveLocked(generation)

	return nil
}

// scheduleKeepAliveLocked arms the TTL refresh timer. Rescheduled on every
// subscription change; an expired session discovered by the refresh
// triggers a reconnect.
func (m *Manager) scheduleKeepAliveLocked(generation int) {
	if m.keepAlive != nil {
		m.keepAlive.Stop()
	}

	delay := m.ttl - keepAliveMargin
	if delay <= 0 {
		delay = m.ttl / 2
	}

	m.keepAlive = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.disposed || generation != m.generation ||
			m.sessionID == "" {

			return
		}

		log.TraceS(m.ctx, "Refreshing push subscriptions",
			"session_id", m.sessionID)

		// Re-asserting the full current set renews the TTL.
		err := m.cfg.Transport.UpdateSubscriptions(
			m.ctx, m.sessionID, topicList(m.topics), nil,
		)
		switch {
		case wire.IsSessionNotFound(err):
			_ = m.setupLocked()
			return

		case err != nil:
			log.WarnS(m.ctx, "Keep-alive refresh failed", err)
		}

		m.scheduleKeepAliveLocked(generation)
	})
}

// scheduleReconnectLocked arms a capped exponential backoff before the next
// setup attempt.
func (m *Manager) scheduleReconnectLocked(generation int) {
	delay := m.reconnectDelay
	m.reconnectDelay = min(m.reconnectDelay*2, reconnectMaxDelay)

	log.DebugS(m.ctx, "Scheduling push reconnect", "delay", delay)

	time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.disposed || generation != m.generation {
			return
		}

		_ = m.setupLocked()
	})
}

// Dispose closes the connection and cancels all timers. Idempotent; any
// outstanding callbacks become no-ops.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return
	}
	m.disposed = true
	m.generation++

	m.teardownLocked()
	if m.cancel != nil {
		m.cancel()
	}

	log.DebugS(context.Background(), "Push manager disposed")
}

func topicList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for topic := range set {
		out = append(out, topic)
	}

	return out
}

func cloneTopics(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for topic := range set {
		out[topic] = struct{}{}
	}

	return out
}

func topicsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for topic := range a {
		if _, ok := b[topic]; !ok {
			return false
		}
	}

	return true
}
