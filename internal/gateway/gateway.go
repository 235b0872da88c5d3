// Package gateway bridges the connector to host processes over a local
// websocket endpoint. Canonical event batches fan out to every connected
// host; hosts steer the connector back with small JSON commands (thread
// selection, ping).
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roasbeef/skylark/internal/model"
)

// Websocket frame types sent to hosts.
const (
	MsgTypeConnected = "connected"
	MsgTypeEvents    = "events"
	MsgTypePong      = "pong"
	MsgTypeSelected  = "thread_selected"
	MsgTypeError     = "error"
)

// Message is one websocket frame exchanged with a host.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// EventEnvelope tags a canonical event with its variant name so hosts can
// decode the union.
type EventEnvelope struct {
	Type  string      `json:"type"`
	Event model.Event `json:"event"`
}

// Connector is the slice of the session surface the gateway drives.
// *session.Session is the production implementation.
type Connector interface {
	OnThreadSelected(ctx context.Context, threadID string) error
}

// Config parameterizes a Hub.
type Config struct {
	// Connector receives host commands.
	Connector Connector

	// CurrentUser is echoed to hosts on connect.
	CurrentUser model.User
}

// Hub maintains the set of connected hosts and fans event batches out to
// them. Register, unregister and broadcast all funnel through the Run
// loop.
type Hub struct {
	cfg Config

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan *Message

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a stopped hub. Run starts the fan-out loop.
func NewHub(cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		cfg:        cfg,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan *Message, 256),
		clients:    make(map[*wsClient]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run is the hub's main loop. It returns when Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
			}
			h.mu.Unlock()

			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()

			log.Infof("Host connected (total=%d)", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()

			log.Infof("Host disconnected (total=%d)", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				client.send(msg)
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts the hub down, disconnecting every host.
func (h *Hub) Stop() {
	h.cancel()
}

// BroadcastEvents fans one canonical event batch out to every host.
func (h *Hub) BroadcastEvents(events []model.Event) {
	if len(events) == 0 {
		return
	}

	envelopes := make([]EventEnvelope, 0, len(events))
	for _, ev := range events {
		envelopes = append(envelopes, EventEnvelope{
			Type:  ev.EventType(),
			Event: ev,
		})
	}

	select {
	case h.broadcast <- &Message{
		Type:    MsgTypeEvents,
		Payload: envelopes,
	}:
	default:
		log.Warnf("Broadcast buffer full, dropping %d events",
			len(events))
	}
}

// ClientCount returns the number of connected hosts.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// upgrader accepts local connections only; the gateway is a loopback
// bridge, not a public endpoint.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		return strings.Contains(origin, "://localhost") ||
			strings.Contains(origin, "://127.0.0.1")
	},
}

// Handler returns the websocket endpoint handler.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(h.handleWS)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Websocket upgrade failed: %v", err)

		return
	}

	client := newWSClient(h, conn)
	h.register <- client

	client.send(&Message{
		Type: MsgTypeConnected,
		Payload: map[string]any{
			"user": h.cfg.CurrentUser,
			"time": time.Now().UTC().Format(time.RFC3339),
		},
	})

	go client.writePump()
	go client.readPump()
}

// handleIncoming dispatches one frame read from a host.
func (h *Hub) handleIncoming(client *wsClient, messageType int,
	data []byte) {

	if messageType != websocket.TextMessage {
		return
	}

	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		client.send(&Message{
			Type: MsgTypeError,
			Payload: map[string]any{
				"message": "invalid message format",
			},
		})

		return
	}

	switch msg.Type {
	case "ping":
		client.send(&Message{
			Type: MsgTypePong,
			Payload: map[string]any{
				"time": time.Now().UTC().Format(time.RFC3339),
			},
		})

	case "select_thread":
		var sel struct {
			ThreadID string `json:"thread_id"`
		}
		if err := json.Unmarshal(msg.Data, &sel); err != nil {
			client.send(&Message{
				Type: MsgTypeError,
				Payload: map[string]any{
					"message": "invalid select_thread " +
						"payload",
				},
			})

			return
		}

		ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
		defer cancel()

		if err := h.cfg.Connector.OnThreadSelected(
			ctx, sel.ThreadID,
		); err != nil {
			log.Warnf("Thread selection failed: %v", err)
			client.send(&Message{
				Type: MsgTypeError,
				Payload: map[string]any{
					"message": err.Error(),
				},
			})

			return
		}

		client.send(&Message{
			Type: MsgTypeSelected,
			Payload: map[string]any{
				"thread_id": sel.ThreadID,
			},
		})

	default:
		client.send(&Message{
			Type: MsgTypeError,
			Payload: map[string]any{
				"message": "unknown message type: " + msg.Type,
			},
		})
	}
}
