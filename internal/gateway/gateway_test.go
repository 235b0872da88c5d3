package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roasbeef/skylark/internal/model"
	"github.com/stretchr/testify/require"
)

// fakeConnector records thread selections.
type fakeConnector struct {
	mu       sync.Mutex
	selected []string
	err      error
}

func (f *fakeConnector) OnThreadSelected(_ context.Context,
	threadID string) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.selected = append(f.selected, threadID)

	return nil
}

func (f *fakeConnector) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.selected...)
}

// frame is the decoded shape of one gateway frame.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(
		time.Now().Add(3*time.Second),
	))

	var f frame
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &f))

	return f
}

// startGateway spins up a hub behind an httptest server and dials it.
func startGateway(t *testing.T,
	connector Connector) (*Hub, *websocket.Conn) {

	t.Helper()

	hub := NewHub(Config{
		Connector: connector,
		CurrentUser: model.User{
			ID:       "me",
			Username: "self",
			FullName: "Ana Dev",
		},
	})
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Connection handshake frame arrives first.
	connected := readFrame(t, conn)
	require.Equal(t, MsgTypeConnected, connected.Type)

	var payload struct {
		User model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(connected.Payload, &payload))
	require.Equal(t, "me", payload.User.ID)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	return hub, conn
}

func TestBroadcastEvents(t *testing.T) {
	t.Parallel()

	hub, conn := startGateway(t, &fakeConnector{})

	hub.BroadcastEvents([]model.Event{
		&model.MessageUpsert{
			ThreadID: "t1",
			Messages: []model.Message{{ID: "m1", Text: "hi"}},
		},
		&model.ThreadDelete{ThreadIDs: []string{"t2"}},
	})

	f := readFrame(t, conn)
	require.Equal(t, MsgTypeEvents, f.Type)

	var envelopes []struct {
		Type  string          `json:"type"`
		Event json.RawMessage `json:"event"`
	}
	require.NoError(t, json.Unmarshal(f.Payload, &envelopes))
	require.Len(t, envelopes, 2)

	require.Equal(t, "message_upsert", envelopes[0].Type)
	require.Equal(t, "thread_delete", envelopes[1].Type)

	var upsert model.MessageUpsert
	require.NoError(t, json.Unmarshal(envelopes[0].Event, &upsert))
	require.Equal(t, "t1", upsert.ThreadID)
	require.Len(t, upsert.Messages, 1)
	require.Equal(t, "m1", upsert.Messages[0].ID)
}

func TestSelectThreadCommand(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{}
	_, conn := startGateway(t, connector)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "select_thread",
		"data": map[string]any{"thread_id": "t1"},
	}))

	f := readFrame(t, conn)
	require.Equal(t, MsgTypeSelected, f.Type)

	var ack struct {
		ThreadID string `json:"thread_id"`
	}
	require.NoError(t, json.Unmarshal(f.Payload, &ack))
	require.Equal(t, "t1", ack.ThreadID)

	require.Equal(t, []string{"t1"}, connector.all())
}

func TestPingPong(t *testing.T) {
	t.Parallel()

	_, conn := startGateway(t, &fakeConnector{})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))

	f := readFrame(t, conn)
	require.Equal(t, MsgTypePong, f.Type)
}

func TestUnknownCommandRejected(t *testing.T) {
	t.Parallel()

	_, conn := startGateway(t, &fakeConnector{})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "launch"}))

	f := readFrame(t, conn)
	require.Equal(t, MsgTypeError, f.Type)

	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(f.Payload, &payload))
	require.Contains(t, payload.Message, "unknown message type")
}

func TestDisconnectDropsClient(t *testing.T) {
	t.Parallel()

	hub, conn := startGateway(t, &fakeConnector{})

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 3*time.Second, 10*time.Millisecond)
}
