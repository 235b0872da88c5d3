package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a frame to the host.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the host.
	pongWait = 60 * time.Second

	// pingPeriod paces keep-alive pings. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound command frames.
	maxMessageSize = 4096

	// sendBufferSize is the per-host outbound queue depth.
	sendBufferSize = 256
)

// wsClient is one connected host.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn

	// sendCh carries outbound frames to the write pump.
	sendCh chan *Message

	mu     sync.Mutex
	closed bool
}

func newWSClient(hub *Hub, conn *websocket.Conn) *wsClient {
	return &wsClient{
		hub:    hub,
		conn:   conn,
		sendCh: make(chan *Message, sendBufferSize),
	}
}

// send queues a frame for the host, dropping it if the host is slow.
func (c *wsClient) send(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.sendCh <- msg:
	default:
		log.Warnf("Send buffer full, dropping %q frame", msg.Type)
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// readPump pumps command frames from the host to the hub. One goroutine
// per host.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {

				log.Debugf("Host read error: %v", err)
			}

			return
		}

		c.hub.handleIncoming(c, messageType, data)
	}
}

// writePump pumps queued frames to the host and keeps the connection
// alive. One goroutine per host.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(
					websocket.CloseMessage, []byte{},
				)

				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Warnf("Frame marshal error: %v", err)

				continue
			}

			err = c.conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				log.Debugf("Host write error: %v", err)

				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
