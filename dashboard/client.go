package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	clientBacklog = 32
)

// frame is the wire envelope pushed to dashboard clients.
type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// client is one connected websocket with a buffered outbound queue so a
// slow browser never blocks the broadcast path.
type client struct {
	conn     *websocket.Conn
	outbound chan frame

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:     conn,
		outbound: make(chan frame, clientBacklog),
	}
}

// send queues a frame. A false return means the client is closed or too
// far behind and should be dropped. Queueing happens under the same
// lock as close so a send never races the channel close.
func (c *client) send(frameType string, payload any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.outbound <- frame{Type: frameType, Payload: payload}:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbound)
}

// writePump drains the outbound queue onto the socket.
func (c *client) writePump() {
	defer c.conn.Close()
	for f := range c.outbound {
		data, err := json.Marshal(f)
		if err != nil {
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
