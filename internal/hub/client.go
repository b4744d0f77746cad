package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before being
	// considered dead. Pings go out at pingPeriod to keep healthy
	// connections inside this window.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// maxInboundSize bounds inbound frames. The protocol is one-way; inbound
	// data messages are read only to service control frames and are
	// discarded.
	maxInboundSize = 512
)

// client is one connected WebSocket consumer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	droppedCount uint64
}

// writePump drains the outbound queue onto the connection and keeps the
// connection alive with periodic pings. It exits when the queue is closed by
// the hub or any write fails.
func (c *client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				// Hub closed the queue; say goodbye properly.
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				tracef("client %s write: %v", c.id, err)
				h.remove(c.id)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c.id)
				return
			}
		}
	}
}

// readPump discards inbound traffic while watching for close and answering
// pings. Clients never send application data; the pump exists so control
// frames are processed and disconnects are noticed promptly.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.remove(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				tracef("client %s read: %v", c.id, err)
			}
			return
		}
	}
}
