package hub

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients are local tools and browser pages; the transport carries no
	// credentials, so cross-origin upgrades are accepted.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades the request to a WebSocket connection and attaches it to
// the hub. The connection receives every subsequent broadcast until it
// disconnects or the hub closes.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error response.
			opsf("upgrade from %s: %v", r.RemoteAddr, err)
			return
		}

		c := &client{
			id:   randomID(),
			conn: conn,
			send: make(chan []byte, sendBufferSize),
		}
		if !h.add(c) {
			conn.Close()
			return
		}

		go c.writePump(h)
		c.readPump(h)
	}
}
