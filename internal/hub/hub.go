// Package hub fans gesture messages out to every connected WebSocket client.
// Delivery is best-effort: each client has a bounded outbound queue and a
// slow or dead client loses messages rather than ever stalling the frame
// loop or its peers.
package hub

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/facecast-labs/facecast/internal/gesture"
)

// sendBufferSize is the per-client outbound queue depth. At 30 fps this
// absorbs about a second of pointer traffic before drops begin.
const sendBufferSize = 32

// Hub is the broadcast registry. Clients come and go on the HTTP side while
// the frame loop publishes; the mutex covers only the registry map, never a
// network write.
type Hub struct {
	clients   map[string]*client
	clientMu  sync.Mutex
	closing   bool
	closingMu sync.Mutex

	dropped uint64 // Messages discarded because a client queue was full
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[string]*client),
	}
}

// randomID generates a random client ID (8 byte random hex encoded value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// add registers a client and returns false if the hub is already closing.
func (h *Hub) add(c *client) bool {
	h.closingMu.Lock()
	closing := h.closing
	h.closingMu.Unlock()
	if closing {
		return false
	}

	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	h.clients[c.id] = c
	diagf("client %s connected (%d total)", c.id, len(h.clients))
	return true
}

// remove unregisters a client and closes its outbound queue. Safe to call
// more than once for the same ID.
func (h *Hub) remove(id string) {
	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.send)
		delete(h.clients, id)
		diagf("client %s disconnected (%d total)", id, len(h.clients))
	}
}

// Broadcast encodes the message once and offers it to every connected
// client. The send to each client is non-blocking: a full queue counts a
// drop and moves on, so per-client ordering is preserved for the messages a
// client does receive.
func (h *Hub) Broadcast(msg gesture.Message) {
	payload, err := msg.Encode()
	if err != nil {
		opsf("encode %s message: %v", msg.Type, err)
		return
	}

	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			c.droppedCount++
			h.dropped++
			tracef("client %s queue full, dropped %s", c.id, msg.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	return len(h.clients)
}

// Dropped returns the total number of messages discarded across all clients
// since the hub was created.
func (h *Hub) Dropped() uint64 {
	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	return h.dropped
}

// Close marks the hub closing, disconnects every client, and leaves the hub
// unusable for new registrations.
func (h *Hub) Close() error {
	h.closingMu.Lock()
	h.closing = true
	h.closingMu.Unlock()

	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	return nil
}
