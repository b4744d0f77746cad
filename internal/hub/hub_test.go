package hub

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facecast-labs/facecast/internal/gesture"
)

// queuedClient registers a queue-only client with no connection behind it,
// so broadcast behaviour can be observed without network plumbing.
func queuedClient(t *testing.T, h *Hub) *client {
	t.Helper()
	c := &client{id: randomID(), send: make(chan []byte, sendBufferSize)}
	require.True(t, h.add(c))
	return c
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	h := New()
	defer h.Close()

	clients := []*client{queuedClient(t, h), queuedClient(t, h), queuedClient(t, h)}
	require.Equal(t, 3, h.ClientCount())

	h.Broadcast(gesture.NewMove(0.5234, 0.4821))
	for _, c := range clients {
		select {
		case payload := <-c.send:
			assert.JSONEq(t, `{"type":"move","x":0.5234,"y":0.4821}`, string(payload))
		default:
			t.Fatalf("client %s received nothing", c.id)
		}
	}
}

func TestBroadcastDropsOnFullQueueWithoutBlocking(t *testing.T) {
	h := New()
	defer h.Close()

	slow := queuedClient(t, h)
	healthy := queuedClient(t, h)

	// Saturate the slow client's queue.
	for i := 0; i < sendBufferSize; i++ {
		h.Broadcast(gesture.NewMove(float64(i)/1000, 0.5))
	}
	require.Len(t, slow.send, sendBufferSize)

	// The next broadcast drops for the slow client but still reaches the
	// healthy one, which has been drained.
	for len(healthy.send) > 0 {
		<-healthy.send
	}
	h.Broadcast(gesture.NewClick(0.5, 0.5))

	assert.Equal(t, uint64(1), h.Dropped())
	assert.Equal(t, uint64(1), slow.droppedCount)
	select {
	case payload := <-healthy.send:
		assert.Contains(t, string(payload), `"click"`)
	default:
		t.Fatal("healthy client missed the broadcast")
	}

	// Messages the slow client does receive are still in order.
	first := <-slow.send
	assert.Contains(t, string(first), `"x":0`)
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := New()
	defer h.Close()

	c := queuedClient(t, h)
	h.remove(c.id)
	h.remove(c.id)
	assert.Equal(t, 0, h.ClientCount())
}

func TestCloseRejectsNewClients(t *testing.T) {
	h := New()
	c := queuedClient(t, h)
	require.NoError(t, h.Close())

	assert.Equal(t, 0, h.ClientCount())
	if _, ok := <-c.send; ok {
		t.Fatal("close should close client queues")
	}
	assert.False(t, h.add(&client{id: "late", send: make(chan []byte, 1)}))
}

func TestWebSocketDelivery(t *testing.T) {
	h := New()
	defer h.Close()

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond, "client never registered")

	h.Broadcast(gesture.NewMove(0.5234, 0.4821))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, `{"type":"move","x":0.5234,"y":0.4821}`, string(payload))
}
