package landmark

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/facecast-labs/facecast/internal/camera"
	"github.com/facecast-labs/facecast/internal/gesture"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	// readTimeout bounds how long one inference may take. A frame whose
	// reply misses the deadline is reported as an error and the connection
	// is rebuilt; the pipeline carries on with the next frame.
	readTimeout = 2 * time.Second
)

// WSDetector sends frames to a landmarker sidecar over a persistent
// WebSocket connection, one request in flight at a time. The connection is
// established lazily and rebuilt on demand after any failure, so a sidecar
// restart costs a few no-detection frames rather than the session.
type WSDetector struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	seq    int64
	closed bool
}

// NewWSDetector creates a detector for the sidecar at url
// (e.g. ws://localhost:8089/detect).
func NewWSDetector(url string) *WSDetector {
	return &WSDetector{url: url}
}

// connect dials the sidecar. Caller holds d.mu.
func (d *WSDetector) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(d.url, nil)
	if err != nil {
		return fmt.Errorf("dial landmarker at %s: %w", d.url, err)
	}
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})
	d.conn = conn
	diagf("connected to landmarker at %s", d.url)
	return nil
}

// dropConn discards a failed connection. Caller holds d.mu.
func (d *WSDetector) dropConn() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

// Detect sends one frame and waits for the landmark reply.
func (d *WSDetector) Detect(ctx context.Context, frame camera.Frame, timestampMS int64) ([]gesture.Landmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("landmark: detector closed")
	}
	if d.conn == nil {
		if err := d.connect(); err != nil {
			return nil, err
		}
	}

	d.seq++
	req := detectRequest{
		Type:        "detect",
		Seq:         d.seq,
		TimestampMS: timestampMS,
		Image:       base64.StdEncoding.EncodeToString(frame.Data),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode detect request: %w", err)
	}

	d.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := d.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		d.dropConn()
		return nil, fmt.Errorf("send frame %d: %w", req.Seq, err)
	}

	d.conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, message, err := d.conn.ReadMessage()
	if err != nil {
		d.dropConn()
		return nil, fmt.Errorf("read landmarks for frame %d: %w", req.Seq, err)
	}
	d.conn.SetReadDeadline(time.Time{})
	d.conn.SetWriteDeadline(time.Time{})

	var resp detectResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("decode landmarker response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("landmarker: %s", resp.Error)
	}
	return toLandmarks(resp.Landmarks), nil
}

// Close tears down the sidecar connection.
func (d *WSDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.dropConn()
	return nil
}
