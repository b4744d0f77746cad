package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// MJPEGSource reads frames from an MJPEG HTTP stream
// (multipart/x-mixed-replace), the format served by network cameras and
// mjpeg-streamer sidecars. The stream connects lazily on the first Next
// call; that call's context governs the connection for its lifetime, so
// cancelling it aborts any blocked body read.
type MJPEGSource struct {
	url    string
	client *http.Client

	mu     sync.Mutex
	resp   *http.Response
	parts  *multipart.Reader
	seq    int64
	closed bool
}

// NewMJPEGSource creates a source for the given stream URL.
func NewMJPEGSource(url string) *MJPEGSource {
	return &MJPEGSource{
		url: url,
		client: &http.Client{
			// No overall timeout: the response body is an endless stream.
			Transport: &http.Transport{
				ResponseHeaderTimeout: 5 * time.Second,
			},
		},
	}
}

// connect issues the streaming request and prepares the multipart reader.
func (s *MJPEGSource) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to camera stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("camera stream returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("parse stream content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return fmt.Errorf("camera stream is not multipart MJPEG (got %q)", mediaType)
	}

	s.resp = resp
	s.parts = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

// Next returns the next frame from the stream.
func (s *MJPEGSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Frame{}, ErrSourceClosed
	}
	if s.parts == nil {
		if err := s.connect(ctx); err != nil {
			return Frame{}, err
		}
	}

	part, err := s.parts.NextPart()
	if err != nil {
		if err == io.EOF {
			return Frame{}, ErrStreamEnded
		}
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, fmt.Errorf("read stream part: %w", err)
	}
	data, err := io.ReadAll(part)
	part.Close()
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}

	frame := Frame{
		Data:     data,
		Seq:      s.seq,
		Captured: time.Now(),
	}
	s.seq++

	// Dimensions come from the JPEG header only; the pixel data is opaque
	// payload for the landmarker.
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
		frame.Width = cfg.Width
		frame.Height = cfg.Height
	}
	return frame, nil
}

// Close terminates the stream connection.
func (s *MJPEGSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.resp != nil {
		return s.resp.Body.Close()
	}
	return nil
}
