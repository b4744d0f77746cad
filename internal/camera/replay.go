package camera

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ReplaySource plays back a directory of JPEG fixtures in filename order at
// a nominal frame rate, simulating a live camera for development runs.
type ReplaySource struct {
	files  []string
	fps    int
	loop   bool
	idx    int
	seq    int64
	ticker *time.Ticker
	closed bool
}

// NewReplaySource scans dir for *.jpg / *.jpeg fixtures. fps must be
// positive; loop restarts from the first frame at end of directory.
func NewReplaySource(dir string, fps int, loop bool) (*ReplaySource, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("replay fps must be positive, got %d", fps)
	}

	var files []string
	for _, pattern := range []string{"*.jpg", "*.jpeg"} {
		matched, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("scan replay dir: %w", err)
		}
		files = append(files, matched...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no jpeg fixtures in %s", dir)
	}
	sort.Strings(files)

	return &ReplaySource{
		files:  files,
		fps:    fps,
		loop:   loop,
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
	}, nil
}

// Next waits for the frame tick and returns the next fixture.
func (s *ReplaySource) Next(ctx context.Context) (Frame, error) {
	if s.closed {
		return Frame{}, ErrSourceClosed
	}
	if s.idx >= len(s.files) {
		if !s.loop {
			return Frame{}, ErrStreamEnded
		}
		s.idx = 0
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.ticker.C:
	}

	path := s.files[s.idx]
	s.idx++

	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("read fixture %s: %w", path, err)
	}

	frame := Frame{
		Data:     data,
		Seq:      s.seq,
		Captured: time.Now(),
	}
	s.seq++
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
		frame.Width = cfg.Width
		frame.Height = cfg.Height
	}
	return frame, nil
}

// Close releases the pacing ticker.
func (s *ReplaySource) Close() error {
	if !s.closed {
		s.closed = true
		s.ticker.Stop()
	}
	return nil
}

// TickSource produces empty frames at a fixed cadence. It pairs with a
// scripted detector, where the landmark fixtures carry the content and the
// source only supplies the frame clock.
type TickSource struct {
	ticker *time.Ticker
	seq    int64
	closed bool
}

// NewTickSource creates a cadence-only source at the given frame rate.
func NewTickSource(fps int) (*TickSource, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("tick fps must be positive, got %d", fps)
	}
	return &TickSource{ticker: time.NewTicker(time.Second / time.Duration(fps))}, nil
}

// Next blocks until the next tick.
func (s *TickSource) Next(ctx context.Context) (Frame, error) {
	if s.closed {
		return Frame{}, ErrSourceClosed
	}
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.ticker.C:
	}
	frame := Frame{Seq: s.seq, Captured: time.Now()}
	s.seq++
	return frame, nil
}

// Close releases the pacing ticker.
func (s *TickSource) Close() error {
	if !s.closed {
		s.closed = true
		s.ticker.Stop()
	}
	return nil
}
