// Package audio abstracts the alert sound facility. Skywatch only needs a
// play/pause/rewind primitive; how sound actually reaches the operator is
// the sink's business.
package audio

import (
	"fmt"
	"io"
	"os"
)

// Sink is the audio primitive consumed by the alert throttle. All methods
// are fire-and-forget from the caller's perspective - a failing sink must
// never be allowed to affect polling or data state.
type Sink interface {
	// Play starts (or restarts) the alert sound.
	Play() error
	// Pause stops playback.
	Pause() error
	// Rewind resets the playback position to the start.
	Rewind() error
}

// BellSink rings the terminal bell. This is the default sink: it needs no
// audio device, and every terminal the console runs in supports it.
type BellSink struct {
	w io.Writer
}

// NewBellSink creates a BellSink writing to stderr, which Bubble Tea leaves
// alone.
func NewBellSink() *BellSink {
	return &BellSink{w: os.Stderr}
}

// Play rings the bell.
func (s *BellSink) Play() error {
	if _, err := s.w.Write([]byte("\a")); err != nil {
		return fmt.Errorf("audio: bell write failed: %w", err)
	}
	return nil
}

// Pause is a no-op; the bell has no sustained playback.
func (s *BellSink) Pause() error { return nil }

// Rewind is a no-op; the bell has no position.
func (s *BellSink) Rewind() error { return nil }

// NopSink discards every call. Used when the operator disables sound.
type NopSink struct{}

func (NopSink) Play() error   { return nil }
func (NopSink) Pause() error  { return nil }
func (NopSink) Rewind() error { return nil }
