package onboarding

import (
	"sync"
	"time"
)

// Snapshot is one immutable progress notification. Within a run, Percent is
// non-decreasing across successive snapshots.
type Snapshot struct {
	Stage      Stage     `json:"stage"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message"`
	SubMessage string    `json:"subMessage,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives progress snapshots. Implementations must not block the
// caller; delivery is at-most-once per emission.
type Sink interface {
	Publish(snapshot Snapshot)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Snapshot)

// Publish implements Sink.
func (f SinkFunc) Publish(snapshot Snapshot) {
	if f != nil {
		f(snapshot)
	}
}

// Stream is a capacity-1, latest-wins snapshot channel. A slow or absent
// consumer never blocks the producer: publishing replaces the buffered
// snapshot when one is still pending.
type Stream struct {
	mu     sync.Mutex
	ch     chan Snapshot
	latest Snapshot
	seen   bool
	closed bool
}

// NewStream constructs a stream.
func NewStream() *Stream {
	return &Stream{ch: make(chan Snapshot, 1)}
}

// Publish implements Sink with latest-wins semantics.
func (s *Stream) Publish(snapshot Snapshot) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = snapshot
	s.seen = true
	select {
	case s.ch <- snapshot:
	default:
		// Drop the stale pending snapshot, keep the newest.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snapshot:
		default:
		}
	}
}

// Snapshots returns the receive side of the stream. The channel is closed
// when the run finishes.
func (s *Stream) Snapshots() <-chan Snapshot {
	return s.ch
}

// Latest returns the most recently published snapshot, if any.
func (s *Stream) Latest() (Snapshot, bool) {
	if s == nil {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.seen
}

// Close closes the stream. Safe to call more than once.
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
