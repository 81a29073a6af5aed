package waveform

import "sync"

// EventKind discriminates streaming events from the analyzer.
type EventKind string

const (
	// EventStep carries a partial peak batch and a progress update.
	EventStep EventKind = "step"
	// EventDone finalizes the stream, optionally replacing the buffer.
	EventDone EventKind = "done"
)

// Event is one inbound analyzer signal.
type Event struct {
	// Kind is step or done.
	Kind EventKind
	// Peaks is the partial batch (step) or optional full replacement (done).
	Peaks []float32
	// Progress is the analysis progress 0..1 (step only).
	Progress float64
	// CacheID is the analyzer's cache reference (done only).
	CacheID string
	// Duration is the media duration in seconds (done only).
	Duration float64
	// TotalSamples is the total peak count (done only).
	TotalSamples int
}

// Stream routes analyzer events into a Buffer and fans them out to
// subscribers. Subscriptions are explicit handles; cancelling one (or
// closing the stream at session teardown) guarantees no further callbacks
// and stops a stale buffer from growing.
type Stream struct {
	mu     sync.Mutex
	buffer *Buffer
	subs   map[uint64]func(Event)
	nextID uint64
	closed bool
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	stream *Stream
	id     uint64
	once   sync.Once
}

// Cancel removes the subscription. It is idempotent and safe to defer.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.stream.mu.Lock()
		delete(s.stream.subs, s.id)
		s.stream.mu.Unlock()
	})
}

// NewStream creates a stream feeding the given buffer.
func NewStream(buffer *Buffer) *Stream {
	return &Stream{
		buffer: buffer,
		subs:   make(map[uint64]func(Event)),
	}
}

// Buffer returns the underlying peak buffer.
func (s *Stream) Buffer() *Buffer {
	return s.buffer
}

// Subscribe registers a callback for every published event and returns its
// handle. Callbacks run synchronously on the publisher's goroutine.
func (s *Stream) Subscribe(fn func(Event)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	if !s.closed {
		s.subs[id] = fn
	}
	return &Subscription{stream: s, id: id}
}

// Publish applies an analyzer event to the buffer and notifies subscribers.
// Events arriving after Close are discarded.
func (s *Stream) Publish(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	switch e.Kind {
	case EventStep:
		s.buffer.Step(e.Peaks, e.Progress)
	case EventDone:
		s.buffer.Done(e.Peaks, e.CacheID, e.Duration, e.TotalSamples)
	}
	listeners := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(e)
	}
}

// Close tears the stream down: all subscriptions are dropped and later
// events are ignored. Called on session or file teardown.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[uint64]func(Event))
}
