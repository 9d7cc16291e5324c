package eventsource

import (
	"context"
	"errors"
	"sync"
)

// ErrConcurrencyConflict is returned when an append's expected version does
// not match the stream's current version.
var ErrConcurrencyConflict = errors.New("eventsource: concurrency conflict")

// EventFilter selects events for ReadAll.
type EventFilter struct {
	// StreamID limits results to a single stream. Empty matches all.
	StreamID string

	// Types limits results to the given event types. Empty matches all.
	Types []string
}

func (f EventFilter) matches(e *Event) bool {
	if f.StreamID != "" && e.StreamID != f.StreamID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Store is the event journal interface. Versions are zero-based; an empty
// stream has version -1, and an append to an empty stream must pass
// expectedVersion -1.
type Store interface {
	// Append atomically appends events to a stream and returns the new
	// stream version. Fails with ErrConcurrencyConflict if expectedVersion
	// does not match the stream's current version.
	Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error)

	// Read returns a stream's events starting at fromVersion, in order.
	Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error)

	// ReadAll returns events across streams matching the filter, in global
	// append order.
	ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error)

	// StreamVersion returns a stream's current version, or -1 if the stream
	// does not exist.
	StreamVersion(ctx context.Context, streamID string) (int, error)

	// DeleteStream removes a stream and all its events.
	DeleteStream(ctx context.Context, streamID string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory Store for tests, demos, and single-process
// deployments that don't need a durable journal.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]*Event
	global  []*Event
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]*Event),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	current := len(stream) - 1
	if expectedVersion != current {
		return current, ErrConcurrencyConflict
	}

	for _, e := range events {
		e.StreamID = streamID
		e.Version = len(stream)
		stream = append(stream, e)
		s.global = append(s.global, e)
	}
	s.streams[streamID] = stream

	return len(stream) - 1, nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[streamID]
	if fromVersion < 0 {
		fromVersion = 0
	}
	if fromVersion >= len(stream) {
		return nil, nil
	}

	out := make([]*Event, len(stream)-fromVersion)
	copy(out, stream[fromVersion:])
	return out, nil
}

// ReadAll implements Store.
func (s *MemoryStore) ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.global {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// StreamVersion implements Store.
func (s *MemoryStore) StreamVersion(ctx context.Context, streamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, ok := s.streams[streamID]
	if !ok {
		return -1, nil
	}
	return len(stream) - 1, nil
}

// DeleteStream implements Store.
func (s *MemoryStore) DeleteStream(ctx context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.streams, streamID)

	filtered := s.global[:0]
	for _, e := range s.global {
		if e.StreamID != streamID {
			filtered = append(filtered, e)
		}
	}
	s.global = filtered
	return nil
}

// Close implements Store. It is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
