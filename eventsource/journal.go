package eventsource

import (
	"context"
	"errors"
	"sync"
)

// Journal is a single-writer view of one stream. Components own a Journal
// each and record their events through it; the journal tracks the stream
// version so appends from the owning component never conflict.
type Journal struct {
	store  Store
	stream string

	mu      sync.Mutex
	version int
	synced  bool
}

// NewJournal creates a journal for the given stream. The stream version is
// synced from the store on first use, so journals can be created before or
// after the stream has events.
func NewJournal(store Store, stream string) *Journal {
	return &Journal{
		store:   store,
		stream:  stream,
		version: -1,
	}
}

// Stream returns the journal's stream ID.
func (j *Journal) Stream() string {
	return j.stream
}

// Entry is one event to record.
type Entry struct {
	Type string
	Data any
}

// Record creates an event with the given type and payload and appends it to
// the stream. Returns the stored event.
func (j *Journal) Record(ctx context.Context, eventType string, data any) (*Event, error) {
	events, err := j.RecordAll(ctx, []Entry{{Type: eventType, Data: data}})
	if err != nil {
		return nil, err
	}
	return events[0], nil
}

// RecordAll appends a batch of events to the stream in a single store call,
// so either all entries are recorded or none is.
func (j *Journal) RecordAll(ctx context.Context, entries []Entry) ([]*Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.synced {
		version, err := j.store.StreamVersion(ctx, j.stream)
		if err != nil {
			return nil, err
		}
		j.version = version
		j.synced = true
	}

	events := make([]*Event, len(entries))
	for i, entry := range entries {
		event, err := NewEvent(j.stream, entry.Type, entry.Data)
		if err != nil {
			return nil, err
		}
		events[i] = event
	}

	version, err := j.store.Append(ctx, j.stream, j.version, events)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			// Something else wrote to the stream; resync before the
			// owner's next attempt.
			j.synced = false
		}
		return nil, err
	}
	j.version = version

	return events, nil
}

// Events returns the full history of the journal's stream.
func (j *Journal) Events(ctx context.Context) ([]*Event, error) {
	return j.store.Read(ctx, j.stream, 0)
}
