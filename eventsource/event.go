// Package eventsource provides the append-only event journal that backs the
// ticket ledger's audit trail. Every mutating operation in the registry,
// ledger, and market records a structured event here; replaying a stream
// reproduces the history of one component.
package eventsource

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a single immutable fact in a stream.
type Event struct {
	// ID is a globally unique event identifier.
	ID string `json:"id"`

	// StreamID identifies the stream (one per component instance).
	StreamID string `json:"stream_id"`

	// Type is the event type name, e.g. "TicketBought".
	Type string `json:"type"`

	// Version is the event's position in its stream, starting at 0.
	// Assigned by the store on append.
	Version int `json:"version"`

	// Timestamp records when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Data is the JSON-encoded payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh ID and the payload marshaled to
// JSON. A nil payload produces an event with no data.
func NewEvent(streamID, eventType string, data any) (*Event, error) {
	e := &Event{
		ID:        uuid.New().String(),
		StreamID:  streamID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		e.Data = encoded
	}

	return e, nil
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v any) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
