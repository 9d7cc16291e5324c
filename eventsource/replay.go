package eventsource

import "context"

// Replay reads a stream from the beginning and feeds every event to apply,
// in order. Components use it to rebuild in-memory state from a durable
// store after a restart. Returns the number of events applied.
func Replay(ctx context.Context, store Store, streamID string, apply func(*Event) error) (int, error) {
	events, err := store.Read(ctx, streamID, 0)
	if err != nil {
		return 0, err
	}

	for i, event := range events {
		if err := apply(event); err != nil {
			return i, err
		}
	}
	return len(events), nil
}
