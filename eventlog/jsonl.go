package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pflow-xyz/go-ticketry/eventsource"
)

// WriteJSONL writes events as JSON Lines, one event per line. The encoding
// is lossless: ParseJSONL reproduces the events exactly.
func WriteJSONL(w io.Writer, events []*eventsource.Event) error {
	enc := json.NewEncoder(w)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encoding event %s: %w", e.ID, err)
		}
	}
	return nil
}

// ExportJSONL writes events to a JSON Lines file.
func ExportJSONL(filename string, events []*eventsource.Event) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return WriteJSONL(f, events)
}

// ParseJSONL reads events from a JSON Lines export. Blank lines are
// skipped.
func ParseJSONL(r io.Reader) ([]*eventsource.Event, error) {
	var events []*eventsource.Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e eventsource.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		events = append(events, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	return events, nil
}
