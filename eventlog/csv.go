// Package eventlog exports and parses the journal's audit trail. The CSV
// form is for spreadsheets and ad-hoc inspection; the JSONL form is
// lossless and round-trips back into events.
package eventlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pflow-xyz/go-ticketry/eventsource"
)

// csvHeader is the fixed column layout of CSV exports.
var csvHeader = []string{"id", "stream_id", "type", "version", "timestamp", "data"}

// WriteCSV writes events as CSV with a header row. Payloads are written as
// raw JSON in the data column.
func WriteCSV(w io.Writer, events []*eventsource.Event) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, e := range events {
		record := []string{
			e.ID,
			e.StreamID,
			e.Type,
			strconv.Itoa(e.Version),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Data),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing event %s: %w", e.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportCSV writes events to a CSV file.
func ExportCSV(filename string, events []*eventsource.Event) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return WriteCSV(f, events)
}

// ParseCSV reads events from a CSV export. The header row must match the
// exported column layout.
func ParseCSV(r io.Reader) ([]*eventsource.Event, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("unexpected header: %v", header)
	}
	for i, col := range header {
		if strings.TrimSpace(col) != csvHeader[i] {
			return nil, fmt.Errorf("unexpected header column %d: %q", i, col)
		}
	}

	var events []*eventsource.Event
	lineNum := 2

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", lineNum, err)
		}

		version, err := strconv.Atoi(record[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid version %q", lineNum, record[3])
		}
		timestamp, err := time.Parse(time.RFC3339Nano, record[4])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", lineNum, record[4], err)
		}

		e := &eventsource.Event{
			ID:        record[0],
			StreamID:  record[1],
			Type:      record[2],
			Version:   version,
			Timestamp: timestamp,
		}
		if record[5] != "" {
			e.Data = []byte(record[5])
		}

		events = append(events, e)
		lineNum++
	}

	return events, nil
}
