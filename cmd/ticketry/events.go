package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pflow-xyz/go-ticketry/eventlog"
	"github.com/pflow-xyz/go-ticketry/eventsource"
)

func events(args []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	streamFilter := fs.String("stream", "", "Filter by stream ID")
	typeFilter := fs.String("type", "", "Filter by event type")
	csvPath := fs.String("csv", "", "Export as CSV to file")
	jsonlPath := fs.String("jsonl", "", "Export as JSON Lines to file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ticketry events <events.db> [options]

Display the audit trail recorded in an event database.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Show all events
  ticketry events tickets.db

  # Only market events
  ticketry events tickets.db --stream market

  # Only sales, exported for a spreadsheet
  ticketry events tickets.db --type TicketBought --csv sales.csv
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("event database required")
	}

	store, err := eventsource.NewSQLiteStore(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer store.Close()

	filter := eventsource.EventFilter{StreamID: *streamFilter}
	if *typeFilter != "" {
		filter.Types = []string{*typeFilter}
	}

	evts, err := store.ReadAll(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}

	if *csvPath != "" {
		if err := eventlog.ExportCSV(*csvPath, evts); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		fmt.Printf("Wrote %d events to %s\n", len(evts), *csvPath)
		return nil
	}
	if *jsonlPath != "" {
		if err := eventlog.ExportJSONL(*jsonlPath, evts); err != nil {
			return fmt.Errorf("export jsonl: %w", err)
		}
		fmt.Printf("Wrote %d events to %s\n", len(evts), *jsonlPath)
		return nil
	}

	if len(evts) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	for _, e := range evts {
		fmt.Printf("%s  %-14s v%-4d %-18s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.StreamID, e.Version, e.Type, e.Data)
	}
	fmt.Println()
	eventlog.Summarize(evts).Print()

	return nil
}
