package eventsource

import (
	"context"
	"testing"
)

func TestJournalRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	j := NewJournal(store, "test")

	e1, err := j.Record(ctx, "First", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e1.Version != 0 {
		t.Errorf("expected version 0, got %d", e1.Version)
	}

	e2, err := j.Record(ctx, "Second", nil)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if e2.Version != 1 {
		t.Errorf("expected version 1, got %d", e2.Version)
	}

	events, err := j.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "First" || events[1].Type != "Second" {
		t.Errorf("unexpected types: %s, %s", events[0].Type, events[1].Type)
	}
}

func TestJournalSyncsExistingStream(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// Seed the stream through one journal, then continue with a fresh one.
	first := NewJournal(store, "test")
	if _, err := first.Record(ctx, "Seeded", nil); err != nil {
		t.Fatal(err)
	}

	second := NewJournal(store, "test")
	e, err := second.Record(ctx, "Continued", nil)
	if err != nil {
		t.Fatalf("Record on existing stream: %v", err)
	}
	if e.Version != 1 {
		t.Errorf("expected version 1, got %d", e.Version)
	}
}

func TestJournalRecordAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	j := NewJournal(store, "test")

	events, err := j.RecordAll(ctx, []Entry{
		{Type: "A", Data: nil},
		{Type: "B", Data: nil},
		{Type: "C", Data: nil},
	})
	if err != nil {
		t.Fatalf("RecordAll: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Version != i {
			t.Errorf("event %d: expected version %d, got %d", i, i, e.Version)
		}
	}

	version, err := store.StreamVersion(ctx, "test")
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("expected stream version 2, got %d", version)
	}
}
