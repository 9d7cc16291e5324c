package eventlog

import (
	"fmt"
	"sort"
	"time"

	"github.com/pflow-xyz/go-ticketry/eventsource"
)

// Summary provides basic statistics over an exported audit trail.
type Summary struct {
	NumEvents  int
	NumStreams int
	ByType     map[string]int
	StartTime  time.Time
	EndTime    time.Time
}

// Summarize computes summary statistics for a set of events.
func Summarize(events []*eventsource.Event) Summary {
	summary := Summary{ByType: make(map[string]int)}

	streams := make(map[string]bool)
	for i, e := range events {
		streams[e.StreamID] = true
		summary.ByType[e.Type]++

		if i == 0 || e.Timestamp.Before(summary.StartTime) {
			summary.StartTime = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(summary.EndTime) {
			summary.EndTime = e.Timestamp
		}
	}

	summary.NumEvents = len(events)
	summary.NumStreams = len(streams)
	return summary
}

// Print prints the summary.
func (summary Summary) Print() {
	fmt.Println("=== Audit Trail Summary ===")
	fmt.Printf("Events: %d\n", summary.NumEvents)
	fmt.Printf("Streams: %d\n", summary.NumStreams)

	types := make([]string, 0, len(summary.ByType))
	for t := range summary.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %s: %d\n", t, summary.ByType[t])
	}

	if summary.NumEvents > 0 {
		fmt.Printf("Time range: %s to %s\n",
			summary.StartTime.Format("2006-01-02 15:04:05"),
			summary.EndTime.Format("2006-01-02 15:04:05"))
	}
}
