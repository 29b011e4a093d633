package domain

import (
	"fmt"
	"sort"
)

// Diagnostics tallies rows the normalizer could not use. None of these
// conditions abort processing.
type Diagnostics struct {
	TotalRows          int            `json:"total_rows"`
	Retained           int            `json:"retained"`
	MalformedTimestamp int            `json:"malformed_timestamp"`
	UnknownEvent       int            `json:"unknown_event"`
	MissingMessageID   int            `json:"missing_message_id"`
	Duplicates         int            `json:"duplicates"`
	Orphaned           int            `json:"orphaned"`
	UnknownEventTypes  map[string]int `json:"unknown_event_types,omitempty"`
}

// Dropped returns the number of rows that did not survive normalization.
func (d Diagnostics) Dropped() int {
	return d.MalformedTimestamp + d.UnknownEvent +
		d.MissingMessageID + d.Duplicates + d.Orphaned
}

// Warnings renders the non-zero tallies as user-facing messages.
func (d Diagnostics) Warnings() []string {
	var out []string
	add := func(n int, format string) {
		if n > 0 {
			out = append(out, fmt.Sprintf(format, n))
		}
	}
	add(d.MalformedTimestamp, "%d row(s) dropped: unparseable timestamp")
	add(d.MissingMessageID, "%d row(s) dropped: missing message_id")
	if d.UnknownEvent > 0 {
		types := make([]string, 0, len(d.UnknownEventTypes))
		for t := range d.UnknownEventTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		out = append(out, fmt.Sprintf("%d row(s) ignored: event type not counted %v", d.UnknownEvent, types))
	}
	add(d.Duplicates, "%d duplicate (message_id, event) row(s) collapsed")
	add(d.Orphaned, "%d row(s) dropped: message has no processed event")
	return out
}
