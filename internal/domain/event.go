package domain

import (
	"strings"
	"time"
)

// EventType enumerates the email events that feed the metrics.
type EventType string

const (
	EventProcessed EventType = "processed"
	EventDelivered EventType = "delivered"
	EventOpen      EventType = "open"
	EventBounce    EventType = "bounce"
)

// Unspecified fills optional text fields that are absent from the input.
const Unspecified = "unspecified"

// DefaultEventVocabulary returns the events counted by the dashboard, in
// column order.
func DefaultEventVocabulary() []EventType {
	return []EventType{EventProcessed, EventDelivered, EventOpen, EventBounce}
}

// ParseEventType lowercases and trims raw and reports whether the result is
// part of vocab.
func ParseEventType(raw string, vocab []EventType) (EventType, bool) {
	et := EventType(strings.ToLower(strings.TrimSpace(raw)))
	for _, v := range vocab {
		if v == et {
			return et, true
		}
	}
	return et, false
}

// EventRecord is one cleaned row of the event log.
type EventRecord struct {
	Event       EventType `json:"event"`
	MessageID   string    `json:"message_id"`
	ProcessedAt time.Time `json:"processed_at"`
	Subject     string    `json:"subject"`
	Recipient   string    `json:"recipient"`
}

// Day returns the calendar day of the record's timestamp, taken from the
// wall clock the timestamp was written in.
func (r EventRecord) Day() Day {
	return DayOf(r.ProcessedAt)
}
