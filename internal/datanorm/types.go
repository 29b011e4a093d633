package datanorm

import (
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// Table is a raw tabular input: a header row and data rows as read from the
// upload, before any validation.
type Table struct {
	Header []string
	Rows   [][]string
}

// Options configures validation and normalization.
type Options struct {
	Vocabulary       []domain.EventType
	RequiredColumns  []CanonicalField
	ColumnAliases    map[string]CanonicalField
	TimestampLayouts []string

	// InheritSubject fills a missing subject from the message's processed event.
	InheritSubject bool
	// RequireProcessed drops events whose message has no processed event.
	RequireProcessed bool
}

// DefaultOptions returns the stock SendGrid event-log settings.
func DefaultOptions() Options {
	return Options{
		Vocabulary:       domain.DefaultEventVocabulary(),
		RequiredColumns:  DefaultRequiredColumns(),
		ColumnAliases:    DefaultColumnAliases(),
		TimestampLayouts: DefaultTimestampLayouts(),
		InheritSubject:   true,
	}
}

// Result is the cleaned event set plus the tally of what was dropped.
type Result struct {
	Records     []domain.EventRecord
	Diagnostics domain.Diagnostics
}
