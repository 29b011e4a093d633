package datanorm

import "strings"

// CanonicalField is a normalized column name used across all event exports.
type CanonicalField string

const (
	FieldEvent     CanonicalField = "event"
	FieldMessageID CanonicalField = "message_id"
	FieldProcessed CanonicalField = "processed"
	FieldSubject   CanonicalField = "subject"
	FieldRecipient CanonicalField = "email"
)

// DefaultRequiredColumns lists the columns every upload must carry.
func DefaultRequiredColumns() []CanonicalField {
	return []CanonicalField{FieldEvent, FieldMessageID, FieldProcessed}
}

// DefaultColumnAliases maps lowercase header names to canonical fields.
// When multiple raw headers mean the same thing, they all map here.
func DefaultColumnAliases() map[string]CanonicalField {
	return map[string]CanonicalField{
		// Event type
		"event":      FieldEvent,
		"event_type": FieldEvent,
		"type":       FieldEvent,

		// Message identifier
		"message_id":    FieldMessageID,
		"messageid":     FieldMessageID,
		"sg_message_id": FieldMessageID,

		// Timestamp
		"processed":    FieldProcessed,
		"processed_at": FieldProcessed,
		"timestamp":    FieldProcessed,
		"event_time":   FieldProcessed,

		// Subject
		"subject":       FieldSubject,
		"email_subject": FieldSubject,

		// Recipient
		"email":     FieldRecipient,
		"recipient": FieldRecipient,
		"to":        FieldRecipient,
	}
}

// ColumnMapping holds the resolved mapping from canonical fields to column
// indices. The first column claiming a field wins.
type ColumnMapping struct {
	Index    map[CanonicalField]int
	RawNames []string
}

// MapColumns resolves a header row against the alias table.
func MapColumns(header []string, aliases map[string]CanonicalField) *ColumnMapping {
	m := &ColumnMapping{
		Index:    make(map[CanonicalField]int, len(header)),
		RawNames: header,
	}
	for i, h := range header {
		field, ok := aliases[CleanColumnName(h)]
		if !ok {
			continue
		}
		if _, taken := m.Index[field]; !taken {
			m.Index[field] = i
		}
	}
	return m
}

// Has reports whether the field is present.
func (m *ColumnMapping) Has(f CanonicalField) bool {
	_, ok := m.Index[f]
	return ok
}

// Value returns the trimmed cell for f, or "" when the column is absent or
// the row is short.
func (m *ColumnMapping) Value(row []string, f CanonicalField) string {
	i, ok := m.Index[f]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// CleanColumnName trims whitespace and surrounding quotes and lowercases.
func CleanColumnName(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Trim(h, "\"'")
}
