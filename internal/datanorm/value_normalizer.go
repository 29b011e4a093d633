package datanorm

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultTimestampLayouts are tried in order. Fractional seconds after the
// seconds field are accepted by time.Parse even when a layout omits them.
func DefaultTimestampLayouts() []string {
	return []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05 -0700",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"01/02/2006 15:04:05",
		"01/02/2006 15:04",
		"01/02/2006",
	}
}

var errUnparseableTimestamp = errors.New("unparseable timestamp")

// parseTimestamp parses a textual date/time using layouts, falling back to
// Unix epoch seconds (10 digits) or milliseconds (13 digits) as found in
// SendGrid's raw "timestamp" field.
func parseTimestamp(val string, layouts []string) (time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}, errUnparseableTimestamp
	}

	if isDigits(val) {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return time.Time{}, errUnparseableTimestamp
		}
		switch len(val) {
		case 9, 10:
			return time.Unix(n, 0).UTC(), nil
		case 13:
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Time{}, errUnparseableTimestamp
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errUnparseableTimestamp
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// normalizeText collapses internal runs of whitespace and trims the ends.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeRecipient trims an address; case is preserved so exclusions match
// what the export shows.
func normalizeRecipient(s string) string {
	return strings.TrimSpace(s)
}
