package analytics

import (
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// ApplyFilter returns the records that match every active predicate of f.
// The input slice is not modified; the result never aliases it.
//
// A nil IncludeSubjects or ExcludeRecipients is inactive. A non-nil empty
// IncludeSubjects matches nothing.
func ApplyFilter(records []domain.EventRecord, f domain.Filter) []domain.EventRecord {
	if f.IncludeSubjects != nil && len(f.IncludeSubjects) == 0 {
		return []domain.EventRecord{}
	}

	subjects := toSet(f.IncludeSubjects)
	excluded := toSet(f.ExcludeRecipients)

	out := make([]domain.EventRecord, 0, len(records))
	for _, r := range records {
		if f.DateRange != nil && !f.DateRange.Contains(r.Day()) {
			continue
		}
		if subjects != nil && !subjects[r.Subject] {
			continue
		}
		if excluded[r.Recipient] {
			continue
		}
		out = append(out, r)
	}
	return out
}

// toSet returns nil for a nil slice so callers can tell "no filter" apart.
func toSet(vals []string) map[string]bool {
	if vals == nil {
		return nil
	}
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
