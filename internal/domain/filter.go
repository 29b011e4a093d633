package domain

import (
	"sort"
	"strings"
)

// DateRange is an inclusive range of days.
type DateRange struct {
	Start Day `json:"start"`
	End   Day `json:"end"`
}

// Contains reports whether d lies within the range, bounds included.
func (r DateRange) Contains(d Day) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Filter selects a subset of events. Nil fields are inactive. A non-nil but
// empty IncludeSubjects means "include nothing".
type Filter struct {
	DateRange         *DateRange `json:"date_range"`
	IncludeSubjects   []string   `json:"include_subjects"`
	ExcludeRecipients []string   `json:"exclude_recipients"`
}

// Key renders the filter in a canonical form usable as a cache key.
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString("d=")
	if f.DateRange != nil {
		b.WriteString(f.DateRange.Start.String())
		b.WriteString("..")
		b.WriteString(f.DateRange.End.String())
	}
	b.WriteString(";s=")
	writeSet(&b, f.IncludeSubjects)
	b.WriteString(";x=")
	writeSet(&b, f.ExcludeRecipients)
	return b.String()
}

func writeSet(b *strings.Builder, vals []string) {
	if vals == nil {
		b.WriteString("*")
		return
	}
	sorted := append([]string(nil), vals...)
	sort.Strings(sorted)
	b.WriteString("[")
	for i, v := range sorted {
		if i > 0 {
			b.WriteString("\x1f")
		}
		b.WriteString(v)
	}
	b.WriteString("]")
}
