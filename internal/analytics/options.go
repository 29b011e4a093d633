package analytics

import (
	"sort"

	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// FilterOptions describes the values a filter can select from in a dataset.
type FilterOptions struct {
	Start      domain.Day `json:"start"`
	End        domain.Day `json:"end"`
	Subjects   []string   `json:"subjects"`
	Recipients []string   `json:"recipients"`
}

// DiscoverOptions collects the date bounds and the distinct subjects and
// recipients of records, each sorted. The unspecified sentinel is offered as
// a subject so messages without one can still be selected, but never as a
// recipient.
func DiscoverOptions(records []domain.EventRecord) FilterOptions {
	opts := FilterOptions{Subjects: []string{}, Recipients: []string{}}
	subjects := make(map[string]bool)
	recipients := make(map[string]bool)

	for i, r := range records {
		day := r.Day()
		if i == 0 || day.Before(opts.Start) {
			opts.Start = day
		}
		if i == 0 || day.After(opts.End) {
			opts.End = day
		}
		if !subjects[r.Subject] {
			subjects[r.Subject] = true
			opts.Subjects = append(opts.Subjects, r.Subject)
		}
		if r.Recipient != domain.Unspecified && !recipients[r.Recipient] {
			recipients[r.Recipient] = true
			opts.Recipients = append(opts.Recipients, r.Recipient)
		}
	}
	sort.Strings(opts.Subjects)
	sort.Strings(opts.Recipients)
	return opts
}

// DayMetrics returns the row for day, or a zero row carrying day when the
// table has no data for it.
func DayMetrics(daily []domain.DailyMetrics, day domain.Day) domain.DailyMetrics {
	i := sort.Search(len(daily), func(i int) bool {
		return !daily[i].Day.Before(day)
	})
	if i < len(daily) && daily[i].Day == day {
		return daily[i]
	}
	return domain.DailyMetrics{Day: day}
}
