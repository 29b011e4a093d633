// Package report renders analytics results as downloadable tables.
package report

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ignite/sendgrid-analytics/internal/analytics"
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// Kind names a report.
type Kind string

const (
	KindSummary Kind = "summary"
	KindDaily   Kind = "daily"
	KindDay     Kind = "day"
)

// ErrUnknownReport is returned for a report kind the builder does not know.
var ErrUnknownReport = errors.New("unknown report kind")

// ParseKind validates a report kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSummary, KindDaily, KindDay:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReport, s)
}

// Report is one rendered table plus key/value metadata.
type Report struct {
	Kind     Kind
	Header   []string
	Rows     [][]any
	Metadata [][2]string
}

// Meta describes where a report's numbers came from.
type Meta struct {
	Source      string
	Filter      domain.Filter
	Available   analytics.FilterOptions
	GeneratedAt time.Time
}

// Builder turns analytics results into Reports.
type Builder struct {
	labels map[domain.EventType]string
}

// NewBuilder creates a Builder. labels overrides the display name of event
// types; missing entries are title-cased from the event name.
func NewBuilder(labels map[domain.EventType]string) *Builder {
	return &Builder{labels: labels}
}

// Label returns the display name of an event type.
func (b *Builder) Label(et domain.EventType) string {
	if l, ok := b.labels[et]; ok && l != "" {
		return l
	}
	return b.Title(string(et))
}

// Title converts a snake_case identifier to display form. A Caser keeps
// state, so one is made per call.
func (b *Builder) Title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// Summary renders totals, rates and ratings as Metric/Value rows.
func (b *Builder) Summary(s domain.SummaryMetrics, meta Meta) *Report {
	r := &Report{Kind: KindSummary, Header: []string{"Metric", "Value"}}
	add := func(name string, v any) { r.Rows = append(r.Rows, []any{name, v}) }

	add("Total "+b.Label(domain.EventProcessed), s.ProcessedCount)
	add("Total "+b.Label(domain.EventDelivered), s.DeliveredCount)
	add("Total "+b.Label(domain.EventOpen), s.OpenCount)
	add("Total "+b.Label(domain.EventBounce), s.BounceCount)
	add("Delivery Rate (%)", Percent(s.DeliveryRate))
	add("Open Rate (%)", Percent(s.OpenRate))
	add("Bounce Rate (%)", Percent(s.BounceRate))
	add("Delivery Status", b.Title(string(s.DeliveryStatus)))
	add("Open Status", b.Title(string(s.OpenStatus)))
	add("Bounce Status", b.Title(string(s.BounceStatus)))
	add("Overall Rating", b.Title(string(s.Rating)))
	add("Days", s.Days)

	r.Metadata = b.metadata(meta)
	return r
}

// Daily renders the full daily table with percentage rate columns.
func (b *Builder) Daily(daily []domain.DailyMetrics, meta Meta) *Report {
	r := &Report{Kind: KindDaily, Header: b.dailyHeader()}
	for _, d := range daily {
		r.Rows = append(r.Rows, dailyRow(d))
	}
	r.Metadata = b.metadata(meta)
	return r
}

// Day renders a single day's metrics.
func (b *Builder) Day(m domain.DailyMetrics, meta Meta) *Report {
	r := &Report{
		Kind:   KindDay,
		Header: b.dailyHeader(),
		Rows:   [][]any{dailyRow(m)},
	}
	r.Metadata = append(b.metadata(meta), [2]string{"Selected Date", m.Day.String()})
	return r
}

func (b *Builder) dailyHeader() []string {
	h := []string{"Date"}
	for _, et := range domain.DefaultEventVocabulary() {
		h = append(h, b.Label(et))
	}
	return append(h, "Delivery Rate (%)", "Open Rate (%)", "Bounce Rate (%)")
}

func dailyRow(d domain.DailyMetrics) []any {
	return []any{
		d.Day.String(),
		d.ProcessedCount,
		d.DeliveredCount,
		d.OpenCount,
		d.BounceCount,
		Percent(d.DeliveryRate),
		Percent(d.OpenRate),
		Percent(d.BounceRate),
	}
}

func (b *Builder) metadata(meta Meta) [][2]string {
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	md := [][2]string{
		{"Generated At", generated.Format(time.RFC3339)},
	}
	if meta.Source != "" {
		md = append(md, [2]string{"Source File", meta.Source})
	}
	if !meta.Available.Start.IsZero() {
		md = append(md, [2]string{"Data Range", meta.Available.Start.String() + " to " + meta.Available.End.String()})
	}

	dates := "All"
	if dr := meta.Filter.DateRange; dr != nil {
		dates = dr.Start.String() + " to " + dr.End.String()
	}
	md = append(md,
		[2]string{"Date Filter", dates},
		[2]string{"Included Subjects", describeSet(meta.Filter.IncludeSubjects, "All")},
		[2]string{"Excluded Recipients", describeSet(meta.Filter.ExcludeRecipients, "None")},
	)
	return md
}

func describeSet(vals []string, whenNil string) string {
	if vals == nil {
		return whenNil
	}
	if len(vals) == 0 {
		return "None"
	}
	return strings.Join(vals, "; ")
}

// Percent converts a fraction to a percentage rounded to two decimals.
func Percent(f float64) float64 {
	return math.Round(f*10000) / 100
}

// Filename builds "<prefix>_<kind>_<YYYYMMDD_HHMMSS>.<ext>".
func Filename(prefix string, kind Kind, ext string, at time.Time) string {
	if prefix == "" {
		prefix = "sendgrid_analytics"
	}
	return fmt.Sprintf("%s_%s_%s.%s", prefix, kind, at.Format("20060102_150405"), strings.TrimPrefix(ext, "."))
}
