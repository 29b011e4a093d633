package analytics

import (
	"sort"

	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// Aggregator buckets records into per-day counters.
type Aggregator struct{}

// NewAggregator creates an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// seen records which counted events a message has within one day.
type seen uint8

const (
	seenProcessed seen = 1 << iota
	seenDelivered
	seenOpen
	seenBounce
)

type dayBucket struct {
	metrics  domain.DailyMetrics
	messages map[string]seen
}

// Daily groups records by calendar day and event type, pivots the counts
// into one row per day and derives the rate columns. Rows come back in
// ascending day order. Days without any counted event are omitted, so an
// empty input yields an empty (non-nil) table.
//
// Counters count every event. Rate numerators only count messages whose
// prerequisite event falls in the same day: processed for deliveries and
// bounces, delivered for opens.
func (a *Aggregator) Daily(records []domain.EventRecord) []domain.DailyMetrics {
	byDay := make(map[domain.Day]*dayBucket)

	for _, r := range records {
		day := r.Day()
		b, ok := byDay[day]
		if !ok {
			b = &dayBucket{
				metrics:  domain.DailyMetrics{Day: day},
				messages: make(map[string]seen),
			}
			byDay[day] = b
		}
		m := &b.metrics
		switch r.Event {
		case domain.EventProcessed:
			m.ProcessedCount++
			b.messages[r.MessageID] |= seenProcessed
		case domain.EventDelivered:
			m.DeliveredCount++
			b.messages[r.MessageID] |= seenDelivered
		case domain.EventOpen:
			m.OpenCount++
			b.messages[r.MessageID] |= seenOpen
		case domain.EventBounce:
			m.BounceCount++
			b.messages[r.MessageID] |= seenBounce
		}
	}

	out := make([]domain.DailyMetrics, 0, len(byDay))
	for _, b := range byDay {
		if b.metrics.Total() == 0 {
			continue
		}
		matchMessages(&b.metrics, b.messages)
		fillRates(&b.metrics)
		out = append(out, b.metrics)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Day.Before(out[j].Day)
	})
	return out
}

// matchMessages counts the rate numerators from per-message event sets.
// A message adds at most one to a numerator and at least one to that
// numerator's denominator, so no rate can exceed 1.
func matchMessages(m *domain.DailyMetrics, messages map[string]seen) {
	for _, s := range messages {
		if s&seenProcessed != 0 {
			if s&seenDelivered != 0 {
				m.DeliveredMatched++
			}
			if s&seenBounce != 0 {
				m.BounceMatched++
			}
		}
		if s&seenDelivered != 0 && s&seenOpen != 0 {
			m.OpenMatched++
		}
	}
}

// fillRates applies the rate formulas. Every rate is 0 when its denominator
// is 0.
func fillRates(m *domain.DailyMetrics) {
	m.DeliveryRate = domain.Rate(m.DeliveredMatched, m.ProcessedCount)
	m.OpenRate = domain.Rate(m.OpenMatched, m.DeliveredCount)
	m.BounceRate = domain.Rate(m.BounceMatched, m.ProcessedCount)
}
