package analytics

import (
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// SummaryCalculator reduces a daily table to one SummaryMetrics value and
// rates it against a set of benchmarks.
type SummaryCalculator struct {
	benchmarks domain.Benchmarks
}

// NewSummaryCalculator creates a calculator. A nil benchmarks map uses
// domain.DefaultBenchmarks.
func NewSummaryCalculator(b domain.Benchmarks) *SummaryCalculator {
	if b == nil {
		b = domain.DefaultBenchmarks()
	}
	return &SummaryCalculator{benchmarks: b}
}

// Summarize sums the counters and rate numerators over all rows. Rates are
// recomputed from those totals, never averaged from the daily rates.
func (c *SummaryCalculator) Summarize(daily []domain.DailyMetrics) domain.SummaryMetrics {
	var s domain.SummaryMetrics
	for _, d := range daily {
		s.ProcessedCount += d.ProcessedCount
		s.DeliveredCount += d.DeliveredCount
		s.OpenCount += d.OpenCount
		s.BounceCount += d.BounceCount
		s.DeliveredMatched += d.DeliveredMatched
		s.OpenMatched += d.OpenMatched
		s.BounceMatched += d.BounceMatched
	}
	s.Days = len(daily)
	s.DeliveryRate = domain.Rate(s.DeliveredMatched, s.ProcessedCount)
	s.OpenRate = domain.Rate(s.OpenMatched, s.DeliveredCount)
	s.BounceRate = domain.Rate(s.BounceMatched, s.ProcessedCount)

	s.DeliveryStatus = RateTier(domain.MetricDeliveryRate, s.DeliveryRate, c.benchmarks)
	s.OpenStatus = RateTier(domain.MetricOpenRate, s.OpenRate, c.benchmarks)
	s.BounceStatus = RateTier(domain.MetricBounceRate, s.BounceRate, c.benchmarks)
	s.Rating = WeakestLink(s.DeliveryStatus, s.OpenStatus, s.BounceStatus)
	return s
}

// RateTier returns the best tier whose threshold value qualifies for.
// Higher-is-better metrics qualify at or above the threshold; bounce rate
// qualifies at or below it. A metric with no configured thresholds does not
// constrain the rating and reports excellent.
func RateTier(m domain.Metric, value float64, b domain.Benchmarks) domain.Rating {
	tiers, ok := b[m]
	if !ok || len(tiers) == 0 {
		return domain.RatingExcellent
	}
	for _, tier := range []domain.Rating{domain.RatingExcellent, domain.RatingGood} {
		threshold, ok := tiers[tier]
		if !ok {
			continue
		}
		if m.LowerIsBetter() {
			if value <= threshold {
				return tier
			}
		} else if value >= threshold {
			return tier
		}
	}
	return domain.RatingNeedsImprovement
}

// WeakestLink returns the lowest of the given tiers. With no tiers it
// returns excellent.
func WeakestLink(tiers ...domain.Rating) domain.Rating {
	worst := domain.RatingExcellent
	for _, t := range tiers {
		if t.Rank() < worst.Rank() {
			worst = t
		}
	}
	return worst
}
