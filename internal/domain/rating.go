package domain

// Rating is a qualitative performance tier.
type Rating string

const (
	RatingExcellent        Rating = "excellent"
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs_improvement"
)

// Rank orders tiers from worst (0) to best.
func (r Rating) Rank() int {
	switch r {
	case RatingExcellent:
		return 2
	case RatingGood:
		return 1
	}
	return 0
}

// Valid reports whether r is one of the known tiers.
func (r Rating) Valid() bool {
	switch r {
	case RatingExcellent, RatingGood, RatingNeedsImprovement:
		return true
	}
	return false
}

// Metric names a rated rate column.
type Metric string

const (
	MetricDeliveryRate Metric = "delivery_rate"
	MetricOpenRate     Metric = "open_rate"
	MetricBounceRate   Metric = "bounce_rate"
)

// RatedMetrics lists the metrics that take part in the overall rating.
func RatedMetrics() []Metric {
	return []Metric{MetricDeliveryRate, MetricOpenRate, MetricBounceRate}
}

// LowerIsBetter reports whether a metric qualifies for a tier by staying at
// or below the threshold instead of reaching it.
func (m Metric) LowerIsBetter() bool {
	return m == MetricBounceRate
}

// Benchmarks maps metric -> tier -> threshold, thresholds as fractions.
// Only excellent and good carry thresholds; needs_improvement is the floor.
type Benchmarks map[Metric]map[Rating]float64

// DefaultBenchmarks mirrors the dashboard's stock thresholds.
func DefaultBenchmarks() Benchmarks {
	return Benchmarks{
		MetricDeliveryRate: {RatingExcellent: 0.95, RatingGood: 0.90},
		MetricOpenRate:     {RatingExcellent: 0.25, RatingGood: 0.15},
		MetricBounceRate:   {RatingExcellent: 0.02, RatingGood: 0.05},
	}
}
