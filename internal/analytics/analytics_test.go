package analytics

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/sendgrid-analytics/internal/domain"
)

func rec(event domain.EventType, id, ts, subject, recipient string) domain.EventRecord {
	t, err := time.Parse("2006-01-02T15:04", ts)
	if err != nil {
		panic(err)
	}
	return domain.EventRecord{Event: event, MessageID: id, ProcessedAt: t, Subject: subject, Recipient: recipient}
}

func day(s string) domain.Day {
	d, err := domain.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// scenarioRecords is the deduplicated five-row example: two messages over two days.
func scenarioRecords() []domain.EventRecord {
	return []domain.EventRecord{
		rec(domain.EventProcessed, "M1", "2024-01-01T10:00", domain.Unspecified, domain.Unspecified),
		rec(domain.EventDelivered, "M1", "2024-01-01T11:00", domain.Unspecified, domain.Unspecified),
		rec(domain.EventProcessed, "M2", "2024-01-02T08:00", domain.Unspecified, domain.Unspecified),
		rec(domain.EventBounce, "M2", "2024-01-02T09:00", domain.Unspecified, domain.Unspecified),
	}
}

func mixedRecords() []domain.EventRecord {
	return []domain.EventRecord{
		rec(domain.EventProcessed, "M1", "2024-03-01T09:00", "Welcome", "a@example.com"),
		rec(domain.EventDelivered, "M1", "2024-03-01T09:01", "Welcome", "a@example.com"),
		rec(domain.EventOpen, "M1", "2024-03-02T12:00", "Welcome", "a@example.com"),
		rec(domain.EventProcessed, "M2", "2024-03-01T09:00", "Sale", "b@example.com"),
		rec(domain.EventBounce, "M2", "2024-03-01T09:02", "Sale", "b@example.com"),
		rec(domain.EventProcessed, "M3", "2024-03-04T10:00", "Sale", "c@example.com"),
		rec(domain.EventDelivered, "M3", "2024-03-04T10:01", "Sale", "c@example.com"),
		rec(domain.EventOpen, "M3", "2024-03-04T18:30", "Sale", "c@example.com"),
		rec(domain.EventProcessed, "M4", "2024-03-05T07:00", domain.Unspecified, domain.Unspecified),
	}
}

func TestApplyFilter(t *testing.T) {
	records := mixedRecords()

	tests := []struct {
		name   string
		filter domain.Filter
		want   int
	}{
		{"no filter", domain.Filter{}, 9},
		{"date range inclusive", domain.Filter{DateRange: &domain.DateRange{Start: day("2024-03-01"), End: day("2024-03-02")}}, 5},
		{"single day", domain.Filter{DateRange: &domain.DateRange{Start: day("2024-03-04"), End: day("2024-03-04")}}, 3},
		{"include subject", domain.Filter{IncludeSubjects: []string{"Sale"}}, 5},
		{"include unknown subject", domain.Filter{IncludeSubjects: []string{"Nope"}}, 0},
		{"explicit empty include", domain.Filter{IncludeSubjects: []string{}}, 0},
		{"exclude recipient", domain.Filter{ExcludeRecipients: []string{"c@example.com"}}, 6},
		{"empty exclude is inactive", domain.Filter{ExcludeRecipients: []string{}}, 9},
		{"combined", domain.Filter{
			DateRange:         &domain.DateRange{Start: day("2024-03-01"), End: day("2024-03-04")},
			IncludeSubjects:   []string{"Sale"},
			ExcludeRecipients: []string{"b@example.com"},
		}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilter(records, tt.filter)
			assert.Len(t, got, tt.want)
			assert.NotNil(t, got)
		})
	}
}

func TestApplyFilterDoesNotModifyInput(t *testing.T) {
	records := mixedRecords()
	before := append([]domain.EventRecord(nil), records...)

	_ = ApplyFilter(records, domain.Filter{ExcludeRecipients: []string{"a@example.com"}})

	assert.Equal(t, before, records)
}

func TestApplyFilterCompositionIsOrderIndependent(t *testing.T) {
	records := mixedRecords()
	include := domain.Filter{IncludeSubjects: []string{"Sale"}}
	exclude := domain.Filter{ExcludeRecipients: []string{"b@example.com"}}
	both := domain.Filter{IncludeSubjects: []string{"Sale"}, ExcludeRecipients: []string{"b@example.com"}}

	a := ApplyFilter(ApplyFilter(records, include), exclude)
	b := ApplyFilter(ApplyFilter(records, exclude), include)
	c := ApplyFilter(records, both)

	assert.Equal(t, c, a)
	assert.Equal(t, c, b)
}

func TestDailyScenario(t *testing.T) {
	daily := NewAggregator().Daily(scenarioRecords())

	require.Len(t, daily, 2)
	assert.Equal(t, domain.DailyMetrics{
		Day: day("2024-01-01"), ProcessedCount: 1, DeliveredCount: 1,
		DeliveredMatched: 1, DeliveryRate: 1, OpenRate: 0, BounceRate: 0,
	}, daily[0])
	assert.Equal(t, domain.DailyMetrics{
		Day: day("2024-01-02"), ProcessedCount: 1, BounceCount: 1,
		BounceMatched: 1, DeliveryRate: 0, OpenRate: 0, BounceRate: 1,
	}, daily[1])

	s := NewSummaryCalculator(nil).Summarize(daily)
	assert.Equal(t, 2, s.ProcessedCount)
	assert.Equal(t, 1, s.DeliveredCount)
	assert.Equal(t, 1, s.BounceCount)
	assert.Equal(t, 0.5, s.DeliveryRate)
	assert.Equal(t, 0.5, s.BounceRate)
	assert.Equal(t, 0.0, s.OpenRate)
	assert.Equal(t, 2, s.Days)
}

func TestDailyIsSortedAndHasNoGapDays(t *testing.T) {
	records := mixedRecords()
	// reverse to make sure ordering comes from the aggregator
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	daily := NewAggregator().Daily(records)

	var days []string
	for _, d := range daily {
		days = append(days, d.Day.String())
	}
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-04", "2024-03-05"}, days)
}

func TestDailyCountsAreLossFree(t *testing.T) {
	records := mixedRecords()
	daily := NewAggregator().Daily(records)

	want := map[domain.EventType]int{}
	for _, r := range records {
		want[r.Event]++
	}
	got := map[domain.EventType]int{}
	for _, d := range daily {
		for _, et := range domain.DefaultEventVocabulary() {
			got[et] += d.Count(et)
		}
	}
	for _, et := range domain.DefaultEventVocabulary() {
		assert.Equal(t, want[et], got[et], string(et))
	}
}

func assertRatesBounded(t *testing.T, label string, delivery, open, bounce float64) {
	t.Helper()
	for name, r := range map[string]float64{"delivery": delivery, "open": open, "bounce": bounce} {
		assert.GreaterOrEqual(t, r, 0.0, "%s %s", label, name)
		assert.LessOrEqual(t, r, 1.0, "%s %s", label, name)
	}
}

func TestRatesAreBoundedAndGuarded(t *testing.T) {
	daily := NewAggregator().Daily(mixedRecords())

	for _, d := range daily {
		assertRatesBounded(t, d.Day.String(), d.DeliveryRate, d.OpenRate, d.BounceRate)
		if d.ProcessedCount == 0 {
			assert.Zero(t, d.DeliveryRate)
			assert.Zero(t, d.BounceRate)
		}
		if d.DeliveredCount == 0 {
			assert.Zero(t, d.OpenRate)
		}
	}

	// 2024-03-02 only has an open: every denominator is zero.
	assert.Equal(t, domain.DailyMetrics{Day: day("2024-03-02"), OpenCount: 1}, daily[1])

	// Deliveries outnumber processed rows but only one is matched.
	s := NewSummaryCalculator(nil).Summarize([]domain.DailyMetrics{
		{Day: day("2024-03-01"), ProcessedCount: 1, DeliveredCount: 2, OpenCount: 3, DeliveredMatched: 1, OpenMatched: 2},
	})
	assert.Equal(t, 1.0, s.DeliveryRate)
	assert.Equal(t, 1.0, s.OpenRate)
	assertRatesBounded(t, "summary", s.DeliveryRate, s.OpenRate, s.BounceRate)
}

func TestRatesStayBoundedAcrossDays(t *testing.T) {
	records := []domain.EventRecord{
		rec(domain.EventProcessed, "M1", "2024-01-01T10:00", "A", "a@example.com"),
		rec(domain.EventDelivered, "M1", "2024-01-01T10:01", "A", "a@example.com"),
		rec(domain.EventOpen, "M1", "2024-01-02T09:00", "A", "a@example.com"),
		rec(domain.EventProcessed, "M2", "2024-01-02T08:00", "A", "b@example.com"),
		rec(domain.EventDelivered, "M2", "2024-01-02T08:01", "A", "b@example.com"),
		rec(domain.EventOpen, "M2", "2024-01-02T12:00", "A", "b@example.com"),
		rec(domain.EventProcessed, "M3", "2024-01-02T23:59", "A", "c@example.com"),
		rec(domain.EventDelivered, "M3", "2024-01-03T00:01", "A", "c@example.com"),
		// no processed row at all
		rec(domain.EventDelivered, "M4", "2024-01-03T05:00", "A", "d@example.com"),
		rec(domain.EventOpen, "M4", "2024-01-03T06:00", "A", "d@example.com"),
	}

	daily := NewAggregator().Daily(records)
	require.Len(t, daily, 3)
	for _, d := range daily {
		assertRatesBounded(t, d.Day.String(), d.DeliveryRate, d.OpenRate, d.BounceRate)
	}

	jan2 := daily[1]
	assert.Equal(t, 2, jan2.ProcessedCount)
	assert.Equal(t, 1, jan2.DeliveredCount)
	assert.Equal(t, 2, jan2.OpenCount)
	assert.Equal(t, 0.5, jan2.DeliveryRate)
	assert.Equal(t, 1.0, jan2.OpenRate)

	jan3 := daily[2]
	assert.Equal(t, 2, jan3.DeliveredCount)
	assert.Zero(t, jan3.DeliveryRate)
	assert.Equal(t, 0.5, jan3.OpenRate)

	s := NewSummaryCalculator(nil).Summarize(daily)
	assert.Equal(t, 3, s.ProcessedCount)
	assert.Equal(t, 4, s.DeliveredCount)
	assert.Equal(t, 3, s.OpenCount)
	assert.InDelta(t, 2.0/3.0, s.DeliveryRate, 1e-12)
	assert.Equal(t, 0.5, s.OpenRate)
	assertRatesBounded(t, "summary", s.DeliveryRate, s.OpenRate, s.BounceRate)
}

func TestRatesStayBoundedForScatteredEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	events := domain.DefaultEventVocabulary()
	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	var records []domain.EventRecord
	for msg := 0; msg < 200; msg++ {
		for _, et := range events {
			if rng.Intn(3) == 0 {
				continue
			}
			at := start.Add(time.Duration(rng.Intn(5*24*60)) * time.Minute)
			records = append(records, domain.EventRecord{
				Event: et, MessageID: fmt.Sprintf("M%d", msg), ProcessedAt: at,
				Subject: "S", Recipient: "r@example.com",
			})
		}
	}

	daily := NewAggregator().Daily(records)
	require.NotEmpty(t, daily)
	for _, d := range daily {
		assertRatesBounded(t, d.Day.String(), d.DeliveryRate, d.OpenRate, d.BounceRate)
	}
	s := NewSummaryCalculator(nil).Summarize(daily)
	assert.Equal(t, len(records), s.ProcessedCount+s.DeliveredCount+s.OpenCount+s.BounceCount)
	assertRatesBounded(t, "summary", s.DeliveryRate, s.OpenRate, s.BounceRate)
}

func TestSummaryRatesComeFromTotals(t *testing.T) {
	daily := []domain.DailyMetrics{
		{Day: day("2024-01-01"), ProcessedCount: 1, DeliveredCount: 1, DeliveredMatched: 1, DeliveryRate: 1},
		{Day: day("2024-01-02"), ProcessedCount: 99, DeliveredCount: 9, DeliveredMatched: 9, DeliveryRate: 9.0 / 99},
	}

	s := NewSummaryCalculator(nil).Summarize(daily)

	assert.InDelta(t, 0.10, s.DeliveryRate, 1e-12)
}

func TestRateTier(t *testing.T) {
	b := domain.DefaultBenchmarks()

	tests := []struct {
		metric domain.Metric
		value  float64
		want   domain.Rating
	}{
		{domain.MetricDeliveryRate, 0.96, domain.RatingExcellent},
		{domain.MetricDeliveryRate, 0.95, domain.RatingExcellent},
		{domain.MetricDeliveryRate, 0.90, domain.RatingGood},
		{domain.MetricDeliveryRate, 0.89, domain.RatingNeedsImprovement},
		{domain.MetricOpenRate, 0.25, domain.RatingExcellent},
		{domain.MetricOpenRate, 0.20, domain.RatingGood},
		{domain.MetricOpenRate, 0.10, domain.RatingNeedsImprovement},
		{domain.MetricBounceRate, 0.0, domain.RatingExcellent},
		{domain.MetricBounceRate, 0.02, domain.RatingExcellent},
		{domain.MetricBounceRate, 0.03, domain.RatingGood},
		{domain.MetricBounceRate, 0.05, domain.RatingGood},
		{domain.MetricBounceRate, 0.06, domain.RatingNeedsImprovement},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%.2f", tt.metric, tt.value), func(t *testing.T) {
			assert.Equal(t, tt.want, RateTier(tt.metric, tt.value, b))
		})
	}
}

func TestRateTierUnconfiguredMetric(t *testing.T) {
	b := domain.Benchmarks{domain.MetricDeliveryRate: {domain.RatingGood: 0.9}}

	assert.Equal(t, domain.RatingExcellent, RateTier(domain.MetricOpenRate, 0, b))
	assert.Equal(t, domain.RatingGood, RateTier(domain.MetricDeliveryRate, 0.99, b))
}

func TestWeakestLink(t *testing.T) {
	assert.Equal(t, domain.RatingExcellent, WeakestLink())
	assert.Equal(t, domain.RatingGood, WeakestLink(domain.RatingExcellent, domain.RatingGood))
	assert.Equal(t, domain.RatingNeedsImprovement,
		WeakestLink(domain.RatingExcellent, domain.RatingNeedsImprovement, domain.RatingExcellent))
}

func TestSummaryWeakestLinkRating(t *testing.T) {
	// 96% delivered, 10% opened, 1% bounced.
	daily := []domain.DailyMetrics{{
		Day:            day("2024-05-01"),
		ProcessedCount: 1000,
		DeliveredCount: 960,
		OpenCount:      96,
		BounceCount:    10,

		DeliveredMatched: 960,
		OpenMatched:      96,
		BounceMatched:    10,
	}}

	s := NewSummaryCalculator(domain.DefaultBenchmarks()).Summarize(daily)

	assert.InDelta(t, 0.96, s.DeliveryRate, 1e-12)
	assert.InDelta(t, 0.10, s.OpenRate, 1e-12)
	assert.InDelta(t, 0.01, s.BounceRate, 1e-12)
	assert.Equal(t, domain.RatingExcellent, s.DeliveryStatus)
	assert.Equal(t, domain.RatingNeedsImprovement, s.OpenStatus)
	assert.Equal(t, domain.RatingExcellent, s.BounceStatus)
	assert.Equal(t, domain.RatingNeedsImprovement, s.Rating)
}

func TestEngineEmptyIncludeProducesZeroResult(t *testing.T) {
	var records []domain.EventRecord
	for i := 0; i < 100; i++ {
		ts := fmt.Sprintf("2024-02-%02dT10:00", i%28+1)
		records = append(records, rec(domain.EventProcessed, fmt.Sprintf("M%d", i), ts, "Weekly", "x@example.com"))
	}

	res := NewEngine(nil).Compute(records, domain.Filter{IncludeSubjects: []string{}})

	assert.True(t, res.Empty)
	assert.NotNil(t, res.Daily)
	assert.Empty(t, res.Daily)
	assert.Zero(t, res.Summary.ProcessedCount)
	assert.Zero(t, res.Summary.DeliveredCount)
	assert.Zero(t, res.Summary.OpenCount)
	assert.Zero(t, res.Summary.BounceCount)
	assert.Zero(t, res.Summary.DeliveryRate)
	assert.Zero(t, res.Summary.OpenRate)
	assert.Zero(t, res.Summary.BounceRate)
	assert.Zero(t, res.Summary.Days)
}

func TestEngineCompute(t *testing.T) {
	res := NewEngine(domain.DefaultBenchmarks()).Compute(mixedRecords(), domain.Filter{IncludeSubjects: []string{"Sale"}})

	assert.False(t, res.Empty)
	assert.Len(t, res.Daily, 2)
	assert.Equal(t, 2, res.Summary.ProcessedCount)
	assert.Equal(t, 1, res.Summary.DeliveredCount)
	assert.Equal(t, 1, res.Summary.OpenCount)
	assert.Equal(t, 1, res.Summary.BounceCount)
}

func TestDiscoverOptions(t *testing.T) {
	opts := DiscoverOptions(mixedRecords())

	assert.Equal(t, day("2024-03-01"), opts.Start)
	assert.Equal(t, day("2024-03-05"), opts.End)
	assert.Equal(t, []string{"Sale", "Welcome", domain.Unspecified}, opts.Subjects)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, opts.Recipients)
}

func TestDiscoverOptionsEmpty(t *testing.T) {
	opts := DiscoverOptions(nil)

	assert.True(t, opts.Start.IsZero())
	assert.Empty(t, opts.Subjects)
	assert.NotNil(t, opts.Recipients)
}

func TestDayMetrics(t *testing.T) {
	daily := NewAggregator().Daily(mixedRecords())

	got := DayMetrics(daily, day("2024-03-04"))
	assert.Equal(t, 1, got.ProcessedCount)
	assert.Equal(t, 1, got.OpenCount)

	missing := DayMetrics(daily, day("2024-03-03"))
	assert.Equal(t, domain.DailyMetrics{Day: day("2024-03-03")}, missing)

	assert.Equal(t, domain.DailyMetrics{Day: day("2024-12-31")}, DayMetrics(daily, day("2024-12-31")))
}
