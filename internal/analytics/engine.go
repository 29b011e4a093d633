package analytics

import (
	"github.com/ignite/sendgrid-analytics/internal/domain"
)

// Result is one full recomputation: the daily table and its summary.
type Result struct {
	Daily   []domain.DailyMetrics `json:"daily"`
	Summary domain.SummaryMetrics `json:"summary"`
	// Empty is set when the filter matched no records. It is a state for
	// the presentation layer to show, not an error.
	Empty bool `json:"empty"`
}

// Engine runs filter -> aggregate -> summarize over a cleaned dataset.
type Engine struct {
	aggregator *Aggregator
	summary    *SummaryCalculator
}

// NewEngine creates an Engine rating summaries against b.
func NewEngine(b domain.Benchmarks) *Engine {
	return &Engine{
		aggregator: NewAggregator(),
		summary:    NewSummaryCalculator(b),
	}
}

// Compute recomputes the daily table and summary for records under f.
func (e *Engine) Compute(records []domain.EventRecord, f domain.Filter) Result {
	filtered := ApplyFilter(records, f)
	daily := e.aggregator.Daily(filtered)
	return Result{
		Daily:   daily,
		Summary: e.summary.Summarize(daily),
		Empty:   len(daily) == 0,
	}
}
