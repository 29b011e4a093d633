package domain

// DailyMetrics is one row of the daily metrics table. Rates are fractions in
// [0, 1]; percentage conversion happens in the report and chart layers.
type DailyMetrics struct {
	Day            Day     `json:"day"`
	ProcessedCount int     `json:"processed_count"`
	DeliveredCount int     `json:"delivered_count"`
	OpenCount      int     `json:"open_count"`
	BounceCount    int     `json:"bounce_count"`
	DeliveryRate   float64 `json:"delivery_rate"`
	OpenRate       float64 `json:"open_rate"`
	BounceRate     float64 `json:"bounce_rate"`

	// Rate numerators. A delivery or bounce counts only when its message was
	// processed on the same day, an open only when its message was
	// delivered on the same day, so rates never exceed 1.
	DeliveredMatched int `json:"delivered_matched"`
	OpenMatched      int `json:"open_matched"`
	BounceMatched    int `json:"bounce_matched"`
}

// Total returns the number of counted events on the day.
func (m DailyMetrics) Total() int {
	return m.ProcessedCount + m.DeliveredCount + m.OpenCount + m.BounceCount
}

// Count returns the counter for an event type.
func (m DailyMetrics) Count(et EventType) int {
	switch et {
	case EventProcessed:
		return m.ProcessedCount
	case EventDelivered:
		return m.DeliveredCount
	case EventOpen:
		return m.OpenCount
	case EventBounce:
		return m.BounceCount
	}
	return 0
}

// SummaryMetrics reduces a daily table to totals, overall rates and a rating.
type SummaryMetrics struct {
	ProcessedCount int     `json:"processed_count"`
	DeliveredCount int     `json:"delivered_count"`
	OpenCount      int     `json:"open_count"`
	BounceCount    int     `json:"bounce_count"`
	DeliveryRate   float64 `json:"delivery_rate"`
	OpenRate       float64 `json:"open_rate"`
	BounceRate     float64 `json:"bounce_rate"`

	DeliveredMatched int `json:"delivered_matched"`
	OpenMatched      int `json:"open_matched"`
	BounceMatched    int `json:"bounce_matched"`

	Days   int    `json:"days"`
	Rating Rating `json:"rating"`

	DeliveryStatus Rating `json:"delivery_status"`
	OpenStatus     Rating `json:"open_status"`
	BounceStatus   Rating `json:"bounce_status"`
}

// Rate computes num/den, defined as 0 when den is 0.
func Rate(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}
