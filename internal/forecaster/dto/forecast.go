package dto

import (
	"time"
)

// ReconcileReport summarizes how a batch of forecast records was merged
// into the store.
type ReconcileReport struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Total returns the number of records covered by the report.
func (r *ReconcileReport) Total() int {
	return r.Inserted + r.Updated + r.Unchanged
}

// ForecastFilter narrows a forecast query. Zero values mean "no filter".
type ForecastFilter struct {
	Symbol string
	Method string
	From   *time.Time
	To     *time.Time
}

// ForecastSummary is the aggregate view served to the dashboard.
type ForecastSummary struct {
	TotalRecords int64            `json:"total_records"`
	ByMethod     map[string]int64 `json:"by_method"`
	BySymbol     map[string]int64 `json:"by_symbol"`
	FirstDate    *time.Time       `json:"first_date,omitempty"`
	LastDate     *time.Time       `json:"last_date,omitempty"`
}
