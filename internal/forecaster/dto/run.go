package dto

import (
	"time"
)

// Pair outcome statuses.
const (
	PairStatusSuccess = "SUCCESS"
	PairStatusSkipped = "SKIPPED"
	PairStatusFailed  = "FAILED"
)

// Pair failure/skip reasons.
const (
	ReasonInsufficientHistory = "INSUFFICIENT_HISTORY"
	ReasonModelFit            = "MODEL_FIT_ERROR"
	ReasonComputation         = "COMPUTATION_ERROR"
	ReasonHistoryUnavailable  = "HISTORY_UNAVAILABLE"
	ReasonDeadlineExceeded    = "RUN_DEADLINE_EXCEEDED"
)

// PairOutcome is the outcome of one (symbol, method) forecast computation.
// Every requested pair appears in the run report with exactly one of these,
// so no failure is ever silent.
type PairOutcome struct {
	Symbol  string `json:"symbol"`
	Method  string `json:"method"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Warning string `json:"warning,omitempty"`
	Records int    `json:"records"`
}

// RunReport is the user-visible result of one pipeline run.
type RunReport struct {
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	HorizonDays int              `json:"horizon_days"`
	Outcomes    []PairOutcome    `json:"outcomes"`
	Reconcile   *ReconcileReport `json:"reconcile,omitempty"`
	StoreError  string           `json:"store_error,omitempty"`
}

// Succeeded counts pairs that produced records.
func (r *RunReport) Succeeded() int {
	count := 0
	for _, o := range r.Outcomes {
		if o.Status == PairStatusSuccess {
			count++
		}
	}
	return count
}

// RunRequest is the payload published on the forecast.run stream.
type RunRequest struct {
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
}

// Run trigger sources.
const (
	TriggerSchedule = "SCHEDULE"
	TriggerManual   = "MANUAL"
	TriggerCLI      = "CLI"
)
