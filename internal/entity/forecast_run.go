package entity

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

// Forecast run statuses.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusPartial   = "PARTIAL"
	RunStatusFailed    = "FAILED"
)

// ForecastRun is the audit trail of one pipeline execution: which symbols
// were requested, and the per-pair outcome report as JSON.
type ForecastRun struct {
	ID           int64          `json:"id" gorm:"primaryKey"`
	Status       string         `json:"status" gorm:"size:20;not null"`
	Trigger      string         `json:"trigger" gorm:"size:20"`
	HorizonDays  int            `json:"horizon_days"`
	Symbols      datatypes.JSON `json:"symbols" gorm:"type:jsonb"`
	Report       datatypes.JSON `json:"report" gorm:"type:jsonb"`
	ErrorMessage sql.NullString `json:"error_message"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  sql.NullTime   `json:"completed_at"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (ForecastRun) TableName() string {
	return "forecast_runs"
}
