package entity

import (
	"time"
)

// ForecastMethod identifies a forecasting algorithm.
type ForecastMethod string

const (
	MethodLinear        ForecastMethod = "linear"
	MethodMovingAverage ForecastMethod = "moving_average"
	MethodARIMA         ForecastMethod = "arima"
	MethodProphet       ForecastMethod = "prophet"
)

// AllMethods lists every supported forecasting method.
func AllMethods() []ForecastMethod {
	return []ForecastMethod{MethodLinear, MethodMovingAverage, MethodARIMA, MethodProphet}
}

// ParseForecastMethod validates a method name from config or an API request.
func ParseForecastMethod(s string) (ForecastMethod, bool) {
	switch ForecastMethod(s) {
	case MethodLinear, MethodMovingAverage, MethodARIMA, MethodProphet:
		return ForecastMethod(s), true
	}
	return "", false
}

// ForecastStock is one predicted close for one symbol, one method and one
// future calendar date. The (forecast_date, symbol, method) triple is the
// natural key; GeneratedAt is informational only and never part of identity.
type ForecastStock struct {
	ID             int64          `json:"id" gorm:"primaryKey"`
	CreatedAt      time.Time      `json:"created_at" gorm:"autoCreateTime"`
	ForecastDate   time.Time      `json:"forecast_date" gorm:"type:date;uniqueIndex:uq_forecast_stocks_key"`
	Symbol         string         `json:"symbol" gorm:"size:20;uniqueIndex:uq_forecast_stocks_key"`
	Method         ForecastMethod `json:"method" gorm:"size:50;uniqueIndex:uq_forecast_stocks_key"`
	PredictedClose float64        `json:"predicted_close" gorm:"not null"`
	PriceChange    *float64       `json:"price_change"`
	PriceChangePct *float64       `json:"price_change_pct"`
	ForecastDay    *int           `json:"forecast_day"`
	LowerBound     *float64       `json:"lower_bound"`
	UpperBound     *float64       `json:"upper_bound"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

func (ForecastStock) TableName() string {
	return "forecast_stocks"
}
