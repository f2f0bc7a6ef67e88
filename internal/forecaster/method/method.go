package method

import (
	"errors"
	"time"

	"golang-stock-forecaster/internal/entity"
)

// Sentinel errors shared by all forecasting methods. Per-pair failures are
// reported through these so the engine can classify outcomes without
// aborting a batch.
var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrModelFit            = errors.New("model fit failed")
	ErrComputation         = errors.New("computation error")
)

// PricePoint is one observed daily close.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// Series is an ordered daily close series, strictly increasing by date.
// Missing trading days are simply absent. Methods must never mutate it.
type Series []PricePoint

// Closes returns a copy of the close prices in order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, p := range s {
		closes[i] = p.Close
	}
	return closes
}

// Last returns the most recent observation.
func (s Series) Last() PricePoint {
	return s[len(s)-1]
}

// Prediction is one day-ahead point forecast. Lower/Upper are nil for
// methods that do not produce interval estimates.
type Prediction struct {
	Day   int
	Close float64
	Lower *float64
	Upper *float64
}

// Result carries a method's predictions plus an optional degradation
// warning (forecast still produced, but with reduced model quality).
type Result struct {
	Predictions []Prediction
	Degraded    string
}

// Forecaster produces N-day-ahead predictions from a price series. New
// methods are added by implementing this interface; the engine never
// branches on method names.
type Forecaster interface {
	Name() entity.ForecastMethod
	// MinHistory is the method's own floor on series length. The engine
	// applies the larger of this and the configured global minimum.
	MinHistory() int
	Forecast(series Series, horizon int) (*Result, error)
}

func float64Ptr(v float64) *float64 {
	return &v
}
