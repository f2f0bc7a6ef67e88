package method

import (
	"fmt"

	"golang-stock-forecaster/internal/entity"
)

// MovingAverage forecasts from an exponentially weighted moving average
// with smoothing factor alpha = 2/(span+1).
//
// Extrapolation rule: the forecast for every horizon day is the constant
//
//	ewma(last) + (close[n-1] - close[n-1-w]) / w
//
// where w = min(trendWindow, n-1). The most recently observed average
// trend delta is applied exactly once, so the method captures momentum
// without re-fitting per day and two runs over the same series always
// produce identical output. No interval estimates.
type MovingAverage struct {
	span        int
	trendWindow int
}

// NewMovingAverage creates the EWMA forecaster. Non-positive arguments
// fall back to the defaults (span 10, trend window 10).
func NewMovingAverage(span, trendWindow int) *MovingAverage {
	if span <= 0 {
		span = 10
	}
	if trendWindow <= 0 {
		trendWindow = 10
	}
	return &MovingAverage{span: span, trendWindow: trendWindow}
}

func (m *MovingAverage) Name() entity.ForecastMethod {
	return entity.MethodMovingAverage
}

func (m *MovingAverage) MinHistory() int {
	return 5
}

func (m *MovingAverage) Forecast(series Series, horizon int) (*Result, error) {
	if len(series) < m.MinHistory() {
		return nil, fmt.Errorf("%w: need at least %d points, got %d", ErrInsufficientHistory, m.MinHistory(), len(series))
	}

	closes := series.Closes()
	n := len(closes)

	alpha := 2.0 / (float64(m.span) + 1.0)
	ewma := closes[0]
	for _, v := range closes[1:] {
		ewma = alpha*v + (1-alpha)*ewma
	}

	w := m.trendWindow
	if w > n-1 {
		w = n - 1
	}
	trendDelta := (closes[n-1] - closes[n-1-w]) / float64(w)

	constant := ewma + trendDelta

	predictions := make([]Prediction, 0, horizon)
	for day := 1; day <= horizon; day++ {
		predictions = append(predictions, Prediction{Day: day, Close: constant})
	}

	return &Result{Predictions: predictions}, nil
}
