package method

import (
	"fmt"

	"golang-stock-forecaster/internal/entity"
)

// Linear fits an ordinary least-squares line of close price against a
// zero-based day index and extrapolates it beyond the last observation.
// It produces no interval estimates.
type Linear struct{}

// NewLinear creates the linear trend forecaster.
func NewLinear() *Linear {
	return &Linear{}
}

func (l *Linear) Name() entity.ForecastMethod {
	return entity.MethodLinear
}

func (l *Linear) MinHistory() int {
	return 5
}

func (l *Linear) Forecast(series Series, horizon int) (*Result, error) {
	if len(series) < l.MinHistory() {
		return nil, fmt.Errorf("%w: need at least %d points, got %d", ErrInsufficientHistory, l.MinHistory(), len(series))
	}

	intercept, slope := fitLine(series.Closes())

	n := len(series)
	predictions := make([]Prediction, 0, horizon)
	for day := 1; day <= horizon; day++ {
		idx := float64(n - 1 + day)
		predictions = append(predictions, Prediction{
			Day:   day,
			Close: intercept + slope*idx,
		})
	}

	return &Result{Predictions: predictions}, nil
}

// fitLine returns the OLS intercept and slope of y over indexes 0..n-1.
func fitLine(y []float64) (intercept, slope float64) {
	n := float64(len(y))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return y[0], 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return intercept, slope
}
