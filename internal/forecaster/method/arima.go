package method

import (
	"fmt"
	"math"

	"golang-stock-forecaster/internal/entity"
)

// z-score for a two-sided 95% confidence interval.
const z95 = 1.959963984540054

// ARIMA fits an ARIMA(1,1,1) model without drift: the first differences
// w_t follow w_t = phi*w_{t-1} + e_t + theta*e_{t-1}. The order is fixed;
// parameters are estimated by a conditional-sum-of-squares grid search
// over (phi, theta), which is fully deterministic for a given input.
//
// Point forecasts come from the ARMA recursion on the differences,
// integrated back to price levels. The 95% interval per day uses standard
// psi-weight error propagation of the integrated process.
type ARIMA struct {
	minHistory int
}

// NewARIMA creates the ARIMA forecaster. A non-positive minHistory falls
// back to the default floor of 15, which the model needs to estimate its
// parameters with any stability.
func NewARIMA(minHistory int) *ARIMA {
	if minHistory <= 0 {
		minHistory = 15
	}
	return &ARIMA{minHistory: minHistory}
}

func (a *ARIMA) Name() entity.ForecastMethod {
	return entity.MethodARIMA
}

func (a *ARIMA) MinHistory() int {
	return a.minHistory
}

func (a *ARIMA) Forecast(series Series, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be positive", ErrComputation)
	}
	if len(series) < a.minHistory {
		return nil, fmt.Errorf("%w: need at least %d points, got %d", ErrInsufficientHistory, a.minHistory, len(series))
	}

	closes := series.Closes()
	n := len(closes)

	diffs := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diffs[i-1] = closes[i] - closes[i-1]
	}

	phi, theta, sigma2, lastErr, err := fitARMA11(diffs)
	if err != nil {
		return nil, err
	}

	// Forecast the differences, then integrate back to levels.
	level := closes[n-1]
	wPrev := diffs[len(diffs)-1]
	ePrev := lastErr

	// Psi weights of the ARMA(1,1) on differences: psi_0 = 1,
	// psi_1 = phi + theta, psi_j = phi * psi_{j-1}. The integrated
	// process propagates their cumulative sums.
	cumPsi := make([]float64, horizon)
	cumPsi[0] = 1
	psi := phi + theta
	for j := 1; j < horizon; j++ {
		cumPsi[j] = cumPsi[j-1] + psi
		psi *= phi
	}

	varSum := 0.0
	predictions := make([]Prediction, 0, horizon)
	for day := 1; day <= horizon; day++ {
		var wHat float64
		if day == 1 {
			wHat = phi*wPrev + theta*ePrev
		} else {
			wHat = phi * wPrev
		}
		level += wHat
		wPrev = wHat

		varSum += cumPsi[day-1] * cumPsi[day-1]
		se := math.Sqrt(sigma2 * varSum)

		predictions = append(predictions, Prediction{
			Day:   day,
			Close: level,
			Lower: float64Ptr(level - z95*se),
			Upper: float64Ptr(level + z95*se),
		})
	}

	return &Result{Predictions: predictions}, nil
}

// fitARMA11 estimates phi and theta by minimizing the conditional sum of
// squared one-step residuals over a fixed grid, and returns the innovation
// variance and the final residual. The grid step of 0.05 keeps the search
// deterministic and cheap while staying well inside the stationarity and
// invertibility region.
func fitARMA11(w []float64) (phi, theta, sigma2, lastErr float64, err error) {
	if len(w) < 3 {
		return 0, 0, 0, 0, fmt.Errorf("%w: too few differences", ErrModelFit)
	}

	bestSSE := math.Inf(1)
	var bestPhi, bestTheta, bestLastErr float64

	for p := -0.95; p <= 0.951; p += 0.05 {
		for t := -0.95; t <= 0.951; t += 0.05 {
			sse := 0.0
			ePrev := 0.0
			for i := 1; i < len(w); i++ {
				e := w[i] - p*w[i-1] - t*ePrev
				sse += e * e
				ePrev = e
			}
			if sse < bestSSE {
				bestSSE = sse
				bestPhi = p
				bestTheta = t
				bestLastErr = ePrev
			}
		}
	}

	dof := len(w) - 1 - 2
	if dof < 1 {
		return 0, 0, 0, 0, fmt.Errorf("%w: not enough degrees of freedom", ErrModelFit)
	}

	sigma2 = bestSSE / float64(dof)
	if !isFinite(sigma2) || sigma2 <= 0 {
		// A zero or non-finite innovation variance means the fit
		// degenerated (for example on a perfectly constant series).
		return 0, 0, 0, 0, fmt.Errorf("%w: degenerate innovation variance", ErrModelFit)
	}

	return bestPhi, bestTheta, sigma2, bestLastErr, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
