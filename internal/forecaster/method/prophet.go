package method

import (
	"fmt"
	"math"
	"time"

	"golang-stock-forecaster/internal/entity"
)

// Number of points below which weekly seasonality cannot be estimated:
// two calendar weeks of daily bars, so every weekday in the series has
// been observed at least twice.
const prophetSeasonalFloor = 14

// Prophet fits an additive trend plus day-of-week seasonality model by
// least squares, in the spirit of the Prophet decomposition. When the
// series is too short to cover a full weekly cycle the model falls back
// to trend-only and flags the degradation instead of failing.
//
// The 95% interval per day is derived from the in-sample residual
// standard deviation, widened with the forecast horizon.
type Prophet struct {
	minHistory int
}

// NewProphet creates the additive-seasonality forecaster. A non-positive
// minHistory falls back to the default floor of 10.
func NewProphet(minHistory int) *Prophet {
	if minHistory <= 0 {
		minHistory = 10
	}
	return &Prophet{minHistory: minHistory}
}

func (p *Prophet) Name() entity.ForecastMethod {
	return entity.MethodProphet
}

func (p *Prophet) MinHistory() int {
	return p.minHistory
}

func (p *Prophet) Forecast(series Series, horizon int) (*Result, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: horizon must be positive", ErrComputation)
	}
	if len(series) < p.minHistory {
		return nil, fmt.Errorf("%w: need at least %d points, got %d", ErrInsufficientHistory, p.minHistory, len(series))
	}

	n := len(series)
	degraded := ""

	var weekdays []time.Weekday
	if n >= prophetSeasonalFloor {
		weekdays = observedWeekdays(series)
	} else {
		degraded = fmt.Sprintf("weekly seasonality disabled: %d points cover less than one full cycle, trend-only fit", n)
	}

	coef, sigma, err := fitAdditive(series, weekdays)
	if err != nil && len(weekdays) > 0 {
		// Collinear seasonal design, retry trend-only.
		degraded = "weekly seasonality dropped: singular seasonal design, trend-only fit"
		weekdays = nil
		coef, sigma, err = fitAdditive(series, nil)
	}
	if err != nil {
		return nil, err
	}

	lastDate := series.Last().Date
	predictions := make([]Prediction, 0, horizon)
	for day := 1; day <= horizon; day++ {
		futureDate := lastDate.AddDate(0, 0, day)
		idx := float64(n - 1 + day)

		yhat := coef[0] + coef[1]*idx
		for k, wd := range weekdays {
			if futureDate.Weekday() == wd {
				yhat += coef[2+k]
			}
		}

		// Uncertainty grows with distance from the fitted window.
		se := sigma * math.Sqrt(1+float64(day)/float64(n))
		predictions = append(predictions, Prediction{
			Day:   day,
			Close: yhat,
			Lower: float64Ptr(yhat - z95*se),
			Upper: float64Ptr(yhat + z95*se),
		})
	}

	return &Result{Predictions: predictions, Degraded: degraded}, nil
}

// observedWeekdays lists the weekdays present in the series beyond the
// first, which serves as the seasonal baseline. Weekdays absent from
// history (for example weekends in trading data) get no dummy column and
// a zero seasonal effect.
func observedWeekdays(series Series) []time.Weekday {
	seen := make(map[time.Weekday]bool)
	var order []time.Weekday
	for _, pt := range series {
		wd := pt.Date.Weekday()
		if !seen[wd] {
			seen[wd] = true
			order = append(order, wd)
		}
	}
	if len(order) <= 1 {
		return nil
	}
	// Drop the first observed weekday as the baseline level.
	return order[1:]
}

// fitAdditive solves the least-squares problem for
// y = a + b*t + sum_k gamma_k * I(weekday == weekdays[k]).
// Returned coefficients are [a, b, gamma...], plus the residual standard
// deviation used for interval estimates.
func fitAdditive(series Series, weekdays []time.Weekday) ([]float64, float64, error) {
	n := len(series)
	p := 2 + len(weekdays)

	rows := make([][]float64, n)
	y := make([]float64, n)
	for i, pt := range series {
		row := make([]float64, p)
		row[0] = 1
		row[1] = float64(i)
		for k, wd := range weekdays {
			if pt.Date.Weekday() == wd {
				row[2+k] = 1
			}
		}
		rows[i] = row
		y[i] = pt.Close
	}

	coef, err := solveNormalEquations(rows, y)
	if err != nil {
		return nil, 0, err
	}

	var sse float64
	for i, row := range rows {
		fit := 0.0
		for j, c := range coef {
			fit += c * row[j]
		}
		resid := y[i] - fit
		sse += resid * resid
	}

	dof := n - p
	if dof < 1 {
		dof = 1
	}
	sigma := math.Sqrt(sse / float64(dof))
	if !isFinite(sigma) {
		return nil, 0, fmt.Errorf("%w: non-finite residual variance", ErrModelFit)
	}

	return coef, sigma, nil
}

// solveNormalEquations solves (X'X) b = X'y by Gaussian elimination with
// partial pivoting. The system is tiny (at most 8x8).
func solveNormalEquations(rows [][]float64, y []float64) ([]float64, error) {
	p := len(rows[0])

	xtx := make([][]float64, p)
	xty := make([]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	for r, row := range rows {
		for i := 0; i < p; i++ {
			xty[i] += row[i] * y[r]
			for j := 0; j < p; j++ {
				xtx[i][j] += row[i] * row[j]
			}
		}
	}

	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(xtx[r][col]) > math.Abs(xtx[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(xtx[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("%w: singular design matrix", ErrModelFit)
		}
		xtx[col], xtx[pivot] = xtx[pivot], xtx[col]
		xty[col], xty[pivot] = xty[pivot], xty[col]

		for r := col + 1; r < p; r++ {
			factor := xtx[r][col] / xtx[col][col]
			for c := col; c < p; c++ {
				xtx[r][c] -= factor * xtx[col][c]
			}
			xty[r] -= factor * xty[col]
		}
	}

	coef := make([]float64, p)
	for i := p - 1; i >= 0; i-- {
		sum := xty[i]
		for j := i + 1; j < p; j++ {
			sum -= xtx[i][j] * coef[j]
		}
		coef[i] = sum / xtx[i][i]
	}

	return coef, nil
}
