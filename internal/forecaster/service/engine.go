package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang-stock-forecaster/internal/entity"
	"golang-stock-forecaster/internal/forecaster/config"
	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/internal/forecaster/method"
	"golang-stock-forecaster/internal/forecaster/repository"
	"golang-stock-forecaster/pkg/logger"
	"golang-stock-forecaster/pkg/utils"
)

// Engine turns historical price series into forecast records. Each
// (symbol, method) pair is computed independently: one pair's failure never
// affects the others, and the outcomes list always covers every requested
// pair.
type Engine struct {
	cfg       *config.Config
	priceRepo repository.StockPriceRepository
	methods   []method.Forecaster
	log       *logger.Logger
}

// NewEngine creates a forecast engine over the given methods.
func NewEngine(cfg *config.Config, priceRepo repository.StockPriceRepository, methods []method.Forecaster, log *logger.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		priceRepo: priceRepo,
		methods:   methods,
		log:       log,
	}
}

// BuildMethods constructs the configured forecasting methods. Unknown
// method names are rejected so a config typo cannot silently drop a method.
func BuildMethods(cfg *config.Config) ([]method.Forecaster, error) {
	f := cfg.Forecaster
	available := map[entity.ForecastMethod]method.Forecaster{
		entity.MethodLinear:        method.NewLinear(),
		entity.MethodMovingAverage: method.NewMovingAverage(f.EWMASpan, f.TrendWindow),
		entity.MethodARIMA:         method.NewARIMA(f.ARIMAMinHistory),
		entity.MethodProphet:       method.NewProphet(f.ProphetMinHistory),
	}

	var methods []method.Forecaster
	for _, name := range f.Methods {
		parsed, ok := entity.ParseForecastMethod(name)
		if !ok {
			return nil, fmt.Errorf("unknown forecast method %q", name)
		}
		methods = append(methods, available[parsed])
	}
	return methods, nil
}

// Run generates forecasts for every (symbol, method) pair. The returned
// batch holds only successful pairs; outcomes report every pair. Records
// within the batch are sorted by symbol, method and forecast day.
func (e *Engine) Run(ctx context.Context, symbols []string, horizon int) ([]entity.ForecastStock, []dto.PairOutcome, error) {
	if horizon < 1 {
		return nil, nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	since := time.Now().AddDate(0, 0, -e.cfg.Forecaster.HistoryWindowDays)
	generatedAt := time.Now().UTC()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		batch    []entity.ForecastStock
		outcomes []dto.PairOutcome
	)
	semaphore := make(chan struct{}, e.cfg.Forecaster.MaxConcurrentPairs)

	addOutcome := func(o dto.PairOutcome, records []entity.ForecastStock) {
		mu.Lock()
		outcomes = append(outcomes, o)
		batch = append(batch, records...)
		mu.Unlock()
	}

	for _, symbol := range symbols {
		if !utils.ShouldContinue(ctx, e.log) {
			e.markRemaining(symbol, addOutcome)
			continue
		}

		series, err := e.priceRepo.GetSeries(ctx, symbol, since)
		if err != nil {
			e.log.Error("failed to fetch history",
				logger.StringField("symbol", symbol), logger.ErrorField(err))
			for _, m := range e.methods {
				addOutcome(dto.PairOutcome{
					Symbol: symbol, Method: string(m.Name()),
					Status: dto.PairStatusFailed, Reason: dto.ReasonHistoryUnavailable,
					Detail: err.Error(),
				}, nil)
			}
			continue
		}

		for _, m := range e.methods {
			if !utils.ShouldContinue(ctx, e.log) {
				addOutcome(dto.PairOutcome{
					Symbol: symbol, Method: string(m.Name()),
					Status: dto.PairStatusSkipped, Reason: dto.ReasonDeadlineExceeded,
				}, nil)
				continue
			}

			m := m
			symbol, series := symbol, series
			wg.Add(1)
			utils.GoSafe(func() {
				defer wg.Done()
				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				outcome, records := e.forecastPair(symbol, series, m, horizon, generatedAt)
				addOutcome(outcome, records)
			})
		}
	}

	wg.Wait()

	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Symbol != batch[j].Symbol {
			return batch[i].Symbol < batch[j].Symbol
		}
		if batch[i].Method != batch[j].Method {
			return batch[i].Method < batch[j].Method
		}
		return *batch[i].ForecastDay < *batch[j].ForecastDay
	})
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].Symbol != outcomes[j].Symbol {
			return outcomes[i].Symbol < outcomes[j].Symbol
		}
		return outcomes[i].Method < outcomes[j].Method
	})

	return batch, outcomes, nil
}

func (e *Engine) markRemaining(symbol string, addOutcome func(dto.PairOutcome, []entity.ForecastStock)) {
	for _, m := range e.methods {
		addOutcome(dto.PairOutcome{
			Symbol: symbol, Method: string(m.Name()),
			Status: dto.PairStatusSkipped, Reason: dto.ReasonDeadlineExceeded,
		}, nil)
	}
}

// forecastPair runs one method on one symbol's series and assembles the
// forecast records. Every forecast_date derives from the series' last
// observed date, never from the wall clock of the run.
func (e *Engine) forecastPair(symbol string, series method.Series, m method.Forecaster, horizon int, generatedAt time.Time) (dto.PairOutcome, []entity.ForecastStock) {
	outcome := dto.PairOutcome{Symbol: symbol, Method: string(m.Name())}

	minHistory := e.cfg.Forecaster.MinHistoryDays
	if m.MinHistory() > minHistory {
		minHistory = m.MinHistory()
	}
	if len(series) < minHistory {
		outcome.Status = dto.PairStatusSkipped
		outcome.Reason = dto.ReasonInsufficientHistory
		outcome.Detail = fmt.Sprintf("have %d points, need %d", len(series), minHistory)
		return outcome, nil
	}

	last := series.Last()
	if last.Close == 0 {
		// Percentage change against a zero close is undefined.
		outcome.Status = dto.PairStatusFailed
		outcome.Reason = dto.ReasonComputation
		outcome.Detail = "last observed close is zero"
		return outcome, nil
	}

	result, err := m.Forecast(series, horizon)
	if err != nil {
		return e.classifyError(outcome, err), nil
	}
	if err := validatePredictions(result.Predictions, horizon); err != nil {
		outcome.Status = dto.PairStatusFailed
		outcome.Reason = dto.ReasonModelFit
		outcome.Detail = err.Error()
		return outcome, nil
	}

	lastDate := dateOnly(last.Date)
	records := make([]entity.ForecastStock, 0, len(result.Predictions))
	for _, pred := range result.Predictions {
		day := pred.Day
		predicted := round2(math.Max(pred.Close, 0))
		change := round2(predicted - last.Close)
		changePct := round2(change / last.Close * 100)

		record := entity.ForecastStock{
			ForecastDate:   lastDate.AddDate(0, 0, day),
			Symbol:         symbol,
			Method:         m.Name(),
			PredictedClose: predicted,
			PriceChange:    &change,
			PriceChangePct: &changePct,
			ForecastDay:    intPtr(day),
			GeneratedAt:    generatedAt,
		}
		if pred.Lower != nil {
			record.LowerBound = floatPtr(round2(math.Min(*pred.Lower, predicted)))
		}
		if pred.Upper != nil {
			record.UpperBound = floatPtr(round2(math.Max(*pred.Upper, predicted)))
		}
		records = append(records, record)
	}

	outcome.Status = dto.PairStatusSuccess
	outcome.Records = len(records)
	outcome.Warning = result.Degraded
	if result.Degraded != "" {
		e.log.Warn("forecast degraded",
			logger.StringField("symbol", symbol),
			logger.StringField("method", string(m.Name())),
			logger.StringField("warning", result.Degraded))
	}
	return outcome, records
}

func (e *Engine) classifyError(outcome dto.PairOutcome, err error) dto.PairOutcome {
	switch {
	case errors.Is(err, method.ErrInsufficientHistory):
		outcome.Status = dto.PairStatusSkipped
		outcome.Reason = dto.ReasonInsufficientHistory
	case errors.Is(err, method.ErrModelFit):
		outcome.Status = dto.PairStatusFailed
		outcome.Reason = dto.ReasonModelFit
	case errors.Is(err, method.ErrComputation):
		outcome.Status = dto.PairStatusFailed
		outcome.Reason = dto.ReasonComputation
	default:
		outcome.Status = dto.PairStatusFailed
		outcome.Reason = dto.ReasonModelFit
	}
	outcome.Detail = err.Error()
	return outcome
}

// validatePredictions enforces the batch invariant: forecast days form an
// unbroken 1..N sequence and interval bounds bracket the point forecast.
func validatePredictions(predictions []method.Prediction, horizon int) error {
	if len(predictions) != horizon {
		return fmt.Errorf("expected %d predictions, got %d", horizon, len(predictions))
	}
	for i, p := range predictions {
		if p.Day != i+1 {
			return fmt.Errorf("forecast day sequence broken at index %d: got day %d", i, p.Day)
		}
		if p.Lower != nil && p.Upper != nil && (*p.Lower > p.Close || p.Close > *p.Upper) {
			return fmt.Errorf("bounds do not bracket point forecast on day %d", p.Day)
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
