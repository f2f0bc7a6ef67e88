package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-stock-forecaster/internal/entity"
	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/internal/forecaster/method"
)

// memoryForecastRepo is an in-memory ForecastRepository keyed on the
// (forecast_date, symbol, method) natural key, mirroring the database
// uniqueness constraint and the distinct-row update rule.
type memoryForecastRepo struct {
	rows      map[string]entity.ForecastStock
	schemaErr error
}

func newMemoryForecastRepo() *memoryForecastRepo {
	return &memoryForecastRepo{rows: make(map[string]entity.ForecastStock)}
}

func naturalKey(r entity.ForecastStock) string {
	return r.ForecastDate.Format("2006-01-02") + "|" + r.Symbol + "|" + string(r.Method)
}

func (m *memoryForecastRepo) VerifySchema(context.Context) error {
	return m.schemaErr
}

func (m *memoryForecastRepo) Reconcile(_ context.Context, records []entity.ForecastStock) (*dto.ReconcileReport, error) {
	report := &dto.ReconcileReport{}
	for _, rec := range records {
		key := naturalKey(rec)
		existing, ok := m.rows[key]
		switch {
		case !ok:
			report.Inserted++
			m.rows[key] = rec
		case sameValues(existing, rec):
			report.Unchanged++
		default:
			report.Updated++
			m.rows[key] = rec
		}
	}
	return report, nil
}

func sameValues(a, b entity.ForecastStock) bool {
	return a.PredictedClose == b.PredictedClose &&
		floatPtrEqual(a.LowerBound, b.LowerBound) &&
		floatPtrEqual(a.UpperBound, b.UpperBound) &&
		floatPtrEqual(a.PriceChange, b.PriceChange) &&
		floatPtrEqual(a.PriceChangePct, b.PriceChangePct)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *memoryForecastRepo) Query(_ context.Context, filter dto.ForecastFilter) ([]entity.ForecastStock, error) {
	var out []entity.ForecastStock
	for _, rec := range m.rows {
		if filter.Symbol != "" && rec.Symbol != filter.Symbol {
			continue
		}
		if filter.Method != "" && string(rec.Method) != filter.Method {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *memoryForecastRepo) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var removed int64
	for key, rec := range m.rows {
		if rec.ForecastDate.Before(cutoff) {
			delete(m.rows, key)
			removed++
		}
	}
	return removed, nil
}

func (m *memoryForecastRepo) Summary(context.Context) (*dto.ForecastSummary, error) {
	return &dto.ForecastSummary{TotalRecords: int64(len(m.rows))}, nil
}

type memoryRunRepo struct {
	runs []*entity.ForecastRun
}

func (m *memoryRunRepo) Create(_ context.Context, run *entity.ForecastRun) error {
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRunRepo) Update(context.Context, *entity.ForecastRun) error {
	return nil
}

func (m *memoryRunRepo) FindRecent(_ context.Context, limit int) ([]entity.ForecastRun, error) {
	var out []entity.ForecastRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.runs[i])
	}
	return out, nil
}

func pipelineFixture(t *testing.T, store *memoryForecastRepo) (ForecastService, *memoryRunRepo) {
	t.Helper()

	cfg := testConfig()
	cfg.Forecaster.Symbols = []string{"AAPL", "GOOG"}
	cfg.Forecaster.RunTimeout = time.Minute
	cfg.Forecaster.RetentionDays = 30
	cfg.Forecaster.OutputDir = t.TempDir()

	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	priceRepo := &fakePriceRepo{series: map[string]method.Series{
		"AAPL": trendingSeries(start, 30, 150, 0.5),
		"GOOG": trendingSeries(start, 30, 2800, 3),
	}}

	engine := NewEngine(cfg, priceRepo, []method.Forecaster{method.NewLinear()}, testLogger(t))
	runRepo := &memoryRunRepo{}
	svc := NewForecastService(cfg, engine, store, runRepo, nil, nil, testLogger(t))
	return svc, runRepo
}

func TestRunForecastPersistsAndReports(t *testing.T) {
	store := newMemoryForecastRepo()
	svc, runRepo := pipelineFixture(t, store)

	report, err := svc.RunForecast(context.Background(), dto.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, report.Reconcile)

	assert.Equal(t, 2*7, report.Reconcile.Inserted)
	assert.Equal(t, 0, report.Reconcile.Updated)
	assert.Equal(t, 2*7, len(store.rows))
	assert.Equal(t, 2, report.Succeeded())
	require.Len(t, runRepo.runs, 1)
	assert.Equal(t, dto.TriggerManual, runRepo.runs[0].Trigger)
}

func TestRunForecastIdempotentRerun(t *testing.T) {
	store := newMemoryForecastRepo()
	svc, _ := pipelineFixture(t, store)

	first, err := svc.RunForecast(context.Background(), dto.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 14, first.Reconcile.Inserted)

	// Same inputs again: row count stable, nothing inserted or updated.
	second, err := svc.RunForecast(context.Background(), dto.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Reconcile.Inserted)
	assert.Equal(t, 0, second.Reconcile.Updated)
	assert.Equal(t, 14, second.Reconcile.Unchanged)
	assert.Equal(t, 14, len(store.rows))
}

func TestRunForecastRevisedInputUpdatesSameKeys(t *testing.T) {
	store := newMemoryForecastRepo()

	cfg := testConfig()
	cfg.Forecaster.Symbols = []string{"AAPL"}
	cfg.Forecaster.RunTimeout = time.Minute
	cfg.Forecaster.OutputDir = t.TempDir()

	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	series := trendingSeries(start, 30, 150, 0.5)
	priceRepo := &fakePriceRepo{series: map[string]method.Series{"AAPL": series}}
	engine := NewEngine(cfg, priceRepo, []method.Forecaster{method.NewLinear()}, testLogger(t))
	svc := NewForecastService(cfg, engine, store, &memoryRunRepo{}, nil, nil, testLogger(t))

	first, err := svc.RunForecast(context.Background(), dto.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 7, first.Reconcile.Inserted)

	// A corrected closing price on the last observed day keeps every
	// natural key but changes the predicted values.
	revised := make(method.Series, len(series))
	copy(revised, series)
	revised[len(revised)-1].Close += 25
	priceRepo.series["AAPL"] = revised

	second, err := svc.RunForecast(context.Background(), dto.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Reconcile.Inserted)
	assert.Equal(t, 7, second.Reconcile.Updated)
	assert.Equal(t, 7, len(store.rows))
}

func TestRunForecastSchemaFailureAbortsBeforeWrites(t *testing.T) {
	store := newMemoryForecastRepo()
	store.schemaErr = errors.New("missing unique index")
	svc, _ := pipelineFixture(t, store)

	_, err := svc.RunForecast(context.Background(), dto.TriggerManual)
	require.Error(t, err)
	assert.Empty(t, store.rows)
}

func TestRunForecastWritesArtifacts(t *testing.T) {
	store := newMemoryForecastRepo()

	cfg := testConfig()
	cfg.Forecaster.Symbols = []string{"AAPL"}
	cfg.Forecaster.RunTimeout = time.Minute
	cfg.Forecaster.OutputDir = t.TempDir()

	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	priceRepo := &fakePriceRepo{series: map[string]method.Series{
		"AAPL": trendingSeries(start, 30, 150, 0.5),
	}}
	engine := NewEngine(cfg, priceRepo, []method.Forecaster{method.NewLinear()}, testLogger(t))
	svc := NewForecastService(cfg, engine, store, &memoryRunRepo{}, nil, nil, testLogger(t))

	_, err := svc.RunForecast(context.Background(), dto.TriggerCLI)
	require.NoError(t, err)

	pairFile := filepath.Join(cfg.Forecaster.OutputDir, "forecast_AAPL_linear.csv")
	_, statErr := os.Stat(pairFile)
	assert.NoError(t, statErr)

	comparison := filepath.Join(cfg.Forecaster.OutputDir, "forecast_comparison.csv")
	_, statErr = os.Stat(comparison)
	assert.NoError(t, statErr)
}

func TestPruneDefaultsToConfiguredRetention(t *testing.T) {
	store := newMemoryForecastRepo()
	svc, _ := pipelineFixture(t, store)

	// Stale row: target date long past the 30-day retention.
	old := sampleStoreRecord(time.Now().UTC().AddDate(0, -6, 0))
	store.rows[naturalKey(old)] = old
	fresh := sampleStoreRecord(time.Now().UTC().AddDate(0, 0, 3))
	store.rows[naturalKey(fresh)] = fresh

	removed, err := svc.PruneForecasts(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, store.rows, 1)
}

func sampleStoreRecord(date time.Time) entity.ForecastStock {
	return entity.ForecastStock{
		ForecastDate:   date,
		Symbol:         "AAPL",
		Method:         entity.MethodLinear,
		PredictedClose: 100,
	}
}

func TestRecentRunsDefaultsLimit(t *testing.T) {
	store := newMemoryForecastRepo()
	svc, runRepo := pipelineFixture(t, store)

	for i := 0; i < 3; i++ {
		_, err := svc.RunForecast(context.Background(), dto.TriggerSchedule)
		require.NoError(t, err)
	}

	runs, err := svc.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	assert.Len(t, runRepo.runs, 3)
}
