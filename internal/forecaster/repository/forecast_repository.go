package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-stock-forecaster/internal/entity"
	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/pkg/logger"

	"gorm.io/gorm"
)

// ErrSchemaMismatch is returned when the forecast sink does not carry the
// expected table or uniqueness constraint. A run must abort before any
// write in that case.
var ErrSchemaMismatch = errors.New("forecast store schema mismatch")

// reconcileBatchSize bounds the number of rows sent per upsert statement.
const reconcileBatchSize = 100

// uniqueIndexName is the index backing the (forecast_date, symbol, method)
// natural key. The reconcile operation depends on the sink enforcing it.
const uniqueIndexName = "uq_forecast_stocks_key"

// ForecastRepository reconciles generated forecasts against the persisted
// table and serves the query/administration surface.
type ForecastRepository interface {
	VerifySchema(ctx context.Context) error
	Reconcile(ctx context.Context, records []entity.ForecastStock) (*dto.ReconcileReport, error)
	Query(ctx context.Context, filter dto.ForecastFilter) ([]entity.ForecastStock, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Summary(ctx context.Context) (*dto.ForecastSummary, error)
}

type forecastRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewForecastRepository creates a ForecastRepository backed by the
// forecast_stocks table.
func NewForecastRepository(db *gorm.DB, log *logger.Logger) ForecastRepository {
	return &forecastRepository{db: db, log: log}
}

// VerifySchema confirms the sink table and its uniqueness constraint exist.
func (r *forecastRepository) VerifySchema(ctx context.Context) error {
	if !r.db.WithContext(ctx).Migrator().HasTable(&entity.ForecastStock{}) {
		return fmt.Errorf("%w: table forecast_stocks not found", ErrSchemaMismatch)
	}

	var count int64
	err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(1) FROM pg_indexes WHERE tablename = ? AND indexname = ?",
			entity.ForecastStock{}.TableName(), uniqueIndexName).
		Scan(&count).Error
	if err != nil {
		return fmt.Errorf("failed to inspect forecast_stocks indexes: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: unique index %s on (forecast_date, symbol, method) not found", ErrSchemaMismatch, uniqueIndexName)
	}
	return nil
}

// Reconcile merges a batch with a single constraint-based upsert per chunk,
// keyed on (forecast_date, symbol, method). Rows whose non-key payload is
// unchanged are left untouched and counted as such, which keeps a repeated
// reconcile of the same batch at inserted=0, updated=0. Chunks already
// committed survive a mid-batch store failure.
func (r *forecastRepository) Reconcile(ctx context.Context, records []entity.ForecastStock) (*dto.ReconcileReport, error) {
	report := &dto.ReconcileReport{}

	for start := 0; start < len(records); start += reconcileBatchSize {
		end := start + reconcileBatchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		inserted, updated, err := r.upsertChunk(ctx, chunk)
		if err != nil {
			return report, fmt.Errorf("forecast store unavailable: %w", err)
		}
		report.Inserted += inserted
		report.Updated += updated
		report.Unchanged += len(chunk) - inserted - updated
	}

	return report, nil
}

type upsertOutcome struct {
	Inserted bool `gorm:"column:inserted"`
}

func (r *forecastRepository) upsertChunk(ctx context.Context, chunk []entity.ForecastStock) (inserted, updated int, err error) {
	var (
		values strings.Builder
		args   []interface{}
	)
	for i, rec := range chunk {
		if i > 0 {
			values.WriteString(", ")
		}
		values.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.ForecastDate.Format("2006-01-02"),
			rec.Symbol,
			string(rec.Method),
			rec.PredictedClose,
			rec.PriceChange,
			rec.PriceChangePct,
			rec.ForecastDay,
			rec.LowerBound,
			rec.UpperBound,
			rec.GeneratedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO forecast_stocks
			(forecast_date, symbol, method, predicted_close, price_change, price_change_pct, forecast_day, lower_bound, upper_bound, generated_at)
		VALUES %s
		ON CONFLICT (forecast_date, symbol, method) DO UPDATE SET
			predicted_close = EXCLUDED.predicted_close,
			price_change = EXCLUDED.price_change,
			price_change_pct = EXCLUDED.price_change_pct,
			forecast_day = EXCLUDED.forecast_day,
			lower_bound = EXCLUDED.lower_bound,
			upper_bound = EXCLUDED.upper_bound,
			generated_at = EXCLUDED.generated_at
		WHERE (forecast_stocks.predicted_close, forecast_stocks.price_change, forecast_stocks.price_change_pct,
			forecast_stocks.forecast_day, forecast_stocks.lower_bound, forecast_stocks.upper_bound)
			IS DISTINCT FROM
			(EXCLUDED.predicted_close, EXCLUDED.price_change, EXCLUDED.price_change_pct,
			EXCLUDED.forecast_day, EXCLUDED.lower_bound, EXCLUDED.upper_bound)
		RETURNING (xmax = 0) AS inserted`, values.String())

	var outcomes []upsertOutcome
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&outcomes).Error; err != nil {
		return 0, 0, err
	}

	for _, o := range outcomes {
		if o.Inserted {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

// Query returns stored forecasts ordered by forecast_date ascending.
// Unknown symbols or methods yield an empty result.
func (r *forecastRepository) Query(ctx context.Context, filter dto.ForecastFilter) ([]entity.ForecastStock, error) {
	q := r.db.WithContext(ctx).Model(&entity.ForecastStock{})

	if filter.Symbol != "" {
		q = q.Where("symbol = ?", filter.Symbol)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.From != nil {
		q = q.Where("forecast_date >= ?", filter.From.Format("2006-01-02"))
	}
	if filter.To != nil {
		q = q.Where("forecast_date <= ?", filter.To.Format("2006-01-02"))
	}

	var records []entity.ForecastStock
	if err := q.Order("forecast_date ASC, symbol ASC, method ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query forecasts: %w", err)
	}
	return records, nil
}

// Prune removes records whose forecast_date is older than the cutoff. It
// deliberately keys on forecast_date rather than generated_at: a late
// backfill can produce an old run whose target dates are still in the
// future, and those rows must survive.
func (r *forecastRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).Format("2006-01-02")

	result := r.db.WithContext(ctx).
		Where("forecast_date < ?", cutoff).
		Delete(&entity.ForecastStock{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune forecasts: %w", result.Error)
	}

	r.log.Info("pruned old forecasts",
		logger.StringField("cutoff", cutoff),
		logger.Field("removed", result.RowsAffected))
	return result.RowsAffected, nil
}

type groupCount struct {
	Key   string `gorm:"column:key"`
	Count int64  `gorm:"column:count"`
}

// Summary aggregates stored forecasts for the dashboard collaborator.
func (r *forecastRepository) Summary(ctx context.Context) (*dto.ForecastSummary, error) {
	summary := &dto.ForecastSummary{
		ByMethod: make(map[string]int64),
		BySymbol: make(map[string]int64),
	}

	if err := r.db.WithContext(ctx).Model(&entity.ForecastStock{}).Count(&summary.TotalRecords).Error; err != nil {
		return nil, fmt.Errorf("failed to count forecasts: %w", err)
	}

	var byMethod []groupCount
	err := r.db.WithContext(ctx).
		Raw("SELECT method AS key, COUNT(1) AS count FROM forecast_stocks GROUP BY method").
		Scan(&byMethod).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by method: %w", err)
	}
	for _, g := range byMethod {
		summary.ByMethod[g.Key] = g.Count
	}

	var bySymbol []groupCount
	err = r.db.WithContext(ctx).
		Raw("SELECT symbol AS key, COUNT(1) AS count FROM forecast_stocks GROUP BY symbol").
		Scan(&bySymbol).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by symbol: %w", err)
	}
	for _, g := range bySymbol {
		summary.BySymbol[g.Key] = g.Count
	}

	if summary.TotalRecords > 0 {
		var bounds struct {
			First time.Time `gorm:"column:first"`
			Last  time.Time `gorm:"column:last"`
		}
		err = r.db.WithContext(ctx).
			Raw("SELECT MIN(forecast_date) AS first, MAX(forecast_date) AS last FROM forecast_stocks").
			Scan(&bounds).Error
		if err != nil {
			return nil, fmt.Errorf("failed to read forecast date range: %w", err)
		}
		summary.FirstDate = &bounds.First
		summary.LastDate = &bounds.Last
	}

	return summary, nil
}
