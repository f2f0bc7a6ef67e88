package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"golang-stock-forecaster/internal/entity"
	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/pkg/logger"
)

func mockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func repoLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

func sampleRecord(date time.Time, symbol string, m entity.ForecastMethod, close float64) entity.ForecastStock {
	day := 1
	return entity.ForecastStock{
		ForecastDate:   date,
		Symbol:         symbol,
		Method:         m,
		PredictedClose: close,
		ForecastDay:    &day,
		GeneratedAt:    time.Now().UTC(),
	}
}

func TestReconcileCountsFromReturnedRows(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records := []entity.ForecastStock{
		sampleRecord(date, "AAPL", entity.MethodLinear, 187.12),
		sampleRecord(date, "AAPL", entity.MethodARIMA, 185.40),
		sampleRecord(date, "GOOG", entity.MethodLinear, 2801.55),
	}

	// One brand new row, one value change; the third row is identical in
	// the store, gets filtered by the conflict predicate and returns
	// nothing.
	mock.ExpectQuery(`INSERT INTO forecast_stocks`).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).
			AddRow(true).
			AddRow(false))

	report, err := repo.Reconcile(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 3, report.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileEmptyBatch(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	report, err := repo.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileChunksLargeBatches(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records := make([]entity.ForecastStock, 0, reconcileBatchSize+5)
	for i := 0; i < reconcileBatchSize+5; i++ {
		records = append(records, sampleRecord(date.AddDate(0, 0, i), "AAPL", entity.MethodLinear, 100+float64(i)))
	}

	first := sqlmock.NewRows([]string{"inserted"})
	for i := 0; i < reconcileBatchSize; i++ {
		first.AddRow(true)
	}
	mock.ExpectQuery(`INSERT INTO forecast_stocks`).WillReturnRows(first)

	second := sqlmock.NewRows([]string{"inserted"})
	for i := 0; i < 5; i++ {
		second.AddRow(true)
	}
	mock.ExpectQuery(`INSERT INTO forecast_stocks`).WillReturnRows(second)

	report, err := repo.Reconcile(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, reconcileBatchSize+5, report.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAppliesFilters(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "forecast_stocks" WHERE symbol = \$1 AND method = \$2 AND forecast_date >= \$3 ORDER BY forecast_date ASC, symbol ASC, method ASC`).
		WithArgs("AAPL", "linear", "2026-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "forecast_date", "symbol", "method", "predicted_close"}).
			AddRow(1, from.AddDate(0, 0, 1), "AAPL", "linear", 187.12))

	records, err := repo.Query(context.Background(), dto.ForecastFilter{
		Symbol: "AAPL",
		Method: "linear",
		From:   &from,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "AAPL", records[0].Symbol)
	assert.Equal(t, entity.MethodLinear, records[0].Method)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryUnknownSymbolReturnsEmpty(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	mock.ExpectQuery(`SELECT \* FROM "forecast_stocks" WHERE symbol = \$1 ORDER BY`).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := repo.Query(context.Background(), dto.ForecastFilter{Symbol: "NOPE"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneDeletesByForecastDate(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	mock.ExpectExec(`DELETE FROM "forecast_stocks" WHERE forecast_date < \$1`).
		WillReturnResult(sqlmock.NewResult(0, 42))

	removed, err := repo.Prune(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifySchemaMissingIndex(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	mock.ExpectQuery(`SELECT count\(\*\) FROM information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM pg_indexes`).
		WithArgs("forecast_stocks", "uq_forecast_stocks_key").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := repo.VerifySchema(context.Background())
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifySchemaOK(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	mock.ExpectQuery(`SELECT count\(\*\) FROM information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM pg_indexes`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	assert.NoError(t, repo.VerifySchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryAggregates(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewForecastRepository(db, repoLogger(t))

	mock.ExpectQuery(`SELECT count\(\*\) FROM "forecast_stocks"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(28))
	mock.ExpectQuery(`SELECT method AS key, COUNT\(1\) AS count FROM forecast_stocks GROUP BY method`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).
			AddRow("linear", 14).
			AddRow("arima", 14))
	mock.ExpectQuery(`SELECT symbol AS key, COUNT\(1\) AS count FROM forecast_stocks GROUP BY symbol`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).
			AddRow("AAPL", 28))
	mock.ExpectQuery(`SELECT MIN\(forecast_date\) AS first, MAX\(forecast_date\) AS last FROM forecast_stocks`).
		WillReturnRows(sqlmock.NewRows([]string{"first", "last"}).
			AddRow(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)))

	summary, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(28), summary.TotalRecords)
	assert.Equal(t, int64(14), summary.ByMethod["linear"])
	assert.Equal(t, int64(28), summary.BySymbol["AAPL"])
	require.NotNil(t, summary.FirstDate)
	require.NotNil(t, summary.LastDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
