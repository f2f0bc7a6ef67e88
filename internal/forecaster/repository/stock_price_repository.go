package repository

import (
	"context"
	"fmt"
	"time"

	"golang-stock-forecaster/internal/entity"
	"golang-stock-forecaster/internal/forecaster/config"
	"golang-stock-forecaster/internal/forecaster/method"
	"golang-stock-forecaster/pkg/logger"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// StockPriceRepository supplies ordered historical price series. An unknown
// symbol yields an empty series, not an error.
type StockPriceRepository interface {
	GetSeries(ctx context.Context, symbol string, since time.Time) (method.Series, error)
}

type stockPriceRepository struct {
	db             *gorm.DB
	log            *logger.Logger
	seriesCache    *cache.Cache
	requestLimiter *rate.Limiter
}

// NewStockPriceRepository creates a StockPriceRepository backed by the
// stock_prices table. Queries are rate limited to protect the backing
// store's connection budget, and series are cached briefly so every method
// in a run shares one fetch per symbol.
func NewStockPriceRepository(db *gorm.DB, cfg *config.Config, log *logger.Logger) StockPriceRepository {
	perMinute := cfg.Forecaster.HistoryMaxRequestPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	secondsPerRequest := time.Minute / time.Duration(perMinute)
	return &stockPriceRepository{
		db:             db,
		log:            log,
		seriesCache:    cache.New(5*time.Minute, 10*time.Minute),
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

func (r *stockPriceRepository) GetSeries(ctx context.Context, symbol string, since time.Time) (method.Series, error) {
	cacheKey := fmt.Sprintf("%s|%s", symbol, since.Format("2006-01-02"))
	if cached, found := r.seriesCache.Get(cacheKey); found {
		return cached.(method.Series), nil
	}

	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	var prices []entity.StockPrice
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timestamp >= ?", symbol, since).
		Order("timestamp ASC").
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history for %s: %w", symbol, err)
	}

	series := make(method.Series, 0, len(prices))
	for _, p := range prices {
		series = append(series, method.PricePoint{Date: p.Timestamp, Close: p.Close})
	}

	r.seriesCache.Set(cacheKey, series, cache.DefaultExpiration)
	r.log.Debug("price history fetched",
		logger.StringField("symbol", symbol),
		logger.IntField("points", len(series)))

	return series, nil
}
