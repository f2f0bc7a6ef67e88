package repository

import (
	"context"

	"golang-stock-forecaster/internal/entity"

	"gorm.io/gorm"
)

// ForecastRunRepository persists the audit trail of pipeline runs.
type ForecastRunRepository interface {
	Create(ctx context.Context, run *entity.ForecastRun) error
	Update(ctx context.Context, run *entity.ForecastRun) error
	FindRecent(ctx context.Context, limit int) ([]entity.ForecastRun, error)
}

type forecastRunRepository struct {
	db *gorm.DB
}

// NewForecastRunRepository creates a new ForecastRunRepository.
func NewForecastRunRepository(db *gorm.DB) ForecastRunRepository {
	return &forecastRunRepository{db: db}
}

func (r *forecastRunRepository) Create(ctx context.Context, run *entity.ForecastRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *forecastRunRepository) Update(ctx context.Context, run *entity.ForecastRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *forecastRunRepository) FindRecent(ctx context.Context, limit int) ([]entity.ForecastRun, error) {
	var runs []entity.ForecastRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
