package config

import (
	"time"

	"golang-stock-forecaster/pkg/config"
)

// Forecaster holds forecaster-specific configuration.
type Forecaster struct {
	Symbols []string `mapstructure:"symbols"`
	Methods []string `mapstructure:"methods"`

	HorizonDays       int `mapstructure:"horizon_days"`
	MinHistoryDays    int `mapstructure:"min_history_days"`
	ARIMAMinHistory   int `mapstructure:"arima_min_history_days"`
	ProphetMinHistory int `mapstructure:"prophet_min_history_days"`
	HistoryWindowDays int `mapstructure:"history_window_days"`

	EWMASpan    int `mapstructure:"ewma_span"`
	TrendWindow int `mapstructure:"trend_window"`

	MaxConcurrentPairs int           `mapstructure:"max_concurrent_pairs"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
	RetentionDays      int           `mapstructure:"retention_days"`

	HistoryMaxRequestPerMinute int `mapstructure:"history_max_request_per_minute"`

	OutputDir string `mapstructure:"output_dir"`
	Schedule  string `mapstructure:"schedule"`
}

// Config holds the full configuration for the forecast service.
type Config struct {
	App        config.App      `mapstructure:"app"`
	Logger     config.Logger   `mapstructure:"logger"`
	Database   config.Database `mapstructure:"database"`
	Redis      config.Redis    `mapstructure:"redis"`
	API        config.API      `mapstructure:"api"`
	Telegram   config.Telegram `mapstructure:"telegram"`
	Forecaster Forecaster      `mapstructure:"forecaster"`
}

// Load loads the forecast service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	f := &c.Forecaster
	if f.HorizonDays <= 0 {
		f.HorizonDays = 7
	}
	if f.MinHistoryDays <= 0 {
		f.MinHistoryDays = 10
	}
	if f.ARIMAMinHistory <= 0 {
		f.ARIMAMinHistory = 15
	}
	if f.ProphetMinHistory <= 0 {
		f.ProphetMinHistory = 10
	}
	if f.HistoryWindowDays <= 0 {
		f.HistoryWindowDays = 90
	}
	if f.EWMASpan <= 0 {
		f.EWMASpan = 10
	}
	if f.TrendWindow <= 0 {
		f.TrendWindow = 10
	}
	if f.MaxConcurrentPairs <= 0 {
		f.MaxConcurrentPairs = 4
	}
	if f.RunTimeout <= 0 {
		f.RunTimeout = 10 * time.Minute
	}
	if f.RetentionDays <= 0 {
		f.RetentionDays = 30
	}
	if f.HistoryMaxRequestPerMinute <= 0 {
		f.HistoryMaxRequestPerMinute = 60
	}
	if f.OutputDir == "" {
		f.OutputDir = "forecasts"
	}
	if len(f.Methods) == 0 {
		f.Methods = []string{"linear", "moving_average", "arima", "prophet"}
	}
}
