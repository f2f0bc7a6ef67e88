package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-forecaster/internal/entity"
	"golang-stock-forecaster/internal/forecaster/config"
	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/internal/forecaster/repository"
	"golang-stock-forecaster/pkg/common"
	"golang-stock-forecaster/pkg/logger"
	"golang-stock-forecaster/pkg/telegram"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
)

// ForecastService runs the end-to-end pipeline and serves the query and
// administration surface consumed by the dashboard.
type ForecastService interface {
	RunForecast(ctx context.Context, trigger string) (*dto.RunReport, error)
	ProcessTask(ctx context.Context)
	QueryForecasts(ctx context.Context, filter dto.ForecastFilter) ([]entity.ForecastStock, error)
	Summary(ctx context.Context) (*dto.ForecastSummary, error)
	PruneForecasts(ctx context.Context, olderThan time.Duration) (int64, error)
	RecentRuns(ctx context.Context, limit int) ([]entity.ForecastRun, error)
}

// NewForecastService creates the pipeline service. The notifier may be nil
// when Telegram reporting is disabled.
func NewForecastService(
	cfg *config.Config,
	engine *Engine,
	forecastRepo repository.ForecastRepository,
	runRepo repository.ForecastRunRepository,
	redisClient *redis.Client,
	notifier telegram.Notifier,
	log *logger.Logger,
) ForecastService {
	return &forecastService{
		cfg:          cfg,
		engine:       engine,
		forecastRepo: forecastRepo,
		runRepo:      runRepo,
		redisClient:  redisClient,
		notifier:     notifier,
		artifacts:    newArtifactWriter(cfg.Forecaster.OutputDir),
		logger:       log,
	}
}

type forecastService struct {
	cfg          *config.Config
	engine       *Engine
	forecastRepo repository.ForecastRepository
	runRepo      repository.ForecastRunRepository
	redisClient  *redis.Client
	notifier     telegram.Notifier
	artifacts    *artifactWriter
	logger       *logger.Logger
}

// RunForecast executes one pipeline run: schema check, engine run, CSV
// artifacts, reconcile, run history, notification. Per-pair failures never
// abort the run; schema and store failures do, the latter after preserving
// whatever was already committed.
func (s *forecastService) RunForecast(ctx context.Context, trigger string) (*dto.RunReport, error) {
	f := s.cfg.Forecaster

	symbolsJSON, _ := json.Marshal(f.Symbols)
	run := &entity.ForecastRun{
		Status:      entity.RunStatusRunning,
		Trigger:     trigger,
		HorizonDays: f.HorizonDays,
		Symbols:     datatypes.JSON(symbolsJSON),
		StartedAt:   time.Now().UTC(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		s.logger.Error("failed to create run record", logger.ErrorField(err))
	}

	report := &dto.RunReport{
		StartedAt:   run.StartedAt,
		HorizonDays: f.HorizonDays,
	}

	// Schema problems abort the run before any write.
	if err := s.forecastRepo.VerifySchema(ctx); err != nil {
		s.completeRun(ctx, run, report, entity.RunStatusFailed, err)
		return report, err
	}

	runCtx, cancel := context.WithTimeout(ctx, f.RunTimeout)
	defer cancel()

	batch, outcomes, err := s.engine.Run(runCtx, f.Symbols, f.HorizonDays)
	if err != nil {
		s.completeRun(ctx, run, report, entity.RunStatusFailed, err)
		return report, err
	}
	report.Outcomes = outcomes

	if err := s.artifacts.Write(batch); err != nil {
		// Artifacts are a convenience output; their failure must not
		// block reconciliation.
		s.logger.Error("failed to write forecast artifacts", logger.ErrorField(err))
	}

	reconcile, reconcileErr := s.forecastRepo.Reconcile(ctx, batch)
	report.Reconcile = reconcile

	status := entity.RunStatusCompleted
	if reconcileErr != nil {
		report.StoreError = reconcileErr.Error()
		status = entity.RunStatusFailed
	} else if report.Succeeded() < len(outcomes) {
		status = entity.RunStatusPartial
	}
	s.completeRun(ctx, run, report, status, reconcileErr)

	s.logger.Info("forecast run finished",
		logger.StringField("status", status),
		logger.IntField("pairs", len(outcomes)),
		logger.IntField("succeeded", report.Succeeded()),
		logger.IntField("records", len(batch)),
		logger.Field("reconcile", reconcile))

	s.notify(report, status)

	return report, reconcileErr
}

func (s *forecastService) completeRun(ctx context.Context, run *entity.ForecastRun, report *dto.RunReport, status string, runErr error) {
	report.CompletedAt = time.Now().UTC()

	run.Status = status
	run.CompletedAt.Time = report.CompletedAt
	run.CompletedAt.Valid = true
	if runErr != nil {
		run.ErrorMessage.String = runErr.Error()
		run.ErrorMessage.Valid = true
	}
	if reportJSON, err := json.Marshal(report); err == nil {
		run.Report = datatypes.JSON(reportJSON)
	}

	if err := s.runRepo.Update(ctx, run); err != nil {
		s.logger.Error("failed to update run record", logger.ErrorField(err))
	}
}

func (s *forecastService) notify(report *dto.RunReport, status string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendMessage(telegram.FormatRunReport(report, status)); err != nil {
		s.logger.Error("failed to send run report notification", logger.ErrorField(err))
	}
}

// ProcessTask dequeues and executes a single run request from the
// forecast.run stream.
func (s *forecastService) ProcessTask(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamForecastRun, ">"},
		Count:    1,
		Block:    2 * time.Second,
		NoAck:    true,
	}).Result()
	if err != nil {
		if err == context.Canceled || err == context.DeadlineExceeded || err == redis.Nil {
			return
		}
		s.logger.Error("failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}
	message := streams[0].Messages[0]

	payload, ok := message.Values["payload"].(string)
	if !ok {
		s.logger.Error("field 'payload' not found or not a string in stream message",
			logger.Field("message_id", message.ID))
		return
	}

	var request dto.RunRequest
	if err := json.Unmarshal([]byte(payload), &request); err != nil {
		s.logger.Error("failed to unmarshal run request",
			logger.ErrorField(err), logger.Field("message_id", message.ID))
		return
	}

	s.logger.Info("processing forecast run request",
		logger.StringField("trigger", request.Trigger),
		logger.Field("requested_at", request.RequestedAt))

	if _, err := s.RunForecast(ctx, request.Trigger); err != nil {
		s.logger.Error("forecast run failed", logger.ErrorField(err))
	}
}

func (s *forecastService) QueryForecasts(ctx context.Context, filter dto.ForecastFilter) ([]entity.ForecastStock, error) {
	return s.forecastRepo.Query(ctx, filter)
}

func (s *forecastService) Summary(ctx context.Context) (*dto.ForecastSummary, error) {
	return s.forecastRepo.Summary(ctx)
}

// PruneForecasts removes forecasts older than the given retention. A
// non-positive duration falls back to the configured retention_days.
func (s *forecastService) PruneForecasts(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = time.Duration(s.cfg.Forecaster.RetentionDays) * 24 * time.Hour
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("retention duration must be positive")
	}
	return s.forecastRepo.Prune(ctx, olderThan)
}

func (s *forecastService) RecentRuns(ctx context.Context, limit int) ([]entity.ForecastRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.runRepo.FindRecent(ctx, limit)
}
