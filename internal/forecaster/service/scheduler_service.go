package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang-stock-forecaster/internal/forecaster/config"
	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/pkg/common"
	"golang-stock-forecaster/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// SchedulerService publishes forecast run requests onto the forecast.run
// stream, either on a cron schedule or on demand.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	PublishRunRequest(ctx context.Context, trigger string) error
}

// NewSchedulerService creates a scheduler for the configured cron
// expression.
func NewSchedulerService(cfg *config.Config, redisClient *redis.Client, log *logger.Logger) SchedulerService {
	return &schedulerService{
		cfg:         cfg,
		redisClient: redisClient,
		logger:      log,
		cron: cron.New(cron.WithParser(
			cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		)),
	}
}

type schedulerService struct {
	cfg         *config.Config
	redisClient *redis.Client
	logger      *logger.Logger
	cron        *cron.Cron
}

// Start registers the scheduled trigger and starts the cron runner. An
// empty schedule disables the scheduler; runs can still be requested
// manually.
func (s *schedulerService) Start(ctx context.Context) error {
	schedule := s.cfg.Forecaster.Schedule
	if schedule == "" {
		s.logger.Info("no forecast schedule configured, scheduler disabled")
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.PublishRunRequest(ctx, dto.TriggerSchedule); err != nil {
			s.logger.Error("failed to publish scheduled run request", logger.ErrorField(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid forecast schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info("forecast scheduler started", logger.StringField("schedule", schedule))
	return nil
}

// Stop halts the cron runner and waits for a running trigger to finish.
func (s *schedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// PublishRunRequest enqueues one run request on the forecast.run stream.
func (s *schedulerService) PublishRunRequest(ctx context.Context, trigger string) error {
	request := dto.RunRequest{
		Trigger:     trigger,
		RequestedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal run request: %w", err)
	}

	err = s.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: common.RedisStreamForecastRun,
		Values: map[string]interface{}{"payload": payload},
		MaxLen: s.cfg.Redis.StreamMaxLen,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue run request: %w", err)
	}

	s.logger.Info("forecast run request published", logger.StringField("trigger", trigger))
	return nil
}
