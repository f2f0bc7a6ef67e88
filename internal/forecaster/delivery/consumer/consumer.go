package consumer

import (
	"context"
	"sync"
	"time"

	"golang-stock-forecaster/internal/forecaster/config"
	"golang-stock-forecaster/internal/forecaster/service"
	"golang-stock-forecaster/pkg/common"
	"golang-stock-forecaster/pkg/logger"
	"golang-stock-forecaster/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisConsumer drains run requests from the forecast.run stream and hands
// them to the forecast service.
type RedisConsumer struct {
	cfg             *config.Config
	redisClient     *redis.Client
	forecastService service.ForecastService
	logger          *logger.Logger
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(cfg *config.Config, redisClient *redis.Client, forecastService service.ForecastService, log *logger.Logger) *RedisConsumer {
	return &RedisConsumer{
		cfg:             cfg,
		redisClient:     redisClient,
		forecastService: forecastService,
		logger:          log,
		stopChan:        make(chan struct{}),
	}
}

// EnsureStream creates the consumer group, and the stream with it, if they
// do not exist yet.
func (c *RedisConsumer) EnsureStream(ctx context.Context) error {
	err := c.redisClient.XGroupCreateMkStream(ctx, common.RedisStreamForecastRun, common.RedisStreamGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// Start begins the consumer's processing loop.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("forecast run consumer started",
		logger.StringField("stream", common.RedisStreamForecastRun))

	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("consumer stopping")
				return
			default:
				// A run owns its own timeout; this bound only covers
				// waiting for and reading one stream entry plus the run.
				taskCtx, cancel := context.WithTimeout(ctx, c.cfg.Forecaster.RunTimeout+30*time.Second)
				c.forecastService.ProcessTask(taskCtx)
				cancel()
			}
		}
	})
}

// Stop signals the consumer loop to exit and waits for it.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}
