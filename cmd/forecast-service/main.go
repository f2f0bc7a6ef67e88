package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-stock-forecaster/internal/forecaster/config"
	"golang-stock-forecaster/internal/forecaster/delivery/consumer"
	delivery "golang-stock-forecaster/internal/forecaster/delivery/http"
	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/internal/forecaster/repository"
	"golang-stock-forecaster/internal/forecaster/service"
	"golang-stock-forecaster/pkg/logger"
	"golang-stock-forecaster/pkg/postgres"
	"golang-stock-forecaster/pkg/redis"
	"golang-stock-forecaster/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the forecast service",
	Run:   runServe,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Executes one forecast run and exits",
	Run:   runOnce,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, appLogger, db := mustBootstrap()
	defer func() { _ = appLogger.Sync() }()
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	appLogger.Info("Starting Forecast Service", logger.StringField("name", cfg.App.Name))

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	forecastSvc, schedulerSvc := buildServices(cfg, db, redisClient, appLogger)

	redisConsumer := consumer.NewRedisConsumer(cfg, redisClient.Client, forecastSvc, appLogger)
	if err := redisConsumer.EnsureStream(ctx); err != nil {
		appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
	}
	redisConsumer.Start(ctx)

	if err := schedulerSvc.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start scheduler", logger.ErrorField(err))
	}

	e := echo.New()
	e.HideBanner = true

	forecastHandler := delivery.NewForecastHandler(forecastSvc, schedulerSvc, appLogger)
	apiV1 := e.Group("/api/v1")
	forecastHandler.RegisterRoutes(apiV1.Group("/forecasts"))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start HTTP server", logger.ErrorField(err))
		}
	}()

	appLogger.Info("Forecast service started. Waiting for run requests...")
	<-ctx.Done()

	appLogger.Info("Shutting down forecast service...")
	schedulerSvc.Stop()
	redisConsumer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", logger.ErrorField(err))
	}
	appLogger.Info("Forecast service stopped.")
}

func runOnce(cmd *cobra.Command, args []string) {
	cfg, appLogger, db := mustBootstrap()
	defer func() { _ = appLogger.Sync() }()
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	appLogger.Info("Running one-shot forecast", logger.Field("symbols", cfg.Forecaster.Symbols))

	forecastSvc, _ := buildServices(cfg, db, nil, appLogger)

	report, err := forecastSvc.RunForecast(context.Background(), dto.TriggerCLI)
	if err != nil {
		appLogger.Fatal("Forecast run failed", logger.ErrorField(err))
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}

func mustBootstrap() (*config.Config, *logger.Logger, *postgres.DB) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	return cfg, appLogger, db
}

func buildServices(cfg *config.Config, db *postgres.DB, redisClient *redis.Client, appLogger *logger.Logger) (service.ForecastService, service.SchedulerService) {
	priceRepo := repository.NewStockPriceRepository(db.DB, cfg, appLogger)
	forecastRepo := repository.NewForecastRepository(db.DB, appLogger)
	runRepo := repository.NewForecastRunRepository(db.DB)

	methods, err := service.BuildMethods(cfg)
	if err != nil {
		appLogger.Fatal("Invalid forecast method configuration", logger.ErrorField(err))
	}
	engine := service.NewEngine(cfg, priceRepo, methods, appLogger)

	var notifier telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	var forecastSvc service.ForecastService
	var schedulerSvc service.SchedulerService
	if redisClient != nil {
		forecastSvc = service.NewForecastService(cfg, engine, forecastRepo, runRepo, redisClient.Client, notifier, appLogger)
		schedulerSvc = service.NewSchedulerService(cfg, redisClient.Client, appLogger)
	} else {
		// One-shot runs have no stream consumer and no scheduler.
		forecastSvc = service.NewForecastService(cfg, engine, forecastRepo, runRepo, nil, notifier, appLogger)
	}

	return forecastSvc, schedulerSvc
}

func main() {
	rootCmd := &cobra.Command{Use: "forecast-service"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing forecast-service CLI: %s\n", err)
		os.Exit(1)
	}
}
