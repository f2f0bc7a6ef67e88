package http

import (
	"net/http"
	"strconv"
	"time"

	"golang-stock-forecaster/internal/forecaster/dto"
	"golang-stock-forecaster/internal/forecaster/service"
	"golang-stock-forecaster/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastHandler serves the read and administration surface consumed by
// the dashboard.
type ForecastHandler struct {
	forecastService  service.ForecastService
	schedulerService service.SchedulerService
	logger           *logger.Logger
}

// NewForecastHandler creates a new ForecastHandler.
func NewForecastHandler(forecastService service.ForecastService, schedulerService service.SchedulerService, logger *logger.Logger) *ForecastHandler {
	return &ForecastHandler{
		forecastService:  forecastService,
		schedulerService: schedulerService,
		logger:           logger,
	}
}

// RegisterRoutes registers the forecast routes to the Echo group.
func (h *ForecastHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListForecasts)
	g.GET("/summary", h.GetSummary)
	g.GET("/runs", h.ListRuns)
	g.POST("/run", h.TriggerRun)
	g.DELETE("/prune", h.PruneForecasts)
}

// ListForecasts returns stored forecasts filtered by symbol, method and
// date range, ordered by forecast date.
func (h *ForecastHandler) ListForecasts(c echo.Context) error {
	filter := dto.ForecastFilter{
		Symbol: c.QueryParam("symbol"),
		Method: c.QueryParam("method"),
	}

	if from := c.QueryParam("from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid 'from' date, expected YYYY-MM-DD"})
		}
		filter.From = &parsed
	}
	if to := c.QueryParam("to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid 'to' date, expected YYYY-MM-DD"})
		}
		filter.To = &parsed
	}

	records, err := h.forecastService.QueryForecasts(c.Request().Context(), filter)
	if err != nil {
		h.logger.Error("failed to query forecasts", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, records)
}

// GetSummary returns aggregate counts of stored forecasts.
func (h *ForecastHandler) GetSummary(c echo.Context) error {
	summary, err := h.forecastService.Summary(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to build forecast summary", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, summary)
}

// ListRuns returns recent pipeline runs with their reports.
func (h *ForecastHandler) ListRuns(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid 'limit'"})
		}
		limit = parsed
	}

	runs, err := h.forecastService.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

// TriggerRun enqueues a manual forecast run.
func (h *ForecastHandler) TriggerRun(c echo.Context) error {
	if err := h.schedulerService.PublishRunRequest(c.Request().Context(), dto.TriggerManual); err != nil {
		h.logger.Error("failed to trigger run", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "queued"})
}

// PruneForecasts removes forecasts whose target date is older than the
// given number of days. Without a 'days' parameter the configured
// retention applies.
func (h *ForecastHandler) PruneForecasts(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "'days' must be a positive integer"})
		}
		days = parsed
	}

	removed, err := h.forecastService.PruneForecasts(c.Request().Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.logger.Error("failed to prune forecasts", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": removed})
}
