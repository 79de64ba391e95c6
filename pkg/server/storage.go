package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tunevault/pkg/log"
	"tunevault/pkg/models"
	"tunevault/pkg/monitor"
)

const defaultEventLimit = 50

// StorageStatusHandler returns a fresh health snapshot of both volumes.
func (s *Server) StorageStatusHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.monitor.HealthSnapshot())
}

// StorageMetricsHandler returns event statistics for the trailing week.
func (s *Server) StorageMetricsHandler(ctx echo.Context) error {
	metrics, err := s.monitor.Metrics()
	if err != nil {
		log.Error().Err(err).Msg("Failed to collect storage metrics")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to collect storage metrics",
		})
	}
	return ctx.JSON(http.StatusOK, metrics)
}

// StorageEventsHandler returns recent storage events, newest first.
func (s *Server) StorageEventsHandler(ctx echo.Context) error {
	limit := defaultEventLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	events, err := s.monitor.Events(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read storage events")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to read storage events",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"events": events})
}

type switchRequest struct {
	StorageType models.StorageType `json:"storage_type"`
}

// SwitchHandler performs a manual switch to the requested storage.
func (s *Server) SwitchHandler(ctx echo.Context) error {
	var req switchRequest
	if err := ctx.Bind(&req); err != nil || !req.StorageType.Valid() {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "storage_type is required (primary or fallback)",
		})
	}

	result, err := s.monitor.SwitchTo(req.StorageType)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, monitor.ErrTargetUnavailable) {
			status = http.StatusConflict
		}
		return ctx.JSON(status, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, result)
}

// AutoSwitchHandler triggers an automatic switch when warranted.
func (s *Server) AutoSwitchHandler(ctx echo.Context) error {
	result, err := s.monitor.AutoSwitch()
	if err != nil {
		log.Error().Err(err).Msg("Auto-switch request failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	if result == nil {
		return ctx.JSON(http.StatusOK, map[string]any{
			"switched": false,
			"message":  "No storage switch needed",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"switched": true,
		"result":   result,
	})
}

// ForceCheckHandler runs an immediate snapshot refresh and returns it.
func (s *Server) ForceCheckHandler(ctx echo.Context) error {
	snapshot := s.monitor.HealthSnapshot()
	log.Info().
		Str("current", string(snapshot.CurrentStorage)).
		Str("health", string(snapshot.OverallHealth)).
		Msg("Forced storage check")
	return ctx.JSON(http.StatusOK, map[string]any{"check_result": snapshot})
}
