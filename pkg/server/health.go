package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"tunevault/pkg/catalog"
	"tunevault/pkg/log"
	"tunevault/pkg/models"
)

const defaultHistoryHours = 24

// HealthCheckHandler runs the full diagnostic suite against one storage.
func (s *Server) HealthCheckHandler(ctx echo.Context) error {
	storage := models.StorageType(ctx.Param("storage"))
	if !storage.Valid() {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "storage must be primary or fallback",
		})
	}

	report, err := s.checker.RunFullCheck(storage)
	if err != nil {
		log.Error().Err(err).Str("storage", string(storage)).Msg("Health check request failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return ctx.JSON(http.StatusOK, report)
}

// HealthHistoryHandler returns persisted check results for the trailing
// window (hours query parameter, default 24).
func (s *Server) HealthHistoryHandler(ctx echo.Context) error {
	storage := models.StorageType(ctx.Param("storage"))
	if !storage.Valid() {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "storage must be primary or fallback",
		})
	}

	hours := defaultHistoryHours
	if raw := ctx.QueryParam("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "hours must be a positive integer",
			})
		}
		hours = parsed
	}

	history, err := s.checker.History(storage, time.Duration(hours)*time.Hour)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read health history")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to read health history",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"history": history, "hours": hours})
}

// AlertsHandler lists alerts; resolved=true selects resolved ones.
func (s *Server) AlertsHandler(ctx echo.Context) error {
	resolved := ctx.QueryParam("resolved") == "true"

	alerts, err := s.catalog.Alerts(resolved)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read alerts")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to read alerts",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"alerts": alerts})
}

// ResolveAlertHandler marks an active alert as resolved.
func (s *Server) ResolveAlertHandler(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "alert id must be an integer",
		})
	}

	if err := s.catalog.ResolveAlert(id); err != nil {
		if catalog.IsNotFound(err) {
			return ctx.JSON(http.StatusNotFound, map[string]string{
				"error": "Alert not found or already resolved",
			})
		}
		log.Error().Err(err).Int64("alert_id", id).Msg("Failed to resolve alert")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to resolve alert",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"resolved": true, "id": id})
}
