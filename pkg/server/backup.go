package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tunevault/pkg/log"
)

// BackupSyncHandler runs one backup pass.
func (s *Server) BackupSyncHandler(ctx echo.Context) error {
	result, err := s.backup.Sync()
	if err != nil {
		log.Error().Err(err).Msg("Backup sync request failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return ctx.JSON(http.StatusOK, result)
}

// BackupVerifyHandler re-checksums every backup copy.
func (s *Server) BackupVerifyHandler(ctx echo.Context) error {
	result, err := s.backup.VerifyIntegrity()
	if err != nil {
		log.Error().Err(err).Msg("Backup verification request failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return ctx.JSON(http.StatusOK, result)
}

// BackupStatusHandler returns location counts and volume capacity.
func (s *Server) BackupStatusHandler(ctx echo.Context) error {
	status, err := s.backup.Status()
	if err != nil {
		log.Error().Err(err).Msg("Backup status request failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return ctx.JSON(http.StatusOK, status)
}

// CleanupHandler prunes old events, health checks and resolved alerts.
func (s *Server) CleanupHandler(ctx echo.Context) error {
	days := 30
	if raw := ctx.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{
				"error": "days must be a positive integer",
			})
		}
		days = parsed
	}

	events, err := s.monitor.CleanupOldEvents(days)
	if err != nil {
		log.Error().Err(err).Msg("Event cleanup failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	checks, alerts, err := s.checker.CleanupOldData(days)
	if err != nil {
		log.Error().Err(err).Msg("Health data cleanup failed")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"events_deleted":        events,
		"health_checks_deleted": checks,
		"alerts_deleted":        alerts,
		"retention_days":        days,
	})
}
