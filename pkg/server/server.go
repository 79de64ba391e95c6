package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tunevault/pkg/backup"
	"tunevault/pkg/catalog"
	"tunevault/pkg/health"
	"tunevault/pkg/log"
	"tunevault/pkg/monitor"
)

// Server is the admin HTTP surface over the monitor, health checker and
// backup manager.
type Server struct {
	monitor                 *monitor.Monitor
	checker                 *health.Checker
	backup                  *backup.Manager
	catalog                 *catalog.Store
	gracefulShutdownTimeout time.Duration
	echo                    *echo.Echo
}

func NewServer(mon *monitor.Monitor, checker *health.Checker, backupMgr *backup.Manager, store *catalog.Store, gracefulShutdownTimeout time.Duration) *Server {
	s := &Server{
		monitor:                 mon,
		checker:                 checker,
		backup:                  backupMgr,
		catalog:                 store,
		gracefulShutdownTimeout: gracefulShutdownTimeout,
		echo:                    echo.New(),
	}
	s.setupRoutes()
	return s
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start(addr string) error {
	go func() {
		log.Info().Str("addr", addr).Msg("Starting storage admin server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.gracefulShutdownTimeout)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Logger())
	s.echo.Use(middleware.Recover())

	s.echo.GET("/storage/status", s.StorageStatusHandler)
	s.echo.GET("/storage/metrics", s.StorageMetricsHandler)
	s.echo.GET("/storage/events", s.StorageEventsHandler)
	s.echo.POST("/storage/switch", s.SwitchHandler)
	s.echo.POST("/storage/auto-switch", s.AutoSwitchHandler)
	s.echo.POST("/storage/check", s.ForceCheckHandler)

	s.echo.POST("/health/check/:storage", s.HealthCheckHandler)
	s.echo.GET("/health/history/:storage", s.HealthHistoryHandler)
	s.echo.GET("/alerts", s.AlertsHandler)
	s.echo.POST("/alerts/:id/resolve", s.ResolveAlertHandler)

	s.echo.POST("/backup/sync", s.BackupSyncHandler)
	s.echo.POST("/backup/verify", s.BackupVerifyHandler)
	s.echo.GET("/backup/status", s.BackupStatusHandler)

	s.echo.POST("/maintenance/cleanup", s.CleanupHandler)
}
