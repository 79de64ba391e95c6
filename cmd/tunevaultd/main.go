package main

import (
	"flag"
	"time"

	"tunevault/pkg/backup"
	"tunevault/pkg/catalog"
	"tunevault/pkg/config"
	"tunevault/pkg/health"
	"tunevault/pkg/log"
	"tunevault/pkg/monitor"
	"tunevault/pkg/probe"
	"tunevault/pkg/server"
	"tunevault/pkg/state"
)

const gracefulShutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger
	_ = log.Logger

	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if *debug || cfg.Debug {
		log.SetDebugMode()
		log.Debug().Msg("Debug mode enabled")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create directories")
	}

	store, err := catalog.NewStore(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("db_path", cfg.DatabasePath).Msg("Failed to open catalog")
	}

	if err := store.SeedEndpoints(cfg.PrimaryPath, cfg.FallbackPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed storage endpoints")
	}

	prober := probe.New(cfg.WarningThreshold)
	activeState := state.New(cfg.SwitchCooldown)
	mon := monitor.New(prober, store, activeState, cfg.PrimaryPath, cfg.FallbackPath, cfg.CheckInterval)
	checker := health.New(store, cfg.PrimaryPath, cfg.FallbackPath, mon, health.Config{
		IOPayloadSize:    cfg.IOPayloadSize,
		IOCeiling:        cfg.IOCeiling,
		WarningThreshold: cfg.WarningThreshold,
		Interval:         cfg.HealthCheckInterval,
	})
	backupMgr := backup.New(store, prober, cfg.PrimaryPath, cfg.FallbackPath, cfg.MaxBackupSongs)

	log.Info().
		Str("primary", cfg.PrimaryPath).
		Str("fallback", cfg.FallbackPath).
		Str("db", cfg.DatabasePath).
		Dur("check_interval", cfg.CheckInterval).
		Dur("health_check_interval", cfg.HealthCheckInterval).
		Msg("Starting tunevault")

	mon.Start()
	checker.Start()

	srv := server.NewServer(mon, checker, backupMgr, store, gracefulShutdownTimeout)
	if err := srv.Start(cfg.ListenAddr); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	checker.Stop()
	mon.Stop()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close catalog")
	}
}
