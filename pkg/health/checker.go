package health

import (
	"fmt"
	"sync"
	"time"

	"tunevault/pkg/catalog"
	"tunevault/pkg/log"
	"tunevault/pkg/models"
)

const (
	// ioTestFile is the name prefix of the hidden temp file written by
	// the performance check; each run appends a unique suffix.
	ioTestFile = ".tunevault_iotest"
	// integrityTestDir is the hidden directory used by the integrity check.
	integrityTestDir = ".tunevault_fscheck"

	criticalSpacePercent = 95.0
)

// Config carries the health checker tunables.
type Config struct {
	// IOPayloadSize is the size of the performance test payload.
	IOPayloadSize int
	// IOCeiling is the maximum acceptable round-trip time for the
	// performance test.
	IOCeiling time.Duration
	// WarningThreshold is the usage ratio at which space utilization fails.
	WarningThreshold float64
	// Interval is the continuous monitoring cadence.
	Interval time.Duration
	// ConsecutiveErrorLimit is how many error-status runs in a row the
	// primary must produce before a forced switch is requested.
	ConsecutiveErrorLimit int
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		IOPayloadSize:         1 << 20, // 1 MiB
		IOCeiling:             5 * time.Second,
		WarningThreshold:      0.90,
		Interval:              time.Minute,
		ConsecutiveErrorLimit: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IOPayloadSize <= 0 {
		c.IOPayloadSize = d.IOPayloadSize
	}
	if c.IOCeiling <= 0 {
		c.IOCeiling = d.IOCeiling
	}
	if c.WarningThreshold <= 0 || c.WarningThreshold > 1 {
		c.WarningThreshold = d.WarningThreshold
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ConsecutiveErrorLimit <= 0 {
		c.ConsecutiveErrorLimit = d.ConsecutiveErrorLimit
	}
	return c
}

// Switcher is the narrow monitor surface the continuous loop needs to
// escalate sustained primary failures into a forced switch.
type Switcher interface {
	CurrentStorage() models.StorageType
	AutoSwitch() (*models.SwitchResult, error)
}

// Checker runs multi-dimensional diagnostics against the storage paths,
// persists results and alerts, and optionally escalates sustained primary
// failures through a Switcher.
type Checker struct {
	cfg      Config
	catalog  *catalog.Store
	paths    map[models.StorageType]string
	switcher Switcher

	mu                sync.Mutex
	running           bool
	consecutiveErrors map[models.StorageType]int
	stopCh            chan struct{}
	wg                sync.WaitGroup
}

// New creates a health checker. switcher may be nil when forced-switch
// escalation is not wanted (tests, one-shot diagnostics).
func New(store *catalog.Store, primaryPath, fallbackPath string, switcher Switcher, cfg Config) *Checker {
	return &Checker{
		cfg:     cfg.withDefaults(),
		catalog: store,
		paths: map[models.StorageType]string{
			models.StoragePrimary:  primaryPath,
			models.StorageFallback: fallbackPath,
		},
		switcher:          switcher,
		consecutiveErrors: make(map[models.StorageType]int),
	}
}

// RunFullCheck performs all five diagnostic checks against a storage type
// and returns the aggregated report. Persistence failures are logged, not
// propagated; the only error is an unknown storage type.
func (c *Checker) RunFullCheck(storage models.StorageType) (*models.HealthReport, error) {
	path, ok := c.paths[storage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorage, storage)
	}

	report := &models.HealthReport{
		Storage:       storage,
		Path:          path,
		OverallStatus: models.TierHealthy,
		CheckedAt:     time.Now(),
	}

	availability := c.checkAvailability(path)
	report.Checks = append(report.Checks, availability)
	if !availability.Passed {
		// No point probing deeper when the path itself is unreachable.
		report.OverallStatus = models.TierError
		c.addAlert(report, models.CheckAvailability, models.SeverityCritical, "Storage is not available: "+availability.Error)
		c.finishReport(report)
		return report, nil
	}

	io := c.checkIOPerformance(path)
	report.Checks = append(report.Checks, io)
	if !io.Passed {
		downgrade(report, models.TierWarning)
		message := fmt.Sprintf("Slow I/O performance: %dms round trip", io.ResponseTime.Milliseconds())
		if io.Error != "" && io.Error != ErrIOTimeout.Error() {
			// A failed read/write is a different problem than slowness.
			message = "I/O test failed: " + io.Error
		}
		c.addAlert(report, models.CheckIOPerformance, models.SeverityWarning, message)
	}

	space := c.checkSpaceUtilization(path)
	report.Checks = append(report.Checks, space)
	if !space.Passed {
		severity := models.SeverityWarning
		tier := models.TierWarning
		if space.UsagePercent >= criticalSpacePercent {
			severity = models.SeverityCritical
			tier = models.TierError
		}
		downgrade(report, tier)
		c.addAlert(report, models.CheckSpaceUtilization, severity,
			fmt.Sprintf("High disk usage: %.1f%%", space.UsagePercent))
	}

	integrity := c.checkFilesystemIntegrity(path)
	report.Checks = append(report.Checks, integrity)
	if !integrity.Passed {
		downgrade(report, models.TierError)
		c.addAlert(report, models.CheckFilesystemIntegrity, models.SeverityCritical,
			"File system integrity issues detected: "+integrity.Error)
	}

	music := c.checkMusicFiles(path)
	report.Checks = append(report.Checks, music)
	if !music.Passed {
		downgrade(report, models.TierWarning)
		c.addAlert(report, models.CheckMusicFiles, models.SeverityWarning,
			fmt.Sprintf("%d music files are inaccessible", music.InaccessibleFiles))
	}

	report.Recommendations = recommendations(report)
	c.finishReport(report)
	return report, nil
}

// addAlert persists a new alert and attaches it to the report.
func (c *Checker) addAlert(report *models.HealthReport, alertType models.CheckType, severity models.Severity, message string) {
	alert := models.Alert{
		Storage:   report.Storage,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now(),
	}

	id, err := c.catalog.CreateAlert(report.Storage, alertType, severity, message)
	if err != nil {
		log.Error().Err(err).Str("alert_type", string(alertType)).Msg("Failed to persist alert")
	} else {
		alert.ID = id
	}
	report.Alerts = append(report.Alerts, alert)
}

// finishReport persists per-check rows and logs a health issue event when
// the run is degraded.
func (c *Checker) finishReport(report *models.HealthReport) {
	for _, check := range report.Checks {
		err := c.catalog.InsertHealthCheck(report.Storage, check.Type, check.Passed,
			check.ResponseTime.Milliseconds(), check.Error)
		if err != nil {
			log.Error().Err(err).Str("check", string(check.Type)).Msg("Failed to persist health check result")
		}
	}

	if report.OverallStatus != models.TierHealthy {
		message := fmt.Sprintf("Health check detected %s status", report.OverallStatus)
		if err := c.catalog.AppendEvent(models.EventHealthIssue, report.Storage, message); err != nil {
			log.Error().Err(err).Msg("Failed to record health issue event")
		}
		log.Warn().
			Str("storage", string(report.Storage)).
			Str("status", string(report.OverallStatus)).
			Int("alerts", len(report.Alerts)).
			Msg("Storage health degraded")
	}
}

// Start begins continuous monitoring of both storage types.
func (c *Checker) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(1)
	go c.monitorLoop()

	log.Info().Dur("interval", c.cfg.Interval).Msg("Storage health monitoring started")
}

// Stop halts continuous monitoring and waits for the in-flight iteration.
func (c *Checker) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	log.Info().Msg("Storage health monitoring stopped")
}

// monitorLoop checks both storage types on a fixed cadence. One bad
// iteration is logged and never stops the loop.
func (c *Checker) monitorLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.runIteration()
		}
	}
}

// runIteration is one pass over both storage types, tracking consecutive
// error runs and escalating sustained primary failures.
func (c *Checker) runIteration() {
	for _, storage := range []models.StorageType{models.StoragePrimary, models.StorageFallback} {
		report, err := c.RunFullCheck(storage)
		if err != nil {
			log.Error().Err(err).Str("storage", string(storage)).Msg("Health check iteration failed")
			continue
		}

		c.mu.Lock()
		if report.OverallStatus == models.TierError {
			c.consecutiveErrors[storage]++
		} else {
			c.consecutiveErrors[storage] = 0
		}
		failures := c.consecutiveErrors[storage]
		c.mu.Unlock()

		if storage == models.StoragePrimary && failures >= c.cfg.ConsecutiveErrorLimit {
			c.escalatePrimaryFailure(failures)
		}
	}
}

// escalatePrimaryFailure asks the monitor for an automatic switch after
// the primary has failed several runs in a row while still active.
func (c *Checker) escalatePrimaryFailure(failures int) {
	if c.switcher == nil || c.switcher.CurrentStorage() != models.StoragePrimary {
		return
	}

	log.Warn().
		Int("consecutive_failures", failures).
		Msg("Primary storage failing consistently, attempting switch to fallback")

	result, err := c.switcher.AutoSwitch()
	if err != nil {
		log.Error().Err(err).Msg("Forced switch after sustained primary failure did not succeed")
		return
	}
	if result != nil {
		log.Info().
			Str("new_storage", string(result.NewStorage)).
			Msg("Switched away from failing primary storage")
	}
}

// ConsecutiveErrors returns the current error streak for a storage type.
func (c *Checker) ConsecutiveErrors(storage models.StorageType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutiveErrors[storage]
}

// History returns persisted check results for a storage type within the
// trailing window.
func (c *Checker) History(storage models.StorageType, window time.Duration) ([]models.HealthCheckRecord, error) {
	return c.catalog.HealthHistory(storage, time.Now().Add(-window))
}

// CleanupOldData deletes health checks and resolved alerts older than the
// retention window.
func (c *Checker) CleanupOldData(retentionDays int) (checksDeleted, alertsDeleted int64, err error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	checksDeleted, alertsDeleted, err = c.catalog.CleanupHealthData(cutoff)
	if err != nil {
		return 0, 0, err
	}
	log.Info().
		Int64("health_checks_deleted", checksDeleted).
		Int64("alerts_deleted", alertsDeleted).
		Int("retention_days", retentionDays).
		Msg("Cleaned up old health data")
	return checksDeleted, alertsDeleted, nil
}

// downgrade lowers the report's overall status, never raising it.
func downgrade(report *models.HealthReport, tier models.HealthTier) {
	if report.OverallStatus == models.TierError {
		return
	}
	if tier == models.TierError || report.OverallStatus == models.TierHealthy {
		report.OverallStatus = tier
	}
}
