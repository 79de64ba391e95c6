package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"tunevault/pkg/catalog"
	"tunevault/pkg/log"
	"tunevault/pkg/models"
	"tunevault/pkg/probe"
	"tunevault/pkg/state"
)

const (
	// DefaultCheckInterval is how often the polling loop refreshes
	// endpoint snapshots and evaluates automatic switching.
	DefaultCheckInterval = 30 * time.Second

	metricsWindow = 7 * 24 * time.Hour
)

// Monitor owns the active-storage state machine. It probes both endpoints,
// decides whether a switch is warranted, executes switches, and persists
// snapshots and events through the catalog.
type Monitor struct {
	primaryPath  string
	fallbackPath string

	prober  *probe.Prober
	catalog *catalog.Store
	state   *state.ActiveState

	checkInterval time.Duration

	// switchMu serializes switch validation and commit so two concurrent
	// switch requests cannot interleave their event log entries.
	switchMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a storage monitor. A non-positive interval falls back to the
// default.
func New(prober *probe.Prober, store *catalog.Store, st *state.ActiveState, primaryPath, fallbackPath string, checkInterval time.Duration) *Monitor {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	return &Monitor{
		primaryPath:   primaryPath,
		fallbackPath:  fallbackPath,
		prober:        prober,
		catalog:       store,
		state:         st,
		checkInterval: checkInterval,
	}
}

// PathFor returns the filesystem path of the given endpoint.
func (m *Monitor) PathFor(storage models.StorageType) string {
	if storage == models.StoragePrimary {
		return m.primaryPath
	}
	return m.fallbackPath
}

// CurrentStorage returns the active storage endpoint.
func (m *Monitor) CurrentStorage() models.StorageType {
	return m.state.Current()
}

// CurrentPath returns the filesystem path media should be served from.
func (m *Monitor) CurrentPath() string {
	return m.PathFor(m.state.Current())
}

// HealthSnapshot probes both endpoints and returns the combined view,
// including whether a switch is recommended under the prefer-primary policy.
func (m *Monitor) HealthSnapshot() *models.HealthSnapshot {
	primary := m.prober.Probe(m.primaryPath)
	fallback := m.prober.Probe(m.fallbackPath)
	current := m.state.Current()

	snapshot := &models.HealthSnapshot{
		Primary:        primary,
		Fallback:       fallback,
		CurrentStorage: current,
		OverallHealth:  overallHealth(primary, fallback),
	}

	switch {
	case primary.IsAvailable:
		snapshot.RecommendedStorage = models.StoragePrimary
	case fallback.IsAvailable:
		snapshot.RecommendedStorage = models.StorageFallback
	}

	switch current {
	case models.StoragePrimary:
		snapshot.ShouldSwitch = !primary.IsAvailable && fallback.IsAvailable
	case models.StorageFallback:
		// Prefer-primary: switch back as soon as primary returns.
		snapshot.ShouldSwitch = primary.IsAvailable
	}

	return snapshot
}

// SwitchTo validates the target, re-probes it, and commits the switch.
// The cooldown is deliberately not enforced here: callers deciding whether
// to switch automatically check it, so manual and forced switches stay
// possible at any time.
func (m *Monitor) SwitchTo(target models.StorageType) (*models.SwitchResult, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	info := m.prober.Probe(m.PathFor(target))
	if !info.IsAvailable {
		log.Warn().
			Str("target", string(target)).
			Str("path", info.Path).
			Str("probe_error", info.Error).
			Msg("Switch rejected, target storage unavailable")
		return nil, fmt.Errorf("%w: %s", ErrTargetUnavailable, target)
	}

	old := m.state.Commit(target)
	result := &models.SwitchResult{
		OldStorage: old,
		NewStorage: target,
		SwitchedAt: m.state.LastSwitch(),
	}

	message := fmt.Sprintf("Switched from %s to %s", old, target)
	if err := m.catalog.AppendEvent(models.EventSwitch, target, message); err != nil {
		log.Error().Err(err).Msg("Failed to record switch event")
	}
	m.persistSnapshot()

	log.Info().
		Str("old_storage", string(old)).
		Str("new_storage", string(target)).
		Str("free_space", humanize.IBytes(info.FreeBytes)).
		Msg("Storage switched")

	return result, nil
}

// AutoSwitch evaluates the switch policy and, when a switch is warranted,
// delegates to SwitchTo with the recommended endpoint. It returns nil with
// no error when no switch is needed.
func (m *Monitor) AutoSwitch() (*models.SwitchResult, error) {
	snapshot := m.HealthSnapshot()
	if !snapshot.ShouldSwitch || snapshot.RecommendedStorage == "" {
		return nil, nil
	}
	return m.SwitchTo(snapshot.RecommendedStorage)
}

// Metrics returns the operator metrics view: current snapshot plus event
// counts over the trailing week.
func (m *Monitor) Metrics() (*models.StorageMetrics, error) {
	snapshot := m.HealthSnapshot()

	stats, err := m.catalog.EventStats(time.Now().Add(-metricsWindow))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return &models.StorageMetrics{
		CurrentStorage:   snapshot.CurrentStorage,
		OverallHealth:    snapshot.OverallHealth,
		Primary:          snapshot.Primary,
		Fallback:         snapshot.Fallback,
		EventStats:       *stats,
		MonitoringActive: running,
	}, nil
}

// Events returns recent storage events, most recent first.
func (m *Monitor) Events(limit int) ([]models.StorageEvent, error) {
	return m.catalog.RecentEvents(limit)
}

// CleanupOldEvents deletes events older than the retention window.
func (m *Monitor) CleanupOldEvents(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := m.catalog.CleanupEvents(cutoff)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("deleted", deleted).Int("retention_days", retentionDays).Msg("Cleaned up old storage events")
	return deleted, nil
}

// Start begins the background polling loop. It performs an initial refresh
// synchronously, matching the first scheduled iteration.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.persistSnapshot()

	m.wg.Add(1)
	go m.pollLoop()

	log.Info().
		Dur("interval", m.checkInterval).
		Str("primary", m.primaryPath).
		Str("fallback", m.fallbackPath).
		Msg("Storage monitor started")
}

// Stop halts the polling loop and waits for the in-flight iteration.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	log.Info().Msg("Storage monitor stopped")
}

// pollLoop refreshes snapshots and evaluates automatic switching on a
// fixed interval. A failed iteration is logged and never fatal.
func (m *Monitor) pollLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runIteration()
		}
	}
}

// runIteration is one tick of the polling loop. The cooldown gates only
// the automatic path; manual switches bypass it by calling SwitchTo.
func (m *Monitor) runIteration() {
	m.persistSnapshot()

	if !m.state.CooldownElapsed() {
		log.Debug().
			Time("last_switch", m.state.LastSwitch()).
			Dur("cooldown", m.state.Cooldown()).
			Msg("Switch cooldown active, skipping auto-switch evaluation")
		return
	}

	result, err := m.AutoSwitch()
	if err != nil {
		log.Error().Err(err).Msg("Auto-switch failed")
		return
	}
	if result != nil {
		log.Warn().
			Str("old_storage", string(result.OldStorage)).
			Str("new_storage", string(result.NewStorage)).
			Msg("Automatic storage switch executed")
	}
}

// persistSnapshot writes the latest probe results to the status table.
// Persistence failures are logged; the in-memory view stays authoritative.
func (m *Monitor) persistSnapshot() {
	for storage, path := range map[models.StorageType]string{
		models.StoragePrimary:  m.primaryPath,
		models.StorageFallback: m.fallbackPath,
	} {
		info := m.prober.Probe(path)
		if err := m.catalog.UpdateEndpointStatus(storage, info); err != nil {
			log.Error().Err(err).Str("storage", string(storage)).Msg("Failed to persist storage status")
		}
	}
}

// overallHealth grades the pair of endpoints: both usable is healthy, one
// usable is warning, neither is error.
func overallHealth(primary, fallback *models.EndpointInfo) models.HealthTier {
	primaryOK := primary.IsAvailable && primary.HealthTier != models.TierError
	fallbackOK := fallback.IsAvailable && fallback.HealthTier != models.TierError

	switch {
	case primaryOK && fallbackOK:
		return models.TierHealthy
	case primaryOK || fallbackOK:
		return models.TierWarning
	default:
		return models.TierError
	}
}
