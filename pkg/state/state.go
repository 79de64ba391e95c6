// Package state holds the single source of truth for which storage
// endpoint is currently active. The monitor and any manual switch path
// mutate it; playback and metrics consumers only read it.
package state

import (
	"sync"
	"time"

	"tunevault/pkg/models"
)

// DefaultSwitchCooldown is the minimum spacing automatic switches keep
// between each other to avoid flapping between marginal endpoints.
const DefaultSwitchCooldown = 5 * time.Minute

// ActiveState tracks the active storage endpoint and the last switch time.
// All mutation goes through Commit, which serializes writers.
type ActiveState struct {
	mu         sync.Mutex
	current    models.StorageType
	lastSwitch time.Time
	cooldown   time.Duration
}

// New creates the state object starting on primary storage.
// A non-positive cooldown falls back to the default.
func New(cooldown time.Duration) *ActiveState {
	if cooldown <= 0 {
		cooldown = DefaultSwitchCooldown
	}
	return &ActiveState{
		current:  models.StoragePrimary,
		cooldown: cooldown,
	}
}

// Current returns the active storage endpoint.
func (s *ActiveState) Current() models.StorageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// LastSwitch returns when the last switch was committed.
// The zero time means no switch has happened yet.
func (s *ActiveState) LastSwitch() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSwitch
}

// Cooldown returns the configured switch cooldown.
func (s *ActiveState) Cooldown() time.Duration {
	return s.cooldown
}

// CooldownElapsed reports whether enough time has passed since the last
// switch for an automatic switch to be considered again.
func (s *ActiveState) CooldownElapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSwitch.IsZero() {
		return true
	}
	return time.Since(s.lastSwitch) >= s.cooldown
}

// Commit switches the active storage to target, stamps the switch time,
// and returns the previous endpoint.
func (s *ActiveState) Commit(target models.StorageType) models.StorageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.current
	s.current = target
	s.lastSwitch = time.Now()
	return old
}
