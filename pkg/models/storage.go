package models

import "time"

// StorageType identifies one of the two fixed storage endpoints.
type StorageType string

const (
	// StoragePrimary is the fast primary volume, preferred when healthy.
	StoragePrimary StorageType = "primary"
	// StorageFallback is the slower fallback volume used during failover.
	StorageFallback StorageType = "fallback"
)

// Valid reports whether the storage type is one of the two known endpoints.
func (t StorageType) Valid() bool {
	return t == StoragePrimary || t == StorageFallback
}

// HealthTier is the coarse health classification of an endpoint.
type HealthTier string

const (
	TierHealthy HealthTier = "healthy"
	TierWarning HealthTier = "warning"
	TierError   HealthTier = "error"
)

// EndpointInfo is a point-in-time snapshot of one storage endpoint.
// It is recomputed on every probe and never treated as authoritative state.
type EndpointInfo struct {
	Path          string     `json:"path"`
	IsAvailable   bool       `json:"is_available"`
	IsMounted     bool       `json:"is_mounted"`
	CapacityBytes uint64     `json:"capacity_bytes"`
	UsedBytes     uint64     `json:"used_bytes"`
	FreeBytes     uint64     `json:"free_bytes"`
	UsagePercent  float64    `json:"usage_percent"`
	HealthTier    HealthTier `json:"health_status"`
	Error         string     `json:"error,omitempty"`
}

// HealthSnapshot is the monitor's combined view of both endpoints.
type HealthSnapshot struct {
	Primary            *EndpointInfo `json:"primary"`
	Fallback           *EndpointInfo `json:"fallback"`
	CurrentStorage     StorageType   `json:"current_storage"`
	RecommendedStorage StorageType   `json:"recommended_storage,omitempty"`
	ShouldSwitch       bool          `json:"should_switch"`
	OverallHealth      HealthTier    `json:"overall_health"`
}

// SwitchResult describes a committed storage switch.
type SwitchResult struct {
	OldStorage StorageType `json:"old_storage"`
	NewStorage StorageType `json:"new_storage"`
	SwitchedAt time.Time   `json:"switched_at"`
}

// EventType classifies entries in the storage event log.
type EventType string

const (
	EventSwitch      EventType = "switch"
	EventHealthIssue EventType = "health_issue"
	EventError       EventType = "error"
)

// StorageEvent is one append-only record in the storage event log.
type StorageEvent struct {
	ID         int64       `json:"id"`
	Type       EventType   `json:"event_type"`
	Storage    StorageType `json:"storage_type"`
	Message    string      `json:"message"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// EventStats aggregates event counts over a trailing window.
type EventStats struct {
	TotalEvents  int64 `json:"total_events"`
	Switches     int64 `json:"switches"`
	HealthIssues int64 `json:"health_issues"`
	Errors       int64 `json:"errors"`
}

// StorageMetrics is the combined metrics view served to operators.
type StorageMetrics struct {
	CurrentStorage   StorageType   `json:"current_storage"`
	OverallHealth    HealthTier    `json:"overall_health"`
	Primary          *EndpointInfo `json:"primary_storage"`
	Fallback         *EndpointInfo `json:"fallback_storage"`
	EventStats       EventStats    `json:"event_stats"`
	MonitoringActive bool          `json:"monitoring_active"`
}
