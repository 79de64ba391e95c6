package models

import "time"

// CheckType identifies one of the five diagnostic checks.
type CheckType string

const (
	CheckAvailability        CheckType = "availability"
	CheckIOPerformance       CheckType = "io_performance"
	CheckSpaceUtilization    CheckType = "space_utilization"
	CheckFilesystemIntegrity CheckType = "filesystem_integrity"
	CheckMusicFiles          CheckType = "music_files"
)

// Severity grades a detected health problem.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CheckResult is the outcome of a single diagnostic check within one run.
// Fields past Error are populated only by the checks that measure them.
type CheckResult struct {
	Type         CheckType     `json:"check_type"`
	Passed       bool          `json:"passed"`
	ResponseTime time.Duration `json:"response_time"`
	Message      string        `json:"message,omitempty"`
	Error        string        `json:"error,omitempty"`

	WriteTime      time.Duration `json:"write_time,omitempty"`
	ReadTime       time.Duration `json:"read_time,omitempty"`
	ThroughputMBps float64       `json:"throughput_mbps,omitempty"`

	UsagePercent float64 `json:"usage_percent,omitempty"`

	TotalFiles        int `json:"total_files,omitempty"`
	InaccessibleFiles int `json:"inaccessible_files,omitempty"`
}

// HealthReport aggregates one full diagnostic run against a storage endpoint.
type HealthReport struct {
	Storage         StorageType   `json:"storage_type"`
	Path            string        `json:"storage_path"`
	OverallStatus   HealthTier    `json:"overall_status"`
	Checks          []CheckResult `json:"checks"`
	Alerts          []Alert       `json:"alerts,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
	CheckedAt       time.Time     `json:"checked_at"`
}

// Check returns the result for the given check type, or nil if it did not run.
func (r *HealthReport) Check(t CheckType) *CheckResult {
	for i := range r.Checks {
		if r.Checks[i].Type == t {
			return &r.Checks[i]
		}
	}
	return nil
}

// HealthCheckRecord is one persisted row of the health check history.
type HealthCheckRecord struct {
	ID             int64       `json:"id"`
	Storage        StorageType `json:"storage_type"`
	Check          CheckType   `json:"check_type"`
	Status         string      `json:"status"`
	ResponseTimeMs int64       `json:"response_time_ms"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	CheckedAt      time.Time   `json:"checked_at"`
}

// Alert is a persisted, resolvable record of a detected health problem.
type Alert struct {
	ID         int64       `json:"id"`
	Storage    StorageType `json:"storage_type"`
	Type       CheckType   `json:"alert_type"`
	Severity   Severity    `json:"severity"`
	Message    string      `json:"message"`
	Resolved   bool        `json:"resolved"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}
