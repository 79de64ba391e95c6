package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tunevault/pkg/models"
)

// InsertHealthCheck appends one diagnostic check result to the history.
func (s *Store) InsertHealthCheck(storage models.StorageType, check models.CheckType, passed bool, responseTimeMs int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "passed"
	if !passed {
		status = "failed"
	}

	var errMsg sql.NullString
	if errorMessage != "" {
		errMsg = sql.NullString{String: errorMessage, Valid: true}
	}

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO storage_health_checks (storage_type, check_type, status, response_time_ms, error_message)
		 VALUES (?, ?, ?, ?, ?)`,
		string(storage), string(check), status, responseTimeMs, errMsg,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// HealthHistory returns check results for a storage type since the given
// time, most recent first.
func (s *Store) HealthHistory(storage models.StorageType, since time.Time) ([]models.HealthCheckRecord, error) {
	if !storage.Valid() {
		return nil, ErrInvalidStorageType
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, storage_type, check_type, status, COALESCE(response_time_ms, 0), COALESCE(error_message, ''), checked_at
		 FROM storage_health_checks
		 WHERE storage_type = ? AND checked_at > ?
		 ORDER BY checked_at DESC, id DESC`,
		string(storage), since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var records []models.HealthCheckRecord
	for rows.Next() {
		var rec models.HealthCheckRecord
		if err := rows.Scan(&rec.ID, &rec.Storage, &rec.Check, &rec.Status, &rec.ResponseTimeMs, &rec.ErrorMessage, &rec.CheckedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CreateAlert persists a new unresolved alert and returns its ID.
func (s *Store) CreateAlert(storage models.StorageType, alertType models.CheckType, severity models.Severity, message string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO storage_alerts (storage_type, alert_type, severity, message) VALUES (?, ?, ?, ?)`,
		string(storage), string(alertType), string(severity), message,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return id, nil
}

// Alerts returns alerts filtered by resolved flag, most recent first.
func (s *Store) Alerts(resolved bool) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, storage_type, alert_type, severity, message, resolved, created_at, resolved_at
		 FROM storage_alerts
		 WHERE resolved = ?
		 ORDER BY created_at DESC, id DESC`,
		resolved,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var resolvedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.Storage, &a.Type, &a.Severity, &a.Message, &a.Resolved, &a.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks an alert as resolved and stamps the resolution time.
func (s *Store) ResolveAlert(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE storage_alerts SET resolved = TRUE, resolved_at = CURRENT_TIMESTAMP WHERE id = ? AND resolved = FALSE`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// CleanupHealthData deletes health checks older than the cutoff and resolved
// alerts whose resolution is older than the cutoff.
func (s *Store) CleanupHealthData(cutoff time.Time) (checksDeleted, alertsDeleted int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM storage_health_checks WHERE checked_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if checksDeleted, err = result.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	result, err = s.db.ExecContext(ctx,
		`DELETE FROM storage_alerts WHERE resolved = TRUE AND resolved_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return checksDeleted, 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if alertsDeleted, err = result.RowsAffected(); err != nil {
		return checksDeleted, 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return checksDeleted, alertsDeleted, nil
}

// IsNotFound reports whether the error marks a missing song or alert.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSongNotFound) || errors.Is(err, ErrAlertNotFound)
}
