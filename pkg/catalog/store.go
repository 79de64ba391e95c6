package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"tunevault/pkg/models"

	_ "modernc.org/sqlite"
)

// Store manages the music catalog and all storage monitoring state in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore creates a new catalog store with the given database path.
func NewStore(dbPath string) (*Store, error) {
	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseError, err)
	}

	ctx := context.Background()

	// Enable foreign keys
	if _, err := database.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable foreign keys: %w", ErrDatabaseError, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := database.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL mode: %w", ErrDatabaseError, err)
	}

	store := &Store{db: database}
	if err := store.Initialize(); err != nil {
		_ = database.Close()
		return nil, err
	}

	return store, nil
}

// Initialize creates the database schema.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(), Schema)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrDatabaseError, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SeedEndpoints creates the two fixed storage_status rows if absent.
func (s *Store) SeedEndpoints(primaryPath, fallbackPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	for i, row := range []struct {
		id      int
		storage models.StorageType
		path    string
	}{
		{1, models.StoragePrimary, primaryPath},
		{2, models.StorageFallback, fallbackPath},
	} {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO storage_status (id, storage_type, mount_point) VALUES (?, ?, ?)`,
			row.id, row.storage, row.path,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to seed endpoint %d: %w", ErrDatabaseError, i+1, err)
		}
	}
	return nil
}

// UpdateEndpointStatus persists the latest probe snapshot for an endpoint.
func (s *Store) UpdateEndpointStatus(storage models.StorageType, info *models.EndpointInfo) error {
	if !storage.Valid() {
		return ErrInvalidStorageType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(),
		`UPDATE storage_status
		 SET is_available = ?, capacity_bytes = ?, used_bytes = ?, free_bytes = ?,
		     health_status = ?, last_checked = CURRENT_TIMESTAMP
		 WHERE storage_type = ?`,
		info.IsAvailable, info.CapacityBytes, info.UsedBytes, info.FreeBytes,
		string(info.HealthTier), string(storage),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// AppendEvent adds an immutable record to the storage event log.
func (s *Store) AppendEvent(eventType models.EventType, storage models.StorageType, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO storage_events (event_type, storage_type, message) VALUES (?, ?, ?)`,
		string(eventType), string(storage), message,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// RecentEvents returns up to limit events, most recent first.
func (s *Store) RecentEvents(limit int) ([]models.StorageEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, event_type, storage_type, message, occurred_at
		 FROM storage_events
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]models.StorageEvent, 0, limit)
	for rows.Next() {
		var ev models.StorageEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Storage, &ev.Message, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// EventStats aggregates event counts since the given time.
func (s *Store) EventStats(since time.Time) (*models.EventStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.EventStats{}
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*),
		        SUM(CASE WHEN event_type = 'switch' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN event_type = 'health_issue' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN event_type = 'error' THEN 1 ELSE 0 END)
		 FROM storage_events
		 WHERE occurred_at > ?`, since.UTC(),
	).Scan(&stats.TotalEvents, &nullableInt64{&stats.Switches}, &nullableInt64{&stats.HealthIssues}, &nullableInt64{&stats.Errors})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return stats, nil
}

// CleanupEvents deletes events older than the cutoff and returns the count.
func (s *Store) CleanupEvents(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`DELETE FROM storage_events WHERE occurred_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return deleted, nil
}

// nullableInt64 scans SUM() results that are NULL on empty tables.
type nullableInt64 struct {
	dst *int64
}

func (n *nullableInt64) Scan(value any) error {
	var v sql.NullInt64
	if err := v.Scan(value); err != nil {
		return err
	}
	*n.dst = v.Int64
	return nil
}
