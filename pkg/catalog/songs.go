package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tunevault/pkg/models"
)

const songColumns = `id, title, COALESCE(artist, ''), filename, filepath, file_size,
	play_count, last_played, date_added, is_available, storage_location,
	COALESCE(fallback_path, ''), COALESCE(checksum, ''), is_backup_synced, backup_date`

// AddSong inserts a catalog entry and returns its ID. The intake pipeline
// is the usual caller; tests use it to build fixtures.
func (s *Store) AddSong(song *models.Song) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	location := song.StorageLocation
	if location == "" {
		location = models.LocationPrimary
	}

	result, err := s.db.ExecContext(context.Background(),
		`INSERT INTO songs (title, artist, filename, filepath, file_size, play_count, last_played, is_available, storage_location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		song.Title, song.Artist, song.Filename, song.Filepath, song.FileSize,
		song.PlayCount, song.LastPlayed, song.IsAvailable, string(location),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	song.ID = id
	return id, nil
}

// SongByID retrieves a single song.
func (s *Store) SongByID(id int64) (*models.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+songColumns+` FROM songs WHERE id = ?`, id,
	)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return song, nil
}

// BackupCandidates returns available primary-only songs in backup priority
// order: highest play count first, then most recently played.
func (s *Store) BackupCandidates(limit int) ([]models.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySongs(
		`SELECT `+songColumns+` FROM songs
		 WHERE storage_location = 'primary' AND is_available = TRUE
		 ORDER BY play_count DESC, last_played DESC
		 LIMIT ?`, limit)
}

// LeastPlayedBackups returns backed-up songs in eviction order: lowest play
// count first, then least recently played.
func (s *Store) LeastPlayedBackups(limit int) ([]models.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySongs(
		`SELECT `+songColumns+` FROM songs
		 WHERE storage_location = 'both'
		 ORDER BY play_count ASC, last_played ASC
		 LIMIT ?`, limit)
}

// BackedUpSongs returns every song claiming a fallback copy.
func (s *Store) BackedUpSongs() ([]models.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.querySongs(
		`SELECT ` + songColumns + ` FROM songs
		 WHERE storage_location IN ('fallback', 'both') AND fallback_path IS NOT NULL`)
}

// CountBackedUp returns the number of songs with a fallback copy.
func (s *Store) CountBackedUp() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM songs WHERE storage_location IN ('fallback', 'both')`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return count, nil
}

// MarkBackedUp records a verified fallback copy for a song.
func (s *Store) MarkBackedUp(songID int64, fallbackPath, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE songs
		 SET storage_location = 'both', fallback_path = ?, checksum = ?,
		     is_backup_synced = TRUE, backup_date = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		fallbackPath, checksum, songID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return requireSongRow(result)
}

// DemoteToPrimary clears a song's fallback copy claim.
func (s *Store) DemoteToPrimary(songID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(context.Background(),
		`UPDATE songs
		 SET storage_location = 'primary', fallback_path = NULL,
		     is_backup_synced = FALSE, backup_date = NULL
		 WHERE id = ?`,
		songID,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return requireSongRow(result)
}

// RecordBackupAction appends an entry to the backup audit log.
func (s *Store) RecordBackupAction(songID int64, action models.BackupAction, sourcePath, destPath string, fileSize int64, checksum, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO backup_sync_log (song_id, action, source_path, destination_path, file_size, checksum, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		songID, string(action), nullIfEmpty(sourcePath), nullIfEmpty(destPath), fileSize, nullIfEmpty(checksum), nullIfEmpty(errorMessage),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return nil
}

// BackupCounts returns song counts grouped by storage location.
func (s *Store) BackupCounts() (*models.BackupStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &models.BackupStatus{}
	err := s.db.QueryRowContext(context.Background(),
		`SELECT COUNT(*),
		        SUM(CASE WHEN storage_location = 'primary' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN storage_location = 'fallback' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN storage_location = 'both' THEN 1 ELSE 0 END)
		 FROM songs WHERE is_available = TRUE`,
	).Scan(&status.TotalSongs, &nullableInt64{&status.PrimaryOnly}, &nullableInt64{&status.FallbackOnly}, &nullableInt64{&status.BothLocations})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*models.Song, error) {
	var song models.Song
	var lastPlayed, backupDate sql.NullTime
	err := row.Scan(
		&song.ID, &song.Title, &song.Artist, &song.Filename, &song.Filepath,
		&song.FileSize, &song.PlayCount, &lastPlayed, &song.DateAdded,
		&song.IsAvailable, &song.StorageLocation, &song.FallbackPath,
		&song.Checksum, &song.IsBackupSynced, &backupDate,
	)
	if err != nil {
		return nil, err
	}
	if lastPlayed.Valid {
		t := lastPlayed.Time
		song.LastPlayed = &t
	}
	if backupDate.Valid {
		t := backupDate.Time
		song.BackupDate = &t
	}
	return &song, nil
}

// querySongs runs a song query; callers hold the read lock.
func (s *Store) querySongs(query string, args ...any) ([]models.Song, error) {
	rows, err := s.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var songs []models.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseError, err)
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}

func requireSongRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrSongNotFound
	}
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
