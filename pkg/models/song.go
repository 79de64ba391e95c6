package models

import "time"

// StorageLocation records where a song's file copies currently live.
type StorageLocation string

const (
	// LocationPrimary means the song exists only on primary storage.
	LocationPrimary StorageLocation = "primary"
	// LocationFallback means the song exists only on fallback storage.
	LocationFallback StorageLocation = "fallback"
	// LocationBoth means a verified copy exists on both volumes.
	LocationBoth StorageLocation = "both"
)

// Song is one catalog entry. Backup-related columns are owned by the
// backup manager; the rest are populated by the intake pipeline.
type Song struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Filename  string `json:"filename"`
	Filepath  string `json:"filepath"`
	FileSize  int64  `json:"file_size"`
	PlayCount int64  `json:"play_count"`

	LastPlayed  *time.Time `json:"last_played,omitempty"`
	DateAdded   time.Time  `json:"date_added"`
	IsAvailable bool       `json:"is_available"`

	StorageLocation StorageLocation `json:"storage_location"`
	FallbackPath    string          `json:"fallback_path,omitempty"`
	Checksum        string          `json:"checksum,omitempty"`
	IsBackupSynced  bool            `json:"is_backup_synced"`
	BackupDate      *time.Time      `json:"backup_date,omitempty"`
}

// BackupAction classifies entries in the backup audit log.
type BackupAction string

const (
	BackupCreated BackupAction = "backup_created"
	BackupFailed  BackupAction = "backup_failed"
	BackupRemoved BackupAction = "backup_removed"
)

// BackupSyncResult summarizes one backup sync pass.
type BackupSyncResult struct {
	BackedUp         int    `json:"backed_up"`
	Failed           int    `json:"failed"`
	Skipped          int    `json:"skipped"`
	TotalBackupSongs int    `json:"total_backup_songs"`
	Reason           string `json:"reason,omitempty"`
}

// IntegrityResult summarizes one backup verification pass.
type IntegrityResult struct {
	Verified       int      `json:"verified"`
	Corrupted      int      `json:"corrupted"`
	Missing        int      `json:"missing"`
	CorruptedPaths []string `json:"corrupted_paths,omitempty"`
}

// BackupStatus is the song-count and capacity overview for operators.
type BackupStatus struct {
	TotalSongs    int64         `json:"total_songs"`
	PrimaryOnly   int64         `json:"primary_only"`
	FallbackOnly  int64         `json:"fallback_only"`
	BothLocations int64         `json:"both_locations"`
	Primary       *EndpointInfo `json:"primary_storage,omitempty"`
	Fallback      *EndpointInfo `json:"fallback_storage,omitempty"`
}
