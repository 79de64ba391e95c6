package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"

	"tunevault/pkg/catalog"
	"tunevault/pkg/log"
	"tunevault/pkg/models"
	"tunevault/pkg/probe"
)

const (
	// DefaultMaxBackupSongs bounds the fallback set; the SD card is small.
	DefaultMaxBackupSongs = 100
	// minFallbackFreeBytes is the free-space floor below which syncs are
	// refused outright.
	minFallbackFreeBytes = 1 << 30 // 1 GiB
	// evictionBatch is how many least-played songs one cleanup pass removes.
	evictionBatch = 10
)

// Manager replicates the most-played songs from primary to fallback
// storage, keeping the backup set bounded and checksum-verified.
type Manager struct {
	catalog        *catalog.Store
	prober         *probe.Prober
	primaryPath    string
	fallbackPath   string
	maxBackupSongs int

	// freeSpace and checksum are swappable in tests.
	freeSpace func(path string) (uint64, error)
	checksum  func(path string) (string, error)

	mu sync.Mutex // serializes sync and verify passes
}

// New creates a backup manager. maxBackupSongs <= 0 selects the default.
func New(store *catalog.Store, prober *probe.Prober, primaryPath, fallbackPath string, maxBackupSongs int) *Manager {
	if maxBackupSongs <= 0 {
		maxBackupSongs = DefaultMaxBackupSongs
	}
	return &Manager{
		catalog:        store,
		prober:         prober,
		primaryPath:    primaryPath,
		fallbackPath:   fallbackPath,
		maxBackupSongs: maxBackupSongs,
		freeSpace:      statfsFree,
		checksum:       checksumFile,
	}
}

// MaxBackupSongs returns the configured backup set bound.
func (m *Manager) MaxBackupSongs() int {
	return m.maxBackupSongs
}

// Sync runs one backup pass: refuse on low fallback space, evict the
// least-played backups when at capacity, then copy the most-played
// primary songs until the bound is reached.
func (m *Manager) Sync() (*models.BackupSyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &models.BackupSyncResult{}

	free, err := m.freeSpace(m.fallbackPath)
	if err != nil {
		return nil, fmt.Errorf("fallback storage not measurable: %w", err)
	}
	if free < minFallbackFreeBytes {
		result.Reason = fmt.Sprintf("low space on fallback storage: %s free", humanize.IBytes(free))
		log.Warn().Str("free", humanize.IBytes(free)).Msg("Low space on fallback storage, skipping backup sync")
		return result, nil
	}

	total, err := m.catalog.CountBackedUp()
	if err != nil {
		return nil, err
	}
	result.TotalBackupSongs = total

	if total >= m.maxBackupSongs {
		removed, err := m.evictLeastPlayed()
		if err != nil {
			log.Error().Err(err).Msg("Backup eviction failed")
		} else {
			result.TotalBackupSongs -= removed
		}
	}

	candidates, err := m.catalog.BackupCandidates(m.maxBackupSongs)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		song := &candidates[i]
		if result.TotalBackupSongs >= m.maxBackupSongs {
			result.Skipped++
			continue
		}
		if err := m.BackupOne(song); err != nil {
			log.Error().Err(err).Str("song", song.Filename).Msg("Backup failed")
			result.Failed++
			continue
		}
		result.BackedUp++
		result.TotalBackupSongs++
	}

	log.Info().
		Int("backed_up", result.BackedUp).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("total_backup_songs", result.TotalBackupSongs).
		Msg("Backup sync completed")
	return result, nil
}

// BackupOne copies a single song to fallback storage, verifies the copy
// by checksum, and records the outcome in the catalog and audit log. A
// failed verification removes the partial copy.
func (m *Manager) BackupOne(song *models.Song) error {
	if _, err := os.Stat(song.Filepath); err != nil {
		m.logAction(song.ID, models.BackupFailed, song.Filepath, "", 0, "", ErrSourceMissing.Error())
		return fmt.Errorf("%w: %s", ErrSourceMissing, song.Filepath)
	}

	if err := os.MkdirAll(m.fallbackPath, 0o750); err != nil {
		return err
	}
	destPath := filepath.Join(m.fallbackPath, filepath.Base(song.Filepath))

	sourceChecksum, size, err := copyFile(song.Filepath, destPath)
	if err != nil {
		m.logAction(song.ID, models.BackupFailed, song.Filepath, destPath, 0, "", err.Error())
		return err
	}

	destChecksum, err := m.checksum(destPath)
	if err != nil {
		m.logAction(song.ID, models.BackupFailed, song.Filepath, destPath, 0, "", err.Error())
		return err
	}
	if destChecksum != sourceChecksum {
		if err := os.Remove(destPath); err != nil {
			log.Error().Err(err).Str("file", destPath).Msg("Failed to remove unverified backup copy")
		}
		m.logAction(song.ID, models.BackupFailed, song.Filepath, destPath, 0, "", ErrChecksumMismatch.Error())
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, song.Filename)
	}

	if err := m.catalog.MarkBackedUp(song.ID, destPath, sourceChecksum); err != nil {
		return err
	}
	m.logAction(song.ID, models.BackupCreated, song.Filepath, destPath, size, sourceChecksum, "")

	log.Info().Str("song", song.Filename).Str("size", humanize.IBytes(uint64(size))).Msg("Backed up song")
	return nil
}

// evictLeastPlayed removes a batch of the least-played backup copies to
// make room for more popular songs.
func (m *Manager) evictLeastPlayed() (int, error) {
	songs, err := m.catalog.LeastPlayedBackups(evictionBatch)
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := range songs {
		song := &songs[i]
		if song.FallbackPath != "" {
			if err := os.Remove(song.FallbackPath); err != nil && !os.IsNotExist(err) {
				log.Error().Err(err).Str("file", song.FallbackPath).Msg("Failed to remove backup copy")
				continue
			}
		}
		if err := m.catalog.DemoteToPrimary(song.ID); err != nil {
			log.Error().Err(err).Int64("song_id", song.ID).Msg("Failed to demote evicted song")
			continue
		}
		m.logAction(song.ID, models.BackupRemoved, "", song.FallbackPath, 0, "", "")
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Evicted least-played backup songs")
	}
	return removed, nil
}

// VerifyIntegrity re-checksums every backup copy. Missing copies are
// demoted back to primary-only; corrupted copies are reported but left
// in place for the next sync to overwrite.
func (m *Manager) VerifyIntegrity() (*models.IntegrityResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	songs, err := m.catalog.BackedUpSongs()
	if err != nil {
		return nil, err
	}

	result := &models.IntegrityResult{}
	for i := range songs {
		song := &songs[i]

		if _, err := os.Stat(song.FallbackPath); err != nil {
			result.Missing++
			if err := m.catalog.DemoteToPrimary(song.ID); err != nil {
				log.Error().Err(err).Int64("song_id", song.ID).Msg("Failed to demote song with missing backup")
			}
			continue
		}

		if song.Checksum != "" {
			sum, err := m.checksum(song.FallbackPath)
			if err != nil || sum != song.Checksum {
				result.Corrupted++
				result.CorruptedPaths = append(result.CorruptedPaths, song.FallbackPath)
				log.Warn().Str("file", song.FallbackPath).Msg("Corrupted backup copy detected")
				continue
			}
		}

		result.Verified++
	}

	log.Info().
		Int("verified", result.Verified).
		Int("corrupted", result.Corrupted).
		Int("missing", result.Missing).
		Msg("Backup verification completed")
	return result, nil
}

// Status reports the catalog's location counts plus live capacity
// snapshots of both volumes.
func (m *Manager) Status() (*models.BackupStatus, error) {
	status, err := m.catalog.BackupCounts()
	if err != nil {
		return nil, err
	}
	status.Primary = m.prober.Probe(m.primaryPath)
	status.Fallback = m.prober.Probe(m.fallbackPath)
	return status, nil
}

// logAction writes to the audit log; failures are logged, not propagated.
func (m *Manager) logAction(songID int64, action models.BackupAction, sourcePath, destPath string, size int64, checksum, errorMessage string) {
	if err := m.catalog.RecordBackupAction(songID, action, sourcePath, destPath, size, checksum, errorMessage); err != nil {
		log.Error().Err(err).Int64("song_id", songID).Str("action", string(action)).Msg("Failed to record backup action")
	}
}

// copyFile streams src into dst, returning the sha256 of the bytes
// written and their count.
func copyFile(src, dst string) (checksum string, size int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return "", 0, err
	}

	hash := sha256.New()
	size, err = io.Copy(io.MultiWriter(out, hash), in)
	if err != nil {
		_ = out.Close()
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}

// checksumFile returns the sha256 of a file's contents.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// statfsFree returns the unprivileged free bytes on the volume holding path.
func statfsFree(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil // #nosec G115 - syscall values are system dependent
}
