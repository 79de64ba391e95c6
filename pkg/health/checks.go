package health

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"tunevault/pkg/log"
	"tunevault/pkg/models"
)

// musicExtensions are the audio formats the accessibility check recognizes.
var musicExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
}

// checkAvailability verifies existence plus read and write access.
func (c *Checker) checkAvailability(path string) models.CheckResult {
	result := models.CheckResult{Type: models.CheckAvailability}
	start := time.Now()
	defer func() { result.ResponseTime = time.Since(start) }()

	if _, err := os.Stat(path); err != nil {
		result.Error = fmt.Sprintf("%s: %v", ErrPathUnavailable, err)
		return result
	}
	if err := syscall.Access(path, unix.R_OK); err != nil {
		result.Error = ErrPathUnavailable.Error() + ": no read access"
		return result
	}
	if err := syscall.Access(path, unix.W_OK); err != nil {
		result.Error = ErrPathUnavailable.Error() + ": no write access"
		return result
	}

	result.Passed = true
	result.Message = "Storage is available and accessible"
	return result
}

// checkIOPerformance writes a test payload to stable storage, reads it
// back, and fails when the round trip exceeds the configured ceiling.
// The test file is removed even when the ceiling fires mid-write: the
// worker goroutine's deferred cleanup runs once the stalled call returns.
func (c *Checker) checkIOPerformance(path string) models.CheckResult {
	result := models.CheckResult{Type: models.CheckIOPerformance}
	// Per-run suffix so concurrent checks on the same path never delete
	// each other's test file.
	testFile := filepath.Join(path, fmt.Sprintf("%s.%d", ioTestFile, time.Now().UnixNano()))

	type timing struct {
		write time.Duration
		read  time.Duration
		err   error
	}
	done := make(chan timing, 1)
	start := time.Now()

	go func() {
		defer func() {
			if err := os.Remove(testFile); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Str("file", testFile).Msg("Failed to remove io test file")
			}
		}()
		payload := bytes.Repeat([]byte{'x'}, c.cfg.IOPayloadSize)

		writeStart := time.Now()
		if err := writeAndSync(testFile, payload); err != nil {
			done <- timing{err: err}
			return
		}
		writeTime := time.Since(writeStart)

		readStart := time.Now()
		data, err := os.ReadFile(testFile)
		if err != nil {
			done <- timing{err: err}
			return
		}
		if len(data) != len(payload) {
			done <- timing{err: io.ErrUnexpectedEOF}
			return
		}
		done <- timing{write: writeTime, read: time.Since(readStart)}
	}()

	select {
	case t := <-done:
		result.ResponseTime = time.Since(start)
		if t.err != nil {
			result.Error = t.err.Error()
			return result
		}
		result.WriteTime = t.write
		result.ReadTime = t.read
		if secs := result.ResponseTime.Seconds(); secs > 0 {
			result.ThroughputMBps = float64(c.cfg.IOPayloadSize) / (1 << 20) / secs
		}
		result.Passed = result.ResponseTime < c.cfg.IOCeiling
		if result.Passed {
			result.Message = fmt.Sprintf("I/O test completed in %dms", result.ResponseTime.Milliseconds())
		} else {
			result.Error = ErrIOTimeout.Error()
		}
		return result
	case <-time.After(c.cfg.IOCeiling):
		result.ResponseTime = time.Since(start)
		result.Error = ErrIOTimeout.Error()
		return result
	}
}

func writeAndSync(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return err
	}
	// Force the payload to stable storage so timing reflects the device
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// checkSpaceUtilization fails when usage reaches the warning threshold.
func (c *Checker) checkSpaceUtilization(path string) models.CheckResult {
	result := models.CheckResult{Type: models.CheckSpaceUtilization}
	start := time.Now()
	defer func() { result.ResponseTime = time.Since(start) }()

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Error = err.Error()
		return result
	}

	blockSize := uint64(stat.Bsize) // #nosec G115 - syscall values are system dependent
	total := stat.Blocks * blockSize
	free := stat.Bavail * blockSize
	used := total - free
	if total > 0 {
		result.UsagePercent = float64(used) / float64(total) * 100
	}

	result.Passed = result.UsagePercent < c.cfg.WarningThreshold*100
	result.Message = fmt.Sprintf("Disk usage: %.1f%% (%s / %s)",
		result.UsagePercent, humanize.IBytes(used), humanize.IBytes(total))
	if !result.Passed {
		result.Error = fmt.Sprintf("usage %.1f%% is above the %.0f%% threshold",
			result.UsagePercent, c.cfg.WarningThreshold*100)
	}
	return result
}

// checkFilesystemIntegrity round-trips a file through a hidden test
// directory: create, write, read, verify content, delete. Any deviation
// fails the check. Cleanup is best-effort on every exit path.
func (c *Checker) checkFilesystemIntegrity(path string) models.CheckResult {
	result := models.CheckResult{Type: models.CheckFilesystemIntegrity}
	start := time.Now()
	defer func() { result.ResponseTime = time.Since(start) }()

	testDir := filepath.Join(path, integrityTestDir)
	testFile := filepath.Join(testDir, "integrity.txt")
	content := []byte("integrity test")

	defer func() {
		_ = os.Remove(testFile)
		_ = os.Remove(testDir)
	}()

	if err := os.MkdirAll(testDir, 0o750); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := os.WriteFile(testFile, content, 0o600); err != nil {
		result.Error = err.Error()
		return result
	}
	read, err := os.ReadFile(testFile)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !bytes.Equal(read, content) {
		result.Error = ErrIntegrityMismatch.Error()
		return result
	}
	if err := os.Remove(testFile); err != nil {
		result.Error = err.Error()
		return result
	}
	if err := os.Remove(testDir); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Passed = true
	result.Message = "File system integrity check passed"
	return result
}

// checkMusicFiles walks the storage tree and opens the first 1 KiB of
// every recognized audio file. More than 5% unreadable files fails.
func (c *Checker) checkMusicFiles(path string) models.CheckResult {
	result := models.CheckResult{Type: models.CheckMusicFiles}
	start := time.Now()
	defer func() { result.ResponseTime = time.Since(start) }()

	var total, inaccessible int
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree; count nothing and keep walking siblings
			return nil
		}
		if d.IsDir() || !musicExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		total++
		if !readable(p) {
			inaccessible++
		}
		return nil
	})
	if walkErr != nil {
		result.Error = walkErr.Error()
		return result
	}

	result.TotalFiles = total
	result.InaccessibleFiles = inaccessible
	denominator := total
	if denominator == 0 {
		denominator = 1
	}
	result.Passed = float64(inaccessible)/float64(denominator) < 0.05
	result.Message = fmt.Sprintf("Music files check: %d/%d accessible", total-inaccessible, total)
	if !result.Passed {
		result.Error = fmt.Sprintf("%d of %d music files are unreadable", inaccessible, total)
	}
	return result
}

// readable reports whether the first 1 KiB of a file can be read.
func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	_, err = f.Read(buf)
	return err == nil || err == io.EOF
}

// recommendations derives operator hints from the failing metrics.
func recommendations(report *models.HealthReport) []string {
	var recs []string

	if space := report.Check(models.CheckSpaceUtilization); space != nil {
		if space.UsagePercent > 80 {
			recs = append(recs, "Consider cleaning up old or unused music files")
		}
		if space.UsagePercent > 90 {
			recs = append(recs, "Urgent: free up disk space immediately")
		}
	}

	if perf := report.Check(models.CheckIOPerformance); perf != nil && perf.ResponseTime > 2*time.Second {
		recs = append(recs, "Storage I/O is slow, run a hardware diagnostic on the device")
	}

	if music := report.Check(models.CheckMusicFiles); music != nil && music.InaccessibleFiles > 0 {
		recs = append(recs, "Some music files are inaccessible, run a file system check")
	}

	switch report.OverallStatus {
	case models.TierError:
		recs = append(recs, "Critical issues detected, immediate attention required")
	case models.TierWarning:
		recs = append(recs, "Monitor storage closely and address warnings promptly")
	}

	return recs
}
