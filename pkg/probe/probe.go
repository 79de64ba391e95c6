package probe

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"tunevault/pkg/log"
	"tunevault/pkg/models"
)

const (
	// DefaultWarningThreshold is the usage ratio at which an endpoint is
	// downgraded to the warning tier.
	DefaultWarningThreshold = 0.90

	defaultMountTable = "/proc/mounts"
)

// Prober computes point-in-time endpoint snapshots for filesystem paths.
// It is stateless and safe for concurrent use.
type Prober struct {
	warningThreshold float64
	mountTable       string
}

// New creates a prober with the given usage warning threshold.
// A threshold outside (0, 1] falls back to the default.
func New(warningThreshold float64) *Prober {
	if warningThreshold <= 0 || warningThreshold > 1 {
		warningThreshold = DefaultWarningThreshold
	}
	return &Prober{
		warningThreshold: warningThreshold,
		mountTable:       defaultMountTable,
	}
}

// Probe inspects the given path and returns an endpoint snapshot.
// It never fails: any OS error is folded into an unavailable snapshot
// with the error tier and the error text attached.
func (p *Prober) Probe(path string) *models.EndpointInfo {
	info := &models.EndpointInfo{
		Path:       path,
		HealthTier: models.TierError,
	}

	if _, err := os.Stat(path); err != nil {
		info.Error = err.Error()
		return info
	}

	accessible := syscall.Access(path, unix.R_OK|unix.W_OK) == nil
	info.IsMounted = p.isMounted(path)
	info.IsAvailable = info.IsMounted && accessible

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("statfs failed during probe")
		info.IsAvailable = false
		info.Error = err.Error()
		return info
	}

	blockSize := uint64(stat.Bsize) // #nosec G115 - syscall values are system dependent
	info.CapacityBytes = stat.Blocks * blockSize
	info.FreeBytes = stat.Bavail * blockSize
	info.UsedBytes = info.CapacityBytes - info.FreeBytes
	if info.CapacityBytes > 0 {
		info.UsagePercent = float64(info.UsedBytes) / float64(info.CapacityBytes) * 100
	}

	switch {
	case !info.IsAvailable:
		info.HealthTier = models.TierError
	case info.UsagePercent >= p.warningThreshold*100:
		info.HealthTier = models.TierWarning
	default:
		info.HealthTier = models.TierHealthy
	}

	return info
}

// isMounted reports whether the path, or one of its ancestors, appears in
// the system mount table. Paths on filesystems the table does not list
// (bind mounts, tmpfs children) fall back to a readability heuristic.
func (p *Prober) isMounted(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	mounts, err := p.mountPoints()
	if err != nil {
		log.Debug().Err(err).Msg("mount table unreadable, using access heuristic")
	} else {
		for dir := filepath.Clean(abs); ; dir = filepath.Dir(dir) {
			if _, ok := mounts[dir]; ok {
				return true
			}
			if dir == string(filepath.Separator) {
				break
			}
		}
	}

	// Fallback heuristic: an existing, readable path is assumed mounted.
	if _, statErr := os.Stat(abs); statErr != nil {
		return false
	}
	return syscall.Access(abs, unix.R_OK) == nil
}

// mountPoints parses the mount table into a set of mount point paths.
func (p *Prober) mountPoints() (map[string]struct{}, error) {
	f, err := os.Open(p.mountTable)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close mount table")
		}
	}()

	points := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		// Field layout: device mountpoint fstype options ...
		points[unescapeMount(fields[1])] = struct{}{}
	}
	return points, scanner.Err()
}

// unescapeMount decodes the octal escapes /proc/mounts uses for spaces
// and other special characters in mount point paths.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
