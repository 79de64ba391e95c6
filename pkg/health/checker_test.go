package health

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tunevault/pkg/catalog"
	"tunevault/pkg/models"
)

type CheckerTestSuite struct {
	suite.Suite
	store        *catalog.Store
	checker      *Checker
	primaryPath  string
	fallbackPath string
}

func (s *CheckerTestSuite) SetupTest() {
	base := s.T().TempDir()
	s.primaryPath = filepath.Join(base, "primary")
	s.fallbackPath = filepath.Join(base, "fallback")
	s.Require().NoError(os.MkdirAll(s.primaryPath, 0o750))
	s.Require().NoError(os.MkdirAll(s.fallbackPath, 0o750))

	for _, name := range []string{"one.mp3", "two.flac", "three.ogg"} {
		s.Require().NoError(os.WriteFile(filepath.Join(s.primaryPath, name), []byte("audio data"), 0o600))
	}

	var err error
	s.store, err = catalog.NewStore(filepath.Join(base, "tunevault.db"))
	s.Require().NoError(err)
	s.Require().NoError(s.store.SeedEndpoints(s.primaryPath, s.fallbackPath))

	s.checker = New(s.store, s.primaryPath, s.fallbackPath, nil, Config{
		IOPayloadSize:    4 << 10, // keep test I/O small
		IOCeiling:        5 * time.Second,
		WarningThreshold: 0.99,
	})
}

func (s *CheckerTestSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *CheckerTestSuite) TestHealthyStorage() {
	report, err := s.checker.RunFullCheck(models.StoragePrimary)
	s.Require().NoError(err)

	s.Len(report.Checks, 5)
	s.Equal(models.TierHealthy, report.OverallStatus)
	s.Empty(report.Alerts)

	avail := report.Check(models.CheckAvailability)
	s.Require().NotNil(avail)
	s.True(avail.Passed)

	music := report.Check(models.CheckMusicFiles)
	s.Require().NotNil(music)
	s.True(music.Passed)
	s.Equal(3, music.TotalFiles)
	s.Zero(music.InaccessibleFiles)
}

func (s *CheckerTestSuite) TestUnavailablePathShortCircuits() {
	s.Require().NoError(os.RemoveAll(s.primaryPath))

	report, err := s.checker.RunFullCheck(models.StoragePrimary)
	s.Require().NoError(err)

	s.Len(report.Checks, 1)
	s.Equal(models.TierError, report.OverallStatus)
	s.Require().Len(report.Alerts, 1)
	s.Equal(models.SeverityCritical, report.Alerts[0].Severity)
	s.Equal(models.CheckAvailability, report.Alerts[0].Type)

	alerts, err := s.store.Alerts(false)
	s.Require().NoError(err)
	s.Len(alerts, 1)
}

func (s *CheckerTestSuite) TestUnknownStorageType() {
	_, err := s.checker.RunFullCheck(models.StorageType("cloud"))
	s.Require().ErrorIs(err, ErrUnknownStorage)
}

func (s *CheckerTestSuite) TestUnreadableMusicFiles() {
	// Dangling symlinks look like audio files but cannot be opened.
	for _, name := range []string{"gone1.mp3", "gone2.mp3"} {
		target := filepath.Join(s.primaryPath, name+".missing")
		s.Require().NoError(os.Symlink(target, filepath.Join(s.primaryPath, name)))
	}

	report, err := s.checker.RunFullCheck(models.StoragePrimary)
	s.Require().NoError(err)

	music := report.Check(models.CheckMusicFiles)
	s.Require().NotNil(music)
	s.False(music.Passed)
	s.Equal(5, music.TotalFiles)
	s.Equal(2, music.InaccessibleFiles)
	s.Equal(models.TierWarning, report.OverallStatus)
}

func (s *CheckerTestSuite) TestIOPerformanceMetrics() {
	report, err := s.checker.RunFullCheck(models.StorageFallback)
	s.Require().NoError(err)

	perf := report.Check(models.CheckIOPerformance)
	s.Require().NotNil(perf)
	s.True(perf.Passed)
	s.Greater(perf.ThroughputMBps, 0.0)
	s.Empty(s.ioTestLeftovers(s.fallbackPath))
}

// ioTestLeftovers lists performance test files still present under path.
func (s *CheckerTestSuite) ioTestLeftovers(path string) []string {
	leftovers, err := filepath.Glob(filepath.Join(path, ioTestFile+"*"))
	s.Require().NoError(err)
	return leftovers
}

func (s *CheckerTestSuite) TestIOCeilingTimeoutCleansUp() {
	s.checker.cfg.IOCeiling = time.Nanosecond

	result := s.checker.checkIOPerformance(s.primaryPath)

	s.False(result.Passed)
	s.Equal(ErrIOTimeout.Error(), result.Error)

	// The worker's deferred cleanup removes the test file once the
	// in-flight write returns.
	s.Require().Eventually(func() bool {
		leftovers, err := filepath.Glob(filepath.Join(s.primaryPath, ioTestFile+"*"))
		return err == nil && len(leftovers) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *CheckerTestSuite) TestConcurrentIOChecksDoNotCollide() {
	results := make([]models.CheckResult, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.checker.checkIOPerformance(s.primaryPath)
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		s.True(result.Passed, result.Error)
	}
	s.Empty(s.ioTestLeftovers(s.primaryPath))
}

func (s *CheckerTestSuite) TestIOFailureAlertNamesTheError() {
	// A regular file passes the availability check but cannot hold the
	// performance test file, so the I/O check fails with a real error
	// rather than slowness.
	filePath := filepath.Join(s.primaryPath, "notadir")
	s.Require().NoError(os.WriteFile(filePath, []byte("x"), 0o600))

	checker := New(s.store, filePath, s.fallbackPath, nil, s.checker.cfg)
	report, err := checker.RunFullCheck(models.StoragePrimary)
	s.Require().NoError(err)

	perf := report.Check(models.CheckIOPerformance)
	s.Require().NotNil(perf)
	s.False(perf.Passed)
	s.NotEqual(ErrIOTimeout.Error(), perf.Error)

	var alert *models.Alert
	for i := range report.Alerts {
		if report.Alerts[i].Type == models.CheckIOPerformance {
			alert = &report.Alerts[i]
		}
	}
	s.Require().NotNil(alert)
	s.Contains(alert.Message, perf.Error)
	s.NotContains(alert.Message, "round trip")
}

func (s *CheckerTestSuite) TestIntegrityArtifactsRemoved() {
	report, err := s.checker.RunFullCheck(models.StoragePrimary)
	s.Require().NoError(err)

	integrity := report.Check(models.CheckFilesystemIntegrity)
	s.Require().NotNil(integrity)
	s.True(integrity.Passed)
	s.NoDirExists(filepath.Join(s.primaryPath, integrityTestDir))
}

func (s *CheckerTestSuite) TestChecksPersisted() {
	_, err := s.checker.RunFullCheck(models.StoragePrimary)
	s.Require().NoError(err)

	history, err := s.checker.History(models.StoragePrimary, time.Hour)
	s.Require().NoError(err)
	s.Len(history, 5)
}

func (s *CheckerTestSuite) TestConsecutiveErrorEscalation() {
	switcher := &fakeSwitcher{current: models.StoragePrimary}
	s.checker.switcher = switcher
	s.checker.cfg.ConsecutiveErrorLimit = 2

	s.Require().NoError(os.RemoveAll(s.primaryPath))

	s.checker.runIteration()
	s.Equal(1, s.checker.ConsecutiveErrors(models.StoragePrimary))
	s.Zero(switcher.calls)

	s.checker.runIteration()
	s.Equal(2, s.checker.ConsecutiveErrors(models.StoragePrimary))
	s.Equal(1, switcher.calls)

	// Streak resets once the path comes back.
	s.Require().NoError(os.MkdirAll(s.primaryPath, 0o750))
	s.checker.runIteration()
	s.Zero(s.checker.ConsecutiveErrors(models.StoragePrimary))
}

func (s *CheckerTestSuite) TestEscalationSkippedOnFallback() {
	switcher := &fakeSwitcher{current: models.StorageFallback}
	s.checker.switcher = switcher
	s.checker.cfg.ConsecutiveErrorLimit = 1

	s.Require().NoError(os.RemoveAll(s.primaryPath))
	s.checker.runIteration()

	s.Zero(switcher.calls)
}

func (s *CheckerTestSuite) TestStartStop() {
	s.checker.cfg.Interval = 50 * time.Millisecond
	s.checker.Start()
	s.checker.Start() // second start is a no-op
	time.Sleep(120 * time.Millisecond)
	s.checker.Stop()
	s.checker.Stop()

	history, err := s.checker.History(models.StoragePrimary, time.Hour)
	s.Require().NoError(err)
	s.NotEmpty(history)
}

func (s *CheckerTestSuite) TestDowngradeNeverRaises() {
	report := &models.HealthReport{OverallStatus: models.TierError}
	downgrade(report, models.TierWarning)
	s.Equal(models.TierError, report.OverallStatus)

	report.OverallStatus = models.TierWarning
	downgrade(report, models.TierWarning)
	s.Equal(models.TierWarning, report.OverallStatus)

	report.OverallStatus = models.TierHealthy
	downgrade(report, models.TierWarning)
	s.Equal(models.TierWarning, report.OverallStatus)
}

type fakeSwitcher struct {
	current models.StorageType
	calls   int
}

func (f *fakeSwitcher) CurrentStorage() models.StorageType { return f.current }

func (f *fakeSwitcher) AutoSwitch() (*models.SwitchResult, error) {
	f.calls++
	f.current = models.StorageFallback
	return &models.SwitchResult{
		OldStorage: models.StoragePrimary,
		NewStorage: models.StorageFallback,
		SwitchedAt: time.Now(),
	}, nil
}

func TestCheckerTestSuite(t *testing.T) {
	suite.Run(t, new(CheckerTestSuite))
}
