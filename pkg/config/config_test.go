package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (s *ConfigTestSuite) SetupTest() {
	for _, key := range []string{
		"TUNEVAULT_PRIMARY_PATH", "TUNEVAULT_FALLBACK_PATH", "TUNEVAULT_DATABASE_PATH",
		"TUNEVAULT_LISTEN_ADDR", "TUNEVAULT_CHECK_INTERVAL", "TUNEVAULT_HEALTH_CHECK_INTERVAL",
		"TUNEVAULT_SWITCH_COOLDOWN", "TUNEVAULT_IO_CEILING", "TUNEVAULT_WARNING_THRESHOLD",
		"TUNEVAULT_IO_PAYLOAD_SIZE", "TUNEVAULT_MAX_BACKUP_SONGS",
		"TUNEVAULT_EVENT_RETENTION_DAYS", "TUNEVAULT_DEBUG",
	} {
		s.Require().NoError(os.Unsetenv(key))
	}
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg := NewDefault()

	s.Equal("/media/ssd/music", cfg.PrimaryPath)
	s.Equal("/media/sd/music", cfg.FallbackPath)
	s.Equal(30*time.Second, cfg.CheckInterval)
	s.Equal(5*time.Minute, cfg.SwitchCooldown)
	s.InDelta(0.90, cfg.WarningThreshold, 0.0001)
	s.Equal(100, cfg.MaxBackupSongs)
	s.NoError(cfg.Validate())
}

func (s *ConfigTestSuite) TestLoadFromFile() {
	path := filepath.Join(s.T().TempDir(), "tunevault.yaml")
	content := `
primary_path: /mnt/ssd/tunes
fallback_path: /mnt/sd/tunes
check_interval: 10s
warning_threshold: 0.85
max_backup_songs: 50
`
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	cfg := NewDefault()
	s.Require().NoError(cfg.LoadFromFile(path))

	s.Equal("/mnt/ssd/tunes", cfg.PrimaryPath)
	s.Equal("/mnt/sd/tunes", cfg.FallbackPath)
	s.Equal(10*time.Second, cfg.CheckInterval)
	s.InDelta(0.85, cfg.WarningThreshold, 0.0001)
	s.Equal(50, cfg.MaxBackupSongs)
	// Unset keys keep their defaults.
	s.Equal(":8080", cfg.ListenAddr)
}

func (s *ConfigTestSuite) TestLoadFromFileMissing() {
	cfg := NewDefault()
	s.Error(cfg.LoadFromFile("/nonexistent/tunevault.yaml"))
}

func (s *ConfigTestSuite) TestEnvOverrides() {
	s.T().Setenv("TUNEVAULT_PRIMARY_PATH", "/srv/music")
	s.T().Setenv("TUNEVAULT_SWITCH_COOLDOWN", "90s")
	s.T().Setenv("TUNEVAULT_MAX_BACKUP_SONGS", "25")
	s.T().Setenv("TUNEVAULT_DEBUG", "true")
	s.T().Setenv("TUNEVAULT_WARNING_THRESHOLD", "not-a-number")

	cfg := NewDefault()
	cfg.LoadFromEnv()

	s.Equal("/srv/music", cfg.PrimaryPath)
	s.Equal(90*time.Second, cfg.SwitchCooldown)
	s.Equal(25, cfg.MaxBackupSongs)
	s.True(cfg.Debug)
	// Unparseable values keep the default.
	s.InDelta(0.90, cfg.WarningThreshold, 0.0001)
}

func (s *ConfigTestSuite) TestValidate() {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty primary path", func(c *Config) { c.PrimaryPath = "" }},
		{"same paths", func(c *Config) { c.FallbackPath = c.PrimaryPath }},
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"zero threshold", func(c *Config) { c.WarningThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.WarningThreshold = 1.5 }},
		{"zero check interval", func(c *Config) { c.CheckInterval = 0 }},
		{"negative cooldown", func(c *Config) { c.SwitchCooldown = -time.Second }},
		{"zero payload", func(c *Config) { c.IOPayloadSize = 0 }},
		{"zero backup songs", func(c *Config) { c.MaxBackupSongs = 0 }},
		{"zero retention", func(c *Config) { c.EventRetentionDays = 0 }},
	}

	for _, tc := range cases {
		cfg := NewDefault()
		tc.mutate(cfg)
		s.Error(cfg.Validate(), tc.name)
	}
}

func (s *ConfigTestSuite) TestLoad() {
	base := s.T().TempDir()
	s.T().Setenv("TUNEVAULT_FALLBACK_PATH", filepath.Join(base, "sd"))

	path := filepath.Join(base, "tunevault.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("primary_path: "+filepath.Join(base, "ssd")+"\n"), 0o600))

	cfg, err := Load(path)
	s.Require().NoError(err)
	s.Equal(filepath.Join(base, "ssd"), cfg.PrimaryPath)
	s.Equal(filepath.Join(base, "sd"), cfg.FallbackPath)
}

func (s *ConfigTestSuite) TestEnsureDirectories() {
	base := s.T().TempDir()
	cfg := NewDefault()
	cfg.PrimaryPath = filepath.Join(base, "ssd", "music")
	cfg.FallbackPath = filepath.Join(base, "sd", "music")
	cfg.DatabasePath = filepath.Join(base, "db", "tunevault.db")

	s.Require().NoError(cfg.EnsureDirectories())
	s.DirExists(cfg.PrimaryPath)
	s.DirExists(cfg.FallbackPath)
	s.DirExists(filepath.Join(base, "db"))
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}
