package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds all tunevaultd settings. Values come from defaults, then
// an optional YAML file, then TUNEVAULT_* environment overrides.
type Config struct {
	// PrimaryPath is the SSD music directory.
	PrimaryPath string `yaml:"primary_path"`
	// FallbackPath is the SD card backup directory.
	FallbackPath string `yaml:"fallback_path"`
	// DatabasePath is the sqlite catalog location.
	DatabasePath string `yaml:"database_path"`
	// ListenAddr is the admin HTTP bind address.
	ListenAddr string `yaml:"listen_addr"`

	// CheckInterval is the storage monitor polling cadence.
	CheckInterval time.Duration `yaml:"check_interval"`
	// HealthCheckInterval is the diagnostic loop cadence.
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	// SwitchCooldown is the minimum gap between automatic switches.
	SwitchCooldown time.Duration `yaml:"switch_cooldown"`
	// IOCeiling is the maximum acceptable I/O test round trip.
	IOCeiling time.Duration `yaml:"io_ceiling"`

	// WarningThreshold is the disk usage ratio that degrades health.
	WarningThreshold float64 `yaml:"warning_threshold"`
	// IOPayloadSize is the I/O test payload in bytes.
	IOPayloadSize int `yaml:"io_payload_size"`
	// MaxBackupSongs bounds the fallback backup set.
	MaxBackupSongs int `yaml:"max_backup_songs"`
	// EventRetentionDays is how long events and health data are kept.
	EventRetentionDays int `yaml:"event_retention_days"`

	Debug bool `yaml:"debug"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Config {
	return &Config{
		PrimaryPath:         "/media/ssd/music",
		FallbackPath:        "/media/sd/music",
		DatabasePath:        "/var/lib/tunevault/tunevault.db",
		ListenAddr:          ":8080",
		CheckInterval:       30 * time.Second,
		HealthCheckInterval: time.Minute,
		SwitchCooldown:      5 * time.Minute,
		IOCeiling:           5 * time.Second,
		WarningThreshold:    0.90,
		IOPayloadSize:       1 << 20,
		MaxBackupSongs:      100,
		EventRetentionDays:  30,
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// when path is non-empty, then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile merges settings from a YAML file.
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv merges TUNEVAULT_* environment overrides. Unparseable
// values are ignored, keeping the previous setting.
func (c *Config) LoadFromEnv() {
	if val := os.Getenv("TUNEVAULT_PRIMARY_PATH"); val != "" {
		c.PrimaryPath = val
	}
	if val := os.Getenv("TUNEVAULT_FALLBACK_PATH"); val != "" {
		c.FallbackPath = val
	}
	if val := os.Getenv("TUNEVAULT_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("TUNEVAULT_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := os.Getenv("TUNEVAULT_CHECK_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.CheckInterval = d
		}
	}
	if val := os.Getenv("TUNEVAULT_HEALTH_CHECK_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.HealthCheckInterval = d
		}
	}
	if val := os.Getenv("TUNEVAULT_SWITCH_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.SwitchCooldown = d
		}
	}
	if val := os.Getenv("TUNEVAULT_IO_CEILING"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.IOCeiling = d
		}
	}
	if val := os.Getenv("TUNEVAULT_WARNING_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			c.WarningThreshold = f
		}
	}
	if val := os.Getenv("TUNEVAULT_IO_PAYLOAD_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.IOPayloadSize = n
		}
	}
	if val := os.Getenv("TUNEVAULT_MAX_BACKUP_SONGS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxBackupSongs = n
		}
	}
	if val := os.Getenv("TUNEVAULT_EVENT_RETENTION_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.EventRetentionDays = n
		}
	}
	if val := os.Getenv("TUNEVAULT_DEBUG"); val != "" {
		c.Debug = strings.ToLower(val) == "true"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.PrimaryPath == "" {
		return fmt.Errorf("primary_path must be set")
	}
	if c.FallbackPath == "" {
		return fmt.Errorf("fallback_path must be set")
	}
	if c.PrimaryPath == c.FallbackPath {
		return fmt.Errorf("primary_path and fallback_path must differ")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must be set")
	}
	if c.WarningThreshold <= 0 || c.WarningThreshold > 1 {
		return fmt.Errorf("warning_threshold must be in (0, 1], got %v", c.WarningThreshold)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %v", c.CheckInterval)
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("health_check_interval must be positive, got %v", c.HealthCheckInterval)
	}
	if c.SwitchCooldown < 0 {
		return fmt.Errorf("switch_cooldown must not be negative, got %v", c.SwitchCooldown)
	}
	if c.IOPayloadSize <= 0 {
		return fmt.Errorf("io_payload_size must be positive, got %d", c.IOPayloadSize)
	}
	if c.MaxBackupSongs <= 0 {
		return fmt.Errorf("max_backup_songs must be positive, got %d", c.MaxBackupSongs)
	}
	if c.EventRetentionDays <= 0 {
		return fmt.Errorf("event_retention_days must be positive, got %d", c.EventRetentionDays)
	}
	return nil
}

// EnsureDirectories creates the storage and database directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.PrimaryPath, c.FallbackPath, filepath.Dir(c.DatabasePath)}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
