// Package config provides unified configuration for all logvault services.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	verrors "github.com/logvault/logvault/internal/errors"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeArchiver Mode = "archiver"
	ModeAPI      Mode = "api"
)

// Config holds the unified configuration for all logvault services.
type Config struct {
	// Mode specifies which services to run: all, archiver, api
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// HotStore configuration
	HotStore HotStoreConfig `json:"hot_store" yaml:"hot_store"`

	// ColdStore configuration
	ColdStore ColdStoreConfig `json:"cold_store" yaml:"cold_store"`

	// Archive job configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Retention monitor configuration
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP address for the admin/compliance API
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// HotStoreConfig holds live store configuration.
type HotStoreConfig struct {
	// Path is the SQLite database path for the live log store
	Path string `json:"path" yaml:"path"`
}

// ColdStoreConfig holds cold storage configuration.
type ColdStoreConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// ArchiveTier is the storage tier blobs transition to after write. For
	// S3 this selects the storage class: archive (GLACIER_IR), glacier_ir,
	// glacier, deep_archive, standard_ia, or intelligent_tiering. The local
	// store only records a tier label and ignores this.
	ArchiveTier string `json:"archive_tier" yaml:"archive_tier"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// ArchiveConfig holds archival job configuration.
type ArchiveConfig struct {
	// RetentionYears is the retention horizon in calendar years (default 7)
	RetentionYears int `json:"retention_years" yaml:"retention_years"`

	// Compression selects the codec algorithm: snappy, zstd
	Compression string `json:"compression" yaml:"compression"`

	// StepTimeout bounds each I/O step of an archival run
	StepTimeout time.Duration `json:"step_timeout" yaml:"step_timeout"`

	// LockTTL is the advisory lock time-to-live per (type, date)
	LockTTL time.Duration `json:"lock_ttl" yaml:"lock_ttl"`

	// RunInterval is how often the daemon checks whether yesterday needs archiving
	RunInterval time.Duration `json:"run_interval" yaml:"run_interval"`
}

// RetentionConfig holds retention monitor configuration.
type RetentionConfig struct {
	// WindowDays is the approaching-expiry reporting window
	WindowDays int `json:"window_days" yaml:"window_days"`

	// ScanInterval is how often the daemon scans for approaching expiry
	ScanInterval time.Duration `json:"scan_interval" yaml:"scan_interval"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/logvault",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		HotStore: HotStoreConfig{
			Path: "",
		},
		ColdStore: ColdStoreConfig{
			Type:        "local",
			Path:        "",
			ArchiveTier: "archive",
		},
		Archive: ArchiveConfig{
			RetentionYears: 7,
			Compression:    "snappy",
			StepTimeout:    2 * time.Minute,
			LockTTL:        15 * time.Minute,
			RunInterval:    1 * time.Hour,
		},
		Retention: RetentionConfig{
			WindowDays:   30,
			ScanInterval: 24 * time.Hour,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/logvault"
	}

	if c.HotStore.Path == "" {
		c.HotStore.Path = filepath.Join(c.DataDir, "hotstore.db")
	}

	if c.ColdStore.Path == "" {
		c.ColdStore.Path = filepath.Join(c.DataDir, "coldstore")
	}
}

// Validate validates the configuration. Validation failures are fatal:
// the engine must not start with a broken storage or retention setup.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeArchiver, ModeAPI:
		// Valid modes
	default:
		return verrors.NewConfigError(verrors.CodeInvalidConfig,
			fmt.Sprintf("invalid mode: %s (must be all, archiver, or api)", c.Mode))
	}

	if c.DataDir == "" {
		return verrors.NewConfigError(verrors.CodeInvalidConfig, "data_dir is required")
	}

	if c.ColdStore.Type != "local" && c.ColdStore.Type != "s3" {
		return verrors.NewConfigError(verrors.CodeInvalidConfig,
			fmt.Sprintf("invalid cold store type: %s (must be local or s3)", c.ColdStore.Type))
	}

	if c.ColdStore.Type == "s3" && c.ColdStore.S3.Bucket == "" {
		return verrors.NewConfigError(verrors.CodeMissingBucket,
			"cold_store.s3.bucket is required when cold store type is s3")
	}

	if c.Archive.RetentionYears < 1 || c.Archive.RetentionYears > 25 {
		return verrors.NewConfigError(verrors.CodeInvalidConfig,
			fmt.Sprintf("archive.retention_years must be between 1 and 25, got %d", c.Archive.RetentionYears))
	}

	if c.Archive.Compression != "snappy" && c.Archive.Compression != "zstd" {
		return verrors.NewConfigError(verrors.CodeInvalidConfig,
			fmt.Sprintf("invalid compression: %s (must be snappy or zstd)", c.Archive.Compression))
	}

	if c.Retention.WindowDays < 1 {
		return verrors.NewConfigError(verrors.CodeInvalidConfig,
			fmt.Sprintf("retention.window_days must be positive, got %d", c.Retention.WindowDays))
	}

	return nil
}

// ShouldRunArchiver returns true if the archival daemon should run.
func (c *Config) ShouldRunArchiver() bool {
	return c.Mode == ModeAll || c.Mode == ModeArchiver
}

// ShouldRunAPI returns true if the admin API server should run.
func (c *Config) ShouldRunAPI() bool {
	return c.Mode == ModeAll || c.Mode == ModeAPI
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the LOGVAULT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LOGVAULT_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("LOGVAULT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("LOGVAULT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Hot store configuration
	if v := os.Getenv("LOGVAULT_HOTSTORE_PATH"); v != "" {
		cfg.HotStore.Path = v
	}

	// Cold store configuration
	if v := os.Getenv("LOGVAULT_COLDSTORE_TYPE"); v != "" {
		cfg.ColdStore.Type = v
	}
	if v := os.Getenv("LOGVAULT_COLDSTORE_PATH"); v != "" {
		cfg.ColdStore.Path = v
	}
	if v := os.Getenv("LOGVAULT_COLDSTORE_ARCHIVE_TIER"); v != "" {
		cfg.ColdStore.ArchiveTier = v
	}
	if v := os.Getenv("LOGVAULT_S3_BUCKET"); v != "" {
		cfg.ColdStore.S3.Bucket = v
	}
	if v := os.Getenv("LOGVAULT_S3_REGION"); v != "" {
		cfg.ColdStore.S3.Region = v
	}
	if v := os.Getenv("LOGVAULT_S3_ENDPOINT"); v != "" {
		cfg.ColdStore.S3.Endpoint = v
	}
	if v := os.Getenv("LOGVAULT_S3_USE_PATH_STYLE"); v != "" {
		cfg.ColdStore.S3.UsePathStyle = v == "true" || v == "1"
	}

	// Archive configuration
	if v := os.Getenv("LOGVAULT_ARCHIVE_RETENTION_YEARS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Archive.RetentionYears)
	}
	if v := os.Getenv("LOGVAULT_ARCHIVE_COMPRESSION"); v != "" {
		cfg.Archive.Compression = v
	}
	if v := os.Getenv("LOGVAULT_ARCHIVE_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Archive.StepTimeout = d
		}
	}
	if v := os.Getenv("LOGVAULT_ARCHIVE_RUN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Archive.RunInterval = d
		}
	}

	// Retention configuration
	if v := os.Getenv("LOGVAULT_RETENTION_WINDOW_DAYS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retention.WindowDays)
	}
	if v := os.Getenv("LOGVAULT_RETENTION_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.ScanInterval = d
		}
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.HotStore.Path),
	}
	if c.ColdStore.Type == "local" {
		dirs = append(dirs, c.ColdStore.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
