package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/model"
	"github.com/fintrack-dev/fintrack/internal/staging"
)

// FileName is the config file created by `fintrack init`.
const FileName = "fintrack.yaml"

// Storage drivers.
const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
)

// Config represents the top-level fintrack.yaml configuration.
type Config struct {
	Server  ServerConfig             `yaml:"server"`
	Staging StagingConfig            `yaml:"staging"`
	Storage StorageConfig            `yaml:"storage"`
	Log     LogConfig                `yaml:"log"`
	Presets map[string]model.Mapping `yaml:"presets,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StagingConfig controls how previewed uploads are held.
type StagingConfig struct {
	TTL        time.Duration `yaml:"ttl"` // 0 keeps uploads until committed
	SampleSize int           `yaml:"sample_size"`
}

// StorageConfig selects the transaction store.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir,omitempty"` // csv; relative to the config file
	DSN    string `yaml:"dsn,omitempty"` // postgres
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Load reads a fintrack.yaml file from disk. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxUploadBytes:  10 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Staging: StagingConfig{
			TTL:        staging.DefaultTTL,
			SampleSize: importer.DefaultSampleSize,
		},
		Storage: StorageConfig{
			Driver: DriverCSV,
			Dir:    "ledger",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ApplyEnv overrides settings from the environment. DATABASE_URL sets the
// Postgres DSN and selects the postgres driver.
func (c *Config) ApplyEnv() {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		c.Storage.Driver = DriverPostgres
		c.Storage.DSN = dsn
	}
	if lvl := strings.TrimSpace(os.Getenv("FINTRACK_LOG_LEVEL")); lvl != "" {
		c.Log.Level = lvl
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Staging.TTL < 0 {
		errs = append(errs, errors.New("staging.ttl must not be negative"))
	}
	if c.Staging.SampleSize <= 0 {
		errs = append(errs, errors.New("staging.sample_size must be positive"))
	}
	switch c.Storage.Driver {
	case DriverCSV:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			errs = append(errs, errors.New("storage.dir is required for the csv driver"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	for name, m := range c.Presets {
		if m.IsZero() {
			errs = append(errs, fmt.Errorf("preset %q maps no columns", name))
		}
		if m.DateFormat != "" {
			if _, err := importer.LayoutFromPattern(m.DateFormat); err != nil {
				errs = append(errs, fmt.Errorf("preset %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
