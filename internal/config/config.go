package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Europe/Madrid"
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultCatalogSource   = "./data/programa.json"
	defaultCatalogCacheDir = "./var/catalog-cache"
	defaultStoreBackend    = "file"
	defaultStoreDir        = "./var/documents"
	defaultSessionTTL      = 24 * 60
	defaultJanitorCron     = "*/15 * * * *"
	defaultMinPassword     = 6

	// DatabaseURLEnv overrides Store.PostgresDSN so the DSN can stay out of
	// the config file.
	DatabaseURLEnv = "CONFPROG_DATABASE_URL"
)

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is one of "memory", "file" or "postgres".
	Backend string `yaml:"backend" json:"backend" validate:"oneof=memory file postgres"`
	// Dir is the directory of the file backend.
	Dir string `yaml:"dir" json:"dir" validate:"required_if=Backend file"`
	// PostgresDSN is the connection string of the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn,omitempty" json:"-" validate:"required_if=Backend postgres"`
}

// AuthConfig controls accounts and client sessions.
type AuthConfig struct {
	// SessionTTLMinutes is how long an idle client session token lives.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes" validate:"gte=0"`
	// JanitorCron is the cron schedule sweeping expired client sessions.
	JanitorCron string `yaml:"janitor_cron" json:"janitor_cron" validate:"required"`
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength int `yaml:"min_password_length" json:"min_password_length" validate:"gte=1"`
}

// CalendarConfig controls .ics export.
type CalendarConfig struct {
	ProductID string `yaml:"product_id" json:"product_id"`
	UIDDomain string `yaml:"uid_domain" json:"uid_domain" validate:"omitempty,hostname"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the API.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA zone the program's wall-clock times are in.
	Timezone string `yaml:"timezone" json:"timezone" validate:"required"`

	// LogLevel is one of debug, info, error. LogFormat is console or json.
	LogLevel  string `yaml:"log_level" json:"log_level" validate:"oneof=debug info error"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=console json"`

	// CatalogSource is a local path or an http(s) URL of the dataset.
	CatalogSource string `yaml:"catalog_source" json:"catalog_source" validate:"required"`
	// CatalogCacheDir holds the ETag cache for remote catalog sources.
	CatalogCacheDir string `yaml:"catalog_cache_dir" json:"catalog_cache_dir"`

	Store    StoreConfig    `yaml:"store" json:"store"`
	Auth     AuthConfig     `yaml:"auth" json:"auth"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          defaultListen,
		Timezone:        defaultTimezone,
		LogLevel:        defaultLogLevel,
		LogFormat:       defaultLogFormat,
		CatalogSource:   defaultCatalogSource,
		CatalogCacheDir: defaultCatalogCacheDir,
		Store: StoreConfig{
			Backend: defaultStoreBackend,
			Dir:     defaultStoreDir,
		},
		Auth: AuthConfig{
			SessionTTLMinutes: defaultSessionTTL,
			JanitorCron:       defaultJanitorCron,
			MinPasswordLength: defaultMinPassword,
		},
		Calendar: CalendarConfig{
			ProductID: "-//confprog//Programa//ES",
			UIDDomain: "confprog.local",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.CatalogSource == "" {
		c.CatalogSource = d.CatalogSource
	}
	if c.CatalogCacheDir == "" {
		c.CatalogCacheDir = d.CatalogCacheDir
	}
	if c.Store.Backend == "" {
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.Backend == "file" && c.Store.Dir == "" {
		c.Store.Dir = d.Store.Dir
	}
	if c.Auth.SessionTTLMinutes == 0 {
		c.Auth.SessionTTLMinutes = d.Auth.SessionTTLMinutes
	}
	if c.Auth.JanitorCron == "" {
		c.Auth.JanitorCron = d.Auth.JanitorCron
	}
	if c.Auth.MinPasswordLength <= 0 {
		c.Auth.MinPasswordLength = d.Auth.MinPasswordLength
	}
	if c.Calendar.ProductID == "" {
		c.Calendar.ProductID = d.Calendar.ProductID
	}
	if c.Calendar.UIDDomain == "" {
		c.Calendar.UIDDomain = d.Calendar.UIDDomain
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that Timezone names a known zone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SessionTTL is the idle lifetime of client session tokens.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
//
// DatabaseURLEnv, when set, overrides Store.PostgresDSN in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if dsn := os.Getenv(DatabaseURLEnv); dsn != "" {
		cfg.Store.PostgresDSN = dsn
	}
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".confprog-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
