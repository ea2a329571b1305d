// Package config provides configuration file support for gitlock.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PinkPanter/gitlock/pkg/errclass"
	"github.com/PinkPanter/gitlock/pkg/fsutil"
)

const (
	// DirName is the per-repository directory holding config and state.
	DirName  = ".gitlock"
	FileName = "config.yaml"

	DefaultRenewInterval = 60 * time.Second
	DefaultTickInterval  = time.Second

	PolicyFailFast = "fail_fast"
	PolicyPartial  = "partial"
)

// Config represents the gitlock configuration.
type Config struct {
	GitBinary          string          `yaml:"git_binary"`
	RenewInterval      string          `yaml:"renew_interval"`
	TickInterval       string          `yaml:"tick_interval"`
	MultiRootPolicy    string          `yaml:"multi_root_policy"`
	AutoDetectUsername *bool           `yaml:"auto_detect_username,omitempty"`
	StateDB            string          `yaml:"state_db,omitempty"`
	AuditLog           *bool           `yaml:"audit_log,omitempty"`
	Logging            LoggingConfig   `yaml:"logging"`
	Telemetry          TelemetryConfig `yaml:"telemetry"`
	Metrics            MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// TelemetryConfig configures crash and error reporting.
type TelemetryConfig struct {
	SentryDSN string `yaml:"sentry_dsn,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint served by `gitlock watch`.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		GitBinary:       "git",
		RenewInterval:   DefaultRenewInterval.String(),
		TickInterval:    DefaultTickInterval.String(),
		MultiRootPolicy: PolicyFailFast,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the config file location for a repository root.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, DirName, FileName)
}

// Load loads configuration from .gitlock/config.yaml.
// Returns default config if file doesn't exist. GITLOCK_LOG_LEVEL overrides
// logging.level.
func Load(repoRoot string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(repoRoot))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if lvl := os.Getenv("GITLOCK_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to .gitlock/config.yaml.
func Save(repoRoot string, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := fsutil.WriteAtomic(Path(repoRoot), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// RenewEvery returns the renew interval, falling back to the default.
func (c *Config) RenewEvery() time.Duration {
	return parseDurationOr(c.RenewInterval, DefaultRenewInterval)
}

// TickEvery returns the scheduler tick interval, falling back to the default.
func (c *Config) TickEvery() time.Duration {
	return parseDurationOr(c.TickInterval, DefaultTickInterval)
}

// DetectUsername reports whether the username should be probed on startup.
func (c *Config) DetectUsername() bool {
	return c.AutoDetectUsername == nil || *c.AutoDetectUsername
}

// AuditEnabled reports whether lock operations are journaled.
func (c *Config) AuditEnabled() bool {
	return c.AuditLog == nil || *c.AuditLog
}

// StateDBPath returns the preference database path for a repository root.
func (c *Config) StateDBPath(repoRoot string) string {
	if c.StateDB != "" {
		if filepath.IsAbs(c.StateDB) {
			return c.StateDB
		}
		return filepath.Join(repoRoot, c.StateDB)
	}
	return filepath.Join(repoRoot, DirName, "state.db")
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

var setters = map[string]func(c *Config, v string) error{
	"git_binary": func(c *Config, v string) error { c.GitBinary = v; return nil },
	"renew_interval": func(c *Config, v string) error {
		c.RenewInterval = v
		return nil
	},
	"tick_interval": func(c *Config, v string) error {
		c.TickInterval = v
		return nil
	},
	"multi_root_policy": func(c *Config, v string) error { c.MultiRootPolicy = v; return nil },
	"auto_detect_username": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errclass.ErrConfigInvalid.WithMessagef("auto_detect_username must be true or false: %s", v)
		}
		c.AutoDetectUsername = &b
		return nil
	},
	"state_db":             func(c *Config, v string) error { c.StateDB = v; return nil },
	"audit_log": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errclass.ErrConfigInvalid.WithMessagef("audit_log must be true or false: %s", v)
		}
		c.AuditLog = &b
		return nil
	},
	"logging.level":        func(c *Config, v string) error { c.Logging.Level = v; return nil },
	"logging.format":       func(c *Config, v string) error { c.Logging.Format = v; return nil },
	"telemetry.sentry_dsn": func(c *Config, v string) error { c.Telemetry.SentryDSN = v; return nil },
	"metrics.addr":         func(c *Config, v string) error { c.Metrics.Addr = v; return nil },
}

// Keys returns every settable key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns a value by key and validates the result.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return errclass.ErrConfigInvalid.WithMessagef("unknown key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	prev := *c
	if err := set(c, value); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		*c = prev
		return err
	}
	return nil
}

// Get returns the value of a key as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "git_binary":
		return c.GitBinary, nil
	case "renew_interval":
		return c.RenewInterval, nil
	case "tick_interval":
		return c.TickInterval, nil
	case "multi_root_policy":
		return c.MultiRootPolicy, nil
	case "auto_detect_username":
		return strconv.FormatBool(c.DetectUsername()), nil
	case "state_db":
		return c.StateDB, nil
	case "audit_log":
		return strconv.FormatBool(c.AuditEnabled()), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "telemetry.sentry_dsn":
		return c.Telemetry.SentryDSN, nil
	case "metrics.addr":
		return c.Metrics.Addr, nil
	}
	return "", errclass.ErrConfigInvalid.WithMessagef("unknown key %q", key)
}

func (c *Config) validate() error {
	for name, v := range map[string]string{"renew_interval": c.RenewInterval, "tick_interval": c.TickInterval} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errclass.ErrConfigInvalid.WithMessagef("%s: %v", name, err)
		}
		if d <= 0 {
			return errclass.ErrConfigInvalid.WithMessagef("%s must be positive: %s", name, v)
		}
	}

	switch c.MultiRootPolicy {
	case "", PolicyFailFast, PolicyPartial:
	default:
		return errclass.ErrConfigInvalid.WithMessagef("multi_root_policy must be %s or %s: %s",
			PolicyFailFast, PolicyPartial, c.MultiRootPolicy)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errclass.ErrConfigInvalid.WithMessagef("logging.format must be text or json: %s", c.Logging.Format)
	}
	return nil
}
