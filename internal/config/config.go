// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Store() StoreConfig
	Automator() AutomatorConfig
	Browser() BrowserConfig
	Quotas() []QuotaConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserShowClicks(bool)

	// Store Setters
	SetStoreBackend(string)
	SetStorePath(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	StoreCfg     StoreConfig     `mapstructure:"store" yaml:"store"`
	AutomatorCfg AutomatorConfig `mapstructure:"automator" yaml:"automator"`
	BrowserCfg   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	QuotasCfg    []QuotaConfig   `mapstructure:"quotas" yaml:"quotas"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Store() StoreConfig         { return c.StoreCfg }
func (c *Config) Automator() AutomatorConfig { return c.AutomatorCfg }
func (c *Config) Browser() BrowserConfig     { return c.BrowserCfg }
func (c *Config) Quotas() []QuotaConfig      { return c.QuotasCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserShowClicks(b bool) { c.BrowserCfg.ShowClicks = b }
func (c *Config) SetStoreBackend(s string)    { c.StoreCfg.Backend = s }
func (c *Config) SetStorePath(p string)       { c.StoreCfg.Path = p }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StoreConfig selects and locates the durable key/value store.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is used by the file and sqlite backends. A leading ~ is expanded.
	Path string `mapstructure:"path" yaml:"path"`
	// URL is the postgres connection string.
	URL string `mapstructure:"url" yaml:"url"`
}

// AutomatorConfig holds the defaults for automator settings. The values
// stored under waitTime/randomTime/logLevel take precedence once present.
type AutomatorConfig struct {
	WaitTimeMs   int `mapstructure:"wait_time_ms" yaml:"wait_time_ms"`
	RandomTimeMs int `mapstructure:"random_time_ms" yaml:"random_time_ms"`
	LogLevel     int `mapstructure:"log_level" yaml:"log_level"`
	// ActionsPerMinute paces clicks with a token bucket. Zero disables pacing.
	ActionsPerMinute float64       `mapstructure:"actions_per_minute" yaml:"actions_per_minute"`
	Burst            int           `mapstructure:"burst" yaml:"burst"`
	Retention        time.Duration `mapstructure:"retention" yaml:"retention"`
	JanitorInterval  time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
}

// BrowserConfig holds settings for the controlled browser.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath     string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserDataDir  string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	ShowClicks   bool          `mapstructure:"show_clicks" yaml:"show_clicks"`
	MarkerColor  string        `mapstructure:"marker_color" yaml:"marker_color"`
}

// QuotaConfig caps how many times an action may be recorded in a window.
type QuotaConfig struct {
	Action string        `mapstructure:"action" yaml:"action"`
	Limit  int           `mapstructure:"limit" yaml:"limit"`
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cadence")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "magenta")
	v.SetDefault("logger.colors.info", "blue")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Store --
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "~/.cadence/store.json")

	// -- Automator --
	v.SetDefault("automator.wait_time_ms", 3000)
	v.SetDefault("automator.random_time_ms", 2000)
	v.SetDefault("automator.log_level", 1)
	v.SetDefault("automator.actions_per_minute", 6.0)
	v.SetDefault("automator.burst", 1)
	v.SetDefault("automator.retention", "720h")
	v.SetDefault("automator.janitor_interval", "1h")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.ready_timeout", "10s")
	v.SetDefault("browser.show_clicks", true)
	v.SetDefault("browser.marker_color", "#222")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Connection strings carry credentials and come from the environment.
	_ = v.BindEnv("store.url", "CADENCE_STORE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.StoreCfg.Backend == BackendPostgres && cfg.StoreCfg.URL == "" {
		cfg.StoreCfg.URL = os.Getenv("CADENCE_STORE_URL")
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves ~ in filesystem paths.
func (c *Config) ExpandPaths() error {
	paths := []*string{&c.StoreCfg.Path, &c.LoggerCfg.LogFile, &c.BrowserCfg.UserDataDir}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expanding %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.StoreCfg.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if err := c.AutomatorCfg.Validate(); err != nil {
		return fmt.Errorf("automator configuration invalid: %w", err)
	}
	if c.BrowserCfg.ReadyTimeout <= 0 {
		return fmt.Errorf("browser.ready_timeout must be a positive duration")
	}
	seen := make(map[string]bool, len(c.QuotasCfg))
	for i, q := range c.QuotasCfg {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("quotas[%d] invalid: %w", i, err)
		}
		if seen[q.Action] {
			return fmt.Errorf("quotas[%d]: duplicate quota for action %q", i, q.Action)
		}
		seen[q.Action] = true
	}
	return nil
}

// Validate checks the store configuration.
func (s *StoreConfig) Validate() error {
	switch strings.ToLower(s.Backend) {
	case BackendMemory:
		return nil
	case BackendFile, BackendSQLite:
		if s.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", s.Backend)
		}
		return nil
	case BackendPostgres:
		if s.URL == "" {
			return fmt.Errorf("store.url is required for the postgres backend. Ensure CADENCE_STORE_URL is set")
		}
		return nil
	default:
		return fmt.Errorf("unknown store.backend %q", s.Backend)
	}
}

// Validate checks the automator defaults.
func (a *AutomatorConfig) Validate() error {
	if a.WaitTimeMs < 0 || a.RandomTimeMs < 0 {
		return fmt.Errorf("wait_time_ms and random_time_ms must not be negative")
	}
	if a.ActionsPerMinute < 0 {
		return fmt.Errorf("actions_per_minute must not be negative")
	}
	if a.ActionsPerMinute > 0 && a.Burst <= 0 {
		return fmt.Errorf("burst must be a positive integer when pacing is enabled")
	}
	if a.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if a.Retention > 0 && a.JanitorInterval <= 0 {
		return fmt.Errorf("janitor_interval must be a positive duration when retention is set")
	}
	return nil
}

// Validate checks a single quota.
func (q *QuotaConfig) Validate() error {
	if q.Action == "" {
		return fmt.Errorf("action is required")
	}
	if q.Limit <= 0 {
		return fmt.Errorf("limit must be a positive integer")
	}
	if q.Window <= 0 {
		return fmt.Errorf("window must be a positive duration")
	}
	return nil
}
