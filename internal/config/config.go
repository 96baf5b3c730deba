// Package config handles configuration loading for moatscore.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MOATSCORE_API_PORT.
const EnvPrefix = "MOATSCORE"

// Config represents the complete application configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"  yaml:"analysis"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// ProvidersConfig selects and configures the upstream data providers.
type ProvidersConfig struct {
	Source   string         `mapstructure:"source"   yaml:"source"` // "sec", "fmp" or "screener"
	SEC      SECConfig      `mapstructure:"sec"      yaml:"sec"`
	FMP      FMPConfig      `mapstructure:"fmp"      yaml:"fmp"`
	Screener ScreenerConfig `mapstructure:"screener" yaml:"screener"`
	Yahoo    YahooConfig    `mapstructure:"yahoo"    yaml:"yahoo"`
}

// SECConfig holds SEC EDGAR settings. EDGAR rejects requests without a
// descriptive User-Agent naming a contact.
type SECConfig struct {
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	DataURL   string `mapstructure:"data_url"   yaml:"data_url"`
	WWWURL    string `mapstructure:"www_url"    yaml:"www_url"`
}

// FMPConfig holds Financial Modeling Prep settings.
type FMPConfig struct {
	APIKey  string `mapstructure:"api_key"  yaml:"api_key"  json:"-"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// ScreenerConfig holds Screener.in settings.
type ScreenerConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// YahooConfig holds Yahoo Finance quote settings.
type YahooConfig struct {
	Enabled bool   `mapstructure:"enabled"  yaml:"enabled"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Suffix  string `mapstructure:"suffix"   yaml:"suffix"` // e.g. ".NS"; defaults to ".NS" for the screener source
}

// AnalysisConfig holds analysis engine settings.
type AnalysisConfig struct {
	Depth         int     `mapstructure:"depth"           yaml:"depth"`           // fiscal years per company
	Workers       int     `mapstructure:"workers"         yaml:"workers"`         // batch goroutines, 0 = GOMAXPROCS
	MinReturnRate float64 `mapstructure:"min_return_rate" yaml:"min_return_rate"` // percent
	Years         int     `mapstructure:"years"           yaml:"years"`           // valuation horizon
	StaleAfter    int     `mapstructure:"stale_after"     yaml:"stale_after"`     // hours before a stored analysis is refreshed
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"       yaml:"driver"` // "badger" or "postgres"
	BadgerPath  string `mapstructure:"badger_path"  yaml:"badger_path"`
	PostgresURL string `mapstructure:"postgres_url" yaml:"postgres_url" json:"-"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.moatscore/config.yaml (home directory)
//  3. /etc/moatscore/config.yaml (system)
//
// Environment variables override config file values.
// Format: MOATSCORE_<SECTION>_<KEY>, e.g., MOATSCORE_PROVIDERS_FMP_API_KEY
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".moatscore"))
	v.AddConfigPath("/etc/moatscore")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("providers.source", "sec")
	v.SetDefault("providers.sec.user_agent", "moatscore/1.0 (github.com/seenimoa/moatscore)")
	v.SetDefault("providers.sec.data_url", "https://data.sec.gov")
	v.SetDefault("providers.sec.www_url", "https://www.sec.gov")
	v.SetDefault("providers.fmp.api_key", "")
	v.SetDefault("providers.fmp.base_url", "https://financialmodelingprep.com/api/v3")
	v.SetDefault("providers.screener.base_url", "https://www.screener.in")
	v.SetDefault("providers.yahoo.enabled", true)
	v.SetDefault("providers.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.yahoo.suffix", "")

	// Analysis defaults
	v.SetDefault("analysis.depth", 10)
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.min_return_rate", 15.0)
	v.SetDefault("analysis.years", 10)
	v.SetDefault("analysis.stale_after", 24)

	// Storage defaults
	v.SetDefault("storage.driver", "badger")
	v.SetDefault("storage.badger_path", filepath.Join(homeDir(), ".moatscore", "data"))
	v.SetDefault("storage.postgres_url", "")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvPrefix + "_PROVIDERS_FMP_API_KEY"); key != "" {
		cfg.Providers.FMP.APIKey = key
	}
	if url := os.Getenv(EnvPrefix + "_STORAGE_POSTGRES_URL"); url != "" {
		cfg.Storage.PostgresURL = url
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Providers.Source {
	case "sec", "screener":
	case "fmp":
		check(c.Providers.FMP.APIKey != "", "providers.fmp.api_key is required when providers.source is fmp")
	default:
		check(false, "providers.source: unknown source %q", c.Providers.Source)
	}
	check(c.Providers.SEC.UserAgent != "", "providers.sec.user_agent must not be empty")

	check(c.Analysis.Depth > 0, "analysis.depth must be positive, got %d", c.Analysis.Depth)
	check(c.Analysis.Workers >= 0, "analysis.workers must not be negative, got %d", c.Analysis.Workers)
	check(c.Analysis.MinReturnRate > 0 && c.Analysis.MinReturnRate <= 100,
		"analysis.min_return_rate must be in (0, 100], got %v", c.Analysis.MinReturnRate)
	check(c.Analysis.Years > 0, "analysis.years must be positive, got %d", c.Analysis.Years)
	check(c.Analysis.StaleAfter >= 0, "analysis.stale_after must not be negative, got %d", c.Analysis.StaleAfter)

	switch c.Storage.Driver {
	case "badger":
		check(c.Storage.BadgerPath != "", "storage.badger_path must not be empty")
	case "postgres":
		check(c.Storage.PostgresURL != "", "storage.postgres_url is required for the postgres driver")
	default:
		check(false, "storage.driver: unknown driver %q", c.Storage.Driver)
	}

	check(c.API.Port > 0 && c.API.Port < 65536, "api.port out of range: %d", c.API.Port)

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		check(false, "logging.level: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		check(false, "logging.format: unknown format %q", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
