// Package config provides configuration types and defaults for tabfetch.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/tabfetch/internal/fetch"
	"github.com/zjrosen/tabfetch/internal/jobs"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/tracing"
)

// LocalConfigPath is checked before the user config and is where a default
// config is written when none exists.
const LocalConfigPath = ".tabfetch/config.yaml"

// Config holds all configuration options for tabfetch.
type Config struct {
	Debug   bool          `mapstructure:"debug"`
	LogFile string        `mapstructure:"log_file"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Cache   CacheConfig   `mapstructure:"cache"`
	UI      UIConfig      `mapstructure:"ui"`
	Theme   ThemeConfig   `mapstructure:"theme"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// FetchConfig controls the HTTP client and the artificial job delays.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	FaviconPath  string        `mapstructure:"favicon_path"`
	FaviconDelay time.Duration `mapstructure:"favicon_delay"`
	PageDelay    time.Duration `mapstructure:"page_delay"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// CacheConfig controls the favicon cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	FaviconTTL time.Duration `mapstructure:"favicon_ttl"`
}

// UIConfig holds user interface options. The yaml tags are used when the
// section is written back by SaveUI.
type UIConfig struct {
	MarkdownStyle string `mapstructure:"markdown_style" yaml:"markdown_style"` // glamour style: "dark" (default), "light", "notty"
	ShowLog       bool   `mapstructure:"show_log" yaml:"show_log"`
	LogLines      int    `mapstructure:"log_lines" yaml:"log_lines"`
}

// ThemeConfig overrides the accent colors. Empty values keep the defaults.
type ThemeConfig struct {
	Accent string `mapstructure:"accent"`
	Muted  string `mapstructure:"muted"`
}

// TracingConfig holds job tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // "none", "file" (default), "stdout", "otlp"
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// ClientOptions converts the fetch section to HTTP client options. The
// favicon cache is wired by the caller.
func (f FetchConfig) ClientOptions() fetch.Options {
	return fetch.Options{
		Timeout:      f.Timeout,
		UserAgent:    f.UserAgent,
		FaviconPath:  f.FaviconPath,
		MaxBodyBytes: f.MaxBodyBytes,
	}
}

// JobSettings returns the delays applied by the job runner.
func (f FetchConfig) JobSettings() jobs.Settings {
	return jobs.Settings{
		FaviconDelay: f.FaviconDelay,
		PageDelay:    f.PageDelay,
	}
}

// TracerConfig converts the tracing section for tracing.NewProvider.
func (t TracingConfig) TracerConfig() tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = t.Enabled
	if t.Exporter != "" {
		cfg.Exporter = t.Exporter
	}
	cfg.FilePath = t.FilePath
	if t.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = t.OTLPEndpoint
	}
	cfg.SampleRate = t.SampleRate
	return cfg
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/tabfetch/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabfetch", "traces", "traces.jsonl")
}

// UserConfigPath returns ~/.config/tabfetch/config.yaml, or "" if the home
// directory is unknown.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabfetch", "config.yaml")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		LogFile: "tabfetch.log",
		Fetch: FetchConfig{
			Timeout:      fetch.DefaultTimeout,
			UserAgent:    fetch.DefaultUserAgent,
			FaviconPath:  fetch.DefaultFaviconPath,
			FaviconDelay: jobs.DefaultSettings().FaviconDelay,
			PageDelay:    jobs.DefaultSettings().PageDelay,
			MaxBodyBytes: fetch.DefaultMaxBodyBytes,
		},
		Cache: CacheConfig{
			Enabled:    true,
			FaviconTTL: fetch.DefaultFaviconTTL,
		},
		UI: UIConfig{
			MarkdownStyle: "dark",
			ShowLog:       true,
			LogLines:      200,
		},
		Tracing: TracingConfig{
			Exporter:     tracing.ExporterFile,
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: tracing.DefaultOTLPEndpoint,
			SampleRate:   1.0,
		},
	}
}

// SetDefaults registers every key's default on v so unset keys unmarshal to
// Defaults().
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_file", d.LogFile)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.favicon_path", d.Fetch.FaviconPath)
	v.SetDefault("fetch.favicon_delay", d.Fetch.FaviconDelay)
	v.SetDefault("fetch.page_delay", d.Fetch.PageDelay)
	v.SetDefault("fetch.max_body_bytes", d.Fetch.MaxBodyBytes)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.favicon_ttl", d.Cache.FaviconTTL)

	v.SetDefault("ui.markdown_style", d.UI.MarkdownStyle)
	v.SetDefault("ui.show_log", d.UI.ShowLog)
	v.SetDefault("ui.log_lines", d.UI.LogLines)

	v.SetDefault("theme.accent", d.Theme.Accent)
	v.SetDefault("theme.muted", d.Theme.Muted)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// Load reads the config file at path into a fresh viper instance, applying
// defaults for missing keys, and validates the result. Used for hot reload.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	log.Debug(log.CatConfig, "Loaded config", "path", path)
	return cfg, nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	return errors.Join(
		ValidateFetch(c.Fetch),
		ValidateCache(c.Cache),
		ValidateUI(c.UI),
		ValidateTracing(c.Tracing),
	)
}

// ValidateFetch checks fetch configuration for errors.
func ValidateFetch(f FetchConfig) error {
	if f.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %s", f.Timeout)
	}
	if f.FaviconDelay < 0 {
		return fmt.Errorf("fetch.favicon_delay must not be negative, got %s", f.FaviconDelay)
	}
	if f.PageDelay < 0 {
		return fmt.Errorf("fetch.page_delay must not be negative, got %s", f.PageDelay)
	}
	if f.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive, got %d", f.MaxBodyBytes)
	}
	return nil
}

// ValidateCache checks cache configuration for errors.
func ValidateCache(c CacheConfig) error {
	if c.FaviconTTL < 0 {
		return fmt.Errorf("cache.favicon_ttl must not be negative, got %s", c.FaviconTTL)
	}
	return nil
}

// ValidateUI checks UI configuration for errors.
func ValidateUI(ui UIConfig) error {
	if ui.LogLines < 0 {
		return fmt.Errorf("ui.log_lines must not be negative, got %d", ui.LogLines)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t TracingConfig) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if !tracing.ValidExporter(t.Exporter) {
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}

	// Only validate path requirements when tracing is enabled
	if t.Enabled {
		if t.Exporter == tracing.ExporterFile && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == tracing.ExporterOTLP && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# tabfetch configuration

# Write a debug log (also enabled by --debug or TABFETCH_DEBUG=1)
debug: false
log_file: tabfetch.log

# Page and favicon fetching
fetch:
  timeout: 5s             # Per-request timeout
  favicon_path: /favicon.ico
  favicon_delay: 2s       # Wait before fetching the favicon (0 disables)
  page_delay: 4s          # Wait before fetching the page (0 disables)
  max_body_bytes: 10485760
  # user_agent: "Mozilla/5.0 ..."

# Favicon cache, keyed by favicon URL
cache:
  enabled: true
  favicon_ttl: 10m

# UI settings
ui:
  markdown_style: dark    # glamour style for .md pages: "dark", "light" or "notty"
  show_log: true          # Show the status log under the tabs (toggle with ctrl+x)
  log_lines: 200          # Status lines kept in the log

# Theme overrides
# theme:
#   accent: "#54A0FF"
#   muted: "#696969"

# Job tracing (OpenTelemetry)
# Exporters: none, file, stdout, otlp
#
# Example: Write traces to a local file
# tracing:
#   enabled: true
#   exporter: file
#   file_path: ~/.config/tabfetch/traces/traces.jsonl
#
# Example: Send traces to Jaeger via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: localhost:4317
#   sample_rate: 0.1
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
