// Package config loads and validates the layered configuration tree.
//
// Values are applied in order of increasing precedence: hardcoded
// defaults, the user file (~/.config/eventscout/config.yaml), the
// project file (.eventscout.yaml), then EVENTSCOUT_* environment
// variables. Secrets never live in files; they are read from the
// environment through LoadSecrets.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/quality"
)

// Config is the complete configuration tree.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Providers  ProvidersConfig  `yaml:"providers" json:"providers"`
	Resilience ResilienceConfig `yaml:"resilience" json:"resilience"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Quality    QualityConfig    `yaml:"quality" json:"quality"`
	Rank       RankConfig       `yaml:"rank" json:"rank"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
}

// SearchConfig tunes the orchestration pipeline.
type SearchConfig struct {
	// TotalBudgetMs bounds one whole search call.
	TotalBudgetMs int `yaml:"total_budget_ms" json:"total_budget_ms"`

	// TierTargetResults stops the tier ladder once this many unique URLs
	// have accumulated.
	TierTargetResults int `yaml:"tier_target_results" json:"tier_target_results"`

	// MinNonAggregatorURLs is the official-page floor below which the
	// aggregator backstop kicks in.
	MinNonAggregatorURLs int `yaml:"min_non_aggregator_urls" json:"min_non_aggregator_urls"`

	// MaxBackstopAggregators caps backstop re-admissions.
	MaxBackstopAggregators int `yaml:"max_backstop_aggregators" json:"max_backstop_aggregators"`

	// DefaultLimit applies when the request does not set a limit.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit clamps requested limits.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// TrustedDomains feeds the site-restricted tier. Absent means the
	// built-in curated list; an explicit empty list disables the tier.
	TrustedDomains []string `yaml:"trusted_domains" json:"trusted_domains,omitempty"`
}

// TotalBudget returns the budget as a duration.
func (s SearchConfig) TotalBudget() time.Duration {
	return time.Duration(s.TotalBudgetMs) * time.Millisecond
}

// ProvidersConfig holds one section per provider.
type ProvidersConfig struct {
	Firecrawl RemoteProviderConfig `yaml:"firecrawl" json:"firecrawl"`
	Serper    RemoteProviderConfig `yaml:"serper" json:"serper"`
	Local     LocalProviderConfig  `yaml:"local" json:"local"`
}

// RemoteProviderConfig configures an HTTP search provider. APIKeyEnv names
// the environment variable holding the key; the key itself never appears
// in a config file.
type RemoteProviderConfig struct {
	Endpoint   string `yaml:"endpoint" json:"endpoint"`
	APIKeyEnv  string `yaml:"api_key_env" json:"api_key_env"`
	TimeoutMs  int    `yaml:"timeout_ms" json:"timeout_ms"`
	MaxResults int    `yaml:"max_results" json:"max_results"`
}

// Timeout returns the per-attempt timeout as a duration.
func (p RemoteProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// LocalProviderConfig configures the curated-catalog provider.
type LocalProviderConfig struct {
	// CatalogPath points at an external catalog YAML. Empty uses the
	// embedded catalog. A configured path is watched for hot reload.
	CatalogPath string `yaml:"catalog_path" json:"catalog_path"`
	TimeoutMs   int    `yaml:"timeout_ms" json:"timeout_ms"`
	MaxResults  int    `yaml:"max_results" json:"max_results"`
}

// Timeout returns the per-attempt timeout as a duration.
func (p LocalProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// ResilienceConfig carries the default dependency policy plus optional
// per-dependency overrides keyed by provider name.
type ResilienceConfig struct {
	Defaults      DependencyPolicy            `yaml:"defaults" json:"defaults"`
	PerDependency map[string]DependencyPolicy `yaml:"per_dependency" json:"per_dependency,omitempty"`
	// HealthTickSec is the breaker health poll interval for long-running
	// processes. Zero disables the tick.
	HealthTickSec int `yaml:"health_tick_sec" json:"health_tick_sec"`
}

// HealthTick returns the breaker health poll interval.
func (r ResilienceConfig) HealthTick() time.Duration {
	return time.Duration(r.HealthTickSec) * time.Second
}

// DependencyPolicy bundles the retry, breaker, and rate-limit settings
// applied to one external dependency.
type DependencyPolicy struct {
	Retry     RetrySettings     `yaml:"retry" json:"retry"`
	Circuit   CircuitSettings   `yaml:"circuit" json:"circuit"`
	RateLimit RateLimitSettings `yaml:"rate_limit" json:"rate_limit"`
}

// RetrySettings configures exponential backoff.
type RetrySettings struct {
	MaxRetries     int     `yaml:"max_retries" json:"max_retries"`
	InitialDelayMs int     `yaml:"initial_delay_ms" json:"initial_delay_ms"`
	MaxDelayMs     int     `yaml:"max_delay_ms" json:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier" json:"multiplier"`
	JitterMs       int     `yaml:"jitter_ms" json:"jitter_ms"`
}

// InitialDelay returns the first backoff delay.
func (r RetrySettings) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// MaxDelay returns the backoff ceiling.
func (r RetrySettings) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// Jitter returns the random delay bound.
func (r RetrySettings) Jitter() time.Duration {
	return time.Duration(r.JitterMs) * time.Millisecond
}

// CircuitSettings configures one circuit breaker.
type CircuitSettings struct {
	FailureThreshold   int     `yaml:"failure_threshold" json:"failure_threshold"`
	ErrorRateThreshold float64 `yaml:"error_rate_threshold" json:"error_rate_threshold"`
	VolumeThreshold    int     `yaml:"volume_threshold" json:"volume_threshold"`
	SlowCallMs         int     `yaml:"slow_call_ms" json:"slow_call_ms"`
	SlowCallRatio      float64 `yaml:"slow_call_ratio" json:"slow_call_ratio"`
	RecoveryTimeoutMs  int     `yaml:"recovery_timeout_ms" json:"recovery_timeout_ms"`
	SuccessThreshold   int     `yaml:"success_threshold" json:"success_threshold"`
	HalfOpenMaxCalls   int     `yaml:"half_open_max_calls" json:"half_open_max_calls"`
}

// SlowCall returns the slow-call latency threshold.
func (c CircuitSettings) SlowCall() time.Duration {
	return time.Duration(c.SlowCallMs) * time.Millisecond
}

// RecoveryTimeout returns the OPEN dwell time.
func (c CircuitSettings) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutMs) * time.Millisecond
}

// RateLimitSettings configures one dependency rate limiter.
type RateLimitSettings struct {
	RequestsPerWindow int `yaml:"requests_per_window" json:"requests_per_window"`
	WindowSec         int `yaml:"window_sec" json:"window_sec"`
	Burst             int `yaml:"burst" json:"burst"`
}

// Window returns the sliding window as a duration.
func (r RateLimitSettings) Window() time.Duration {
	return time.Duration(r.WindowSec) * time.Second
}

// ForDependency returns the effective policy for a named dependency: the
// defaults with any per-dependency override applied field by field. Only
// non-zero override fields win, so an override may set a single knob.
func (r ResilienceConfig) ForDependency(name string) DependencyPolicy {
	p := r.Defaults
	o, ok := r.PerDependency[name]
	if !ok {
		return p
	}

	if o.Retry.MaxRetries != 0 {
		p.Retry.MaxRetries = o.Retry.MaxRetries
	}
	if o.Retry.InitialDelayMs != 0 {
		p.Retry.InitialDelayMs = o.Retry.InitialDelayMs
	}
	if o.Retry.MaxDelayMs != 0 {
		p.Retry.MaxDelayMs = o.Retry.MaxDelayMs
	}
	if o.Retry.Multiplier != 0 {
		p.Retry.Multiplier = o.Retry.Multiplier
	}
	if o.Retry.JitterMs != 0 {
		p.Retry.JitterMs = o.Retry.JitterMs
	}

	if o.Circuit.FailureThreshold != 0 {
		p.Circuit.FailureThreshold = o.Circuit.FailureThreshold
	}
	if o.Circuit.ErrorRateThreshold != 0 {
		p.Circuit.ErrorRateThreshold = o.Circuit.ErrorRateThreshold
	}
	if o.Circuit.VolumeThreshold != 0 {
		p.Circuit.VolumeThreshold = o.Circuit.VolumeThreshold
	}
	if o.Circuit.SlowCallMs != 0 {
		p.Circuit.SlowCallMs = o.Circuit.SlowCallMs
	}
	if o.Circuit.SlowCallRatio != 0 {
		p.Circuit.SlowCallRatio = o.Circuit.SlowCallRatio
	}
	if o.Circuit.RecoveryTimeoutMs != 0 {
		p.Circuit.RecoveryTimeoutMs = o.Circuit.RecoveryTimeoutMs
	}
	if o.Circuit.SuccessThreshold != 0 {
		p.Circuit.SuccessThreshold = o.Circuit.SuccessThreshold
	}
	if o.Circuit.HalfOpenMaxCalls != 0 {
		p.Circuit.HalfOpenMaxCalls = o.Circuit.HalfOpenMaxCalls
	}

	if o.RateLimit.RequestsPerWindow != 0 {
		p.RateLimit.RequestsPerWindow = o.RateLimit.RequestsPerWindow
	}
	if o.RateLimit.WindowSec != 0 {
		p.RateLimit.WindowSec = o.RateLimit.WindowSec
	}
	if o.RateLimit.Burst != 0 {
		p.RateLimit.Burst = o.RateLimit.Burst
	}

	return p
}

// CacheConfig configures the result cache tiers.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	MemorySize       int    `yaml:"memory_size" json:"memory_size"`
	MemoryTTLMin     int    `yaml:"memory_ttl_min" json:"memory_ttl_min"`
	SweepIntervalMin int    `yaml:"sweep_interval_min" json:"sweep_interval_min"`

	// SharedBackend selects the slow tier: "sqlite", "postgres", or
	// "none" for memory-only operation.
	SharedBackend string `yaml:"shared_backend" json:"shared_backend"`

	// SQLitePath is the shared-tier database file. Empty uses the
	// standard location under the user state directory.
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`

	// PostgresDSNEnv names the environment variable holding the DSN.
	PostgresDSNEnv string `yaml:"postgres_dsn_env" json:"postgres_dsn_env"`

	SharedTTLMin int `yaml:"shared_ttl_min" json:"shared_ttl_min"`
}

// MemoryTTL returns the fast-tier freshness window.
func (c CacheConfig) MemoryTTL() time.Duration {
	return time.Duration(c.MemoryTTLMin) * time.Minute
}

// SweepInterval returns the fast-tier expiry sweep interval.
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMin) * time.Minute
}

// SharedTTL returns the slow-tier freshness window.
func (c CacheConfig) SharedTTL() time.Duration {
	return time.Duration(c.SharedTTLMin) * time.Minute
}

// ResolveSQLitePath returns the shared-tier database file, defaulting to
// cache.db under the user state directory.
func (c CacheConfig) ResolveSQLitePath() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(StateDir(), "cache.db")
}

// QualityConfig configures candidate scoring.
type QualityConfig struct {
	Weights             quality.Weights `yaml:"weights" json:"weights"`
	MinQualityToExtract float64         `yaml:"min_quality_to_extract" json:"min_quality_to_extract"`
	MinSpeakers         int             `yaml:"min_speakers" json:"min_speakers"`
}

// RankConfig configures the AI ranking stage.
type RankConfig struct {
	// Enabled wires the AI ranker at all; disabled runs heuristic-only.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Bypass skips the AI call per request even when enabled.
	Bypass bool `yaml:"bypass" json:"bypass"`

	// Endpoint is an OpenAI-compatible base URL. Empty means the public
	// OpenAI API.
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Model     string `yaml:"model" json:"model"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms"`
	TopN      int    `yaml:"top_n" json:"top_n"`
}

// Timeout returns the ranking call timeout.
func (r RankConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// LoggingConfig configures the rotating structured log.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`

	// File is the log file path. Empty uses the standard location under
	// the user state directory.
	File          string `yaml:"file" json:"file"`
	MaxSizeMB     int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups    int    `yaml:"max_backups" json:"max_backups"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// TelemetryConfig configures the metrics funnel and error reporting.
type TelemetryConfig struct {
	// SentryDSNEnv names the environment variable holding the Sentry DSN.
	// An empty value in that variable disables error reporting.
	SentryDSNEnv string `yaml:"sentry_dsn_env" json:"sentry_dsn_env"`

	Environment string  `yaml:"environment" json:"environment"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate"`

	// MetricsPath is the funnel persistence database. Empty uses the
	// standard location under the user state directory.
	MetricsPath      string `yaml:"metrics_path" json:"metrics_path"`
	FlushIntervalMin int    `yaml:"flush_interval_min" json:"flush_interval_min"`
}

// FlushInterval returns how often funnel counters are persisted.
func (t TelemetryConfig) FlushInterval() time.Duration {
	return time.Duration(t.FlushIntervalMin) * time.Minute
}

// ResolveMetricsPath returns the funnel persistence database, defaulting
// to metrics.db under the user state directory.
func (t TelemetryConfig) ResolveMetricsPath() string {
	if t.MetricsPath != "" {
		return t.MetricsPath
	}
	return filepath.Join(StateDir(), "metrics.db")
}

// NewConfig returns the default configuration. The numbers mirror the
// construction defaults of the components they feed.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			TotalBudgetMs:          45000,
			TierTargetResults:      6,
			MinNonAggregatorURLs:   3,
			MaxBackstopAggregators: 2,
			DefaultLimit:           10,
			MaxLimit:               50,
			TrustedDomains:         nil, // built-in curated list
		},
		Providers: ProvidersConfig{
			Firecrawl: RemoteProviderConfig{
				Endpoint:   "https://api.firecrawl.dev",
				APIKeyEnv:  "FIRECRAWL_API_KEY",
				TimeoutMs:  20000,
				MaxResults: 10,
			},
			Serper: RemoteProviderConfig{
				Endpoint:   "https://google.serper.dev",
				APIKeyEnv:  "SERPER_API_KEY",
				TimeoutMs:  10000,
				MaxResults: 10,
			},
			Local: LocalProviderConfig{
				CatalogPath: "", // embedded catalog
				TimeoutMs:   2000,
				MaxResults:  10,
			},
		},
		Resilience: ResilienceConfig{
			Defaults: DependencyPolicy{
				Retry: RetrySettings{
					MaxRetries:     3,
					InitialDelayMs: 1000,
					MaxDelayMs:     16000,
					Multiplier:     2.0,
					JitterMs:       0,
				},
				Circuit: CircuitSettings{
					FailureThreshold:   5,
					ErrorRateThreshold: 0.5,
					VolumeThreshold:    10,
					SlowCallMs:         5000,
					SlowCallRatio:      0.8,
					RecoveryTimeoutMs:  30000,
					SuccessThreshold:   2,
					HalfOpenMaxCalls:   3,
				},
				RateLimit: RateLimitSettings{
					RequestsPerWindow: 60,
					WindowSec:         60,
					Burst:             10,
				},
			},
			// Web search (serper) runs on the defaults above. Scraping is
			// slower and flakier, so its breaker trips earlier and stays
			// open longer; the embedded catalog is in-process and barely
			// needs protecting at all.
			PerDependency: map[string]DependencyPolicy{
				"firecrawl": {
					Circuit: CircuitSettings{
						FailureThreshold:  3,
						SlowCallMs:        10000,
						RecoveryTimeoutMs: 60000,
					},
					RateLimit: RateLimitSettings{
						RequestsPerWindow: 30,
						Burst:             5,
					},
				},
				"local": {
					Retry: RetrySettings{
						MaxRetries:     1,
						InitialDelayMs: 50,
						MaxDelayMs:     200,
					},
					Circuit: CircuitSettings{
						FailureThreshold:  20,
						SlowCallMs:        1000,
						RecoveryTimeoutMs: 5000,
					},
					RateLimit: RateLimitSettings{
						RequestsPerWindow: 600,
						Burst:             100,
					},
				},
			},
			HealthTickSec: 30,
		},
		Cache: CacheConfig{
			Enabled:          true,
			MemorySize:       1000,
			MemoryTTLMin:     15,
			SweepIntervalMin: 5,
			SharedBackend:    "sqlite",
			SQLitePath:       "", // standard state-dir location
			PostgresDSNEnv:   "DATABASE_URL",
			SharedTTLMin:     60,
		},
		Quality: QualityConfig{
			Weights:             quality.DefaultWeights(),
			MinQualityToExtract: 0.5,
			MinSpeakers:         5,
		},
		Rank: RankConfig{
			Enabled:   true,
			Bypass:    false,
			Endpoint:  "", // public OpenAI API
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			TimeoutMs: 20000,
			TopN:      10,
		},
		Logging: LoggingConfig{
			Level:         "info",
			File:          "", // standard state-dir location
			MaxSizeMB:     10,
			MaxBackups:    5,
			WriteToStderr: true,
		},
		Telemetry: TelemetryConfig{
			SentryDSNEnv:     "SENTRY_DSN",
			Environment:      "production",
			SampleRate:       1.0,
			MetricsPath:      "", // standard state-dir location
			FlushIntervalMin: 5,
		},
	}
}

// StateDir returns the per-user state directory for logs, caches, and
// metrics.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".eventscout")
	}
	return filepath.Join(home, ".eventscout")
}

// GetUserConfigPath returns the user configuration file path, following
// the XDG base directory convention:
//   - $XDG_CONFIG_HOME/eventscout/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/eventscout/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "eventscout", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "eventscout", "config.yaml")
	}
	return filepath.Join(home, ".config", "eventscout", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the effective configuration for a project directory. Layers
// apply in order of increasing precedence:
//  1. Defaults (NewConfig)
//  2. User config (~/.config/eventscout/config.yaml)
//  3. Project config (.eventscout.yaml in dir)
//  4. EVENTSCOUT_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadProjectFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadProjectFile applies .eventscout.yaml, falling back to .eventscout.yml.
// Absence of both is fine.
func (c *Config) loadProjectFile(dir string) error {
	yamlPath := filepath.Join(dir, ".eventscout.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".eventscout.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML unmarshals the file onto the accumulated configuration. Keys
// absent from the document keep their current values; keys present
// override, including explicit false and zero.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eserrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return eserrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies EVENTSCOUT_* overrides for operational knobs.
// Secrets go through LoadSecrets instead.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("EVENTSCOUT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("EVENTSCOUT_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("EVENTSCOUT_CACHE_BACKEND"); v != "" {
		c.Cache.SharedBackend = v
	}
	if v := os.Getenv("EVENTSCOUT_RANK_ENABLED"); v != "" {
		c.Rank.Enabled = parseBool(v)
	}
	if v := os.Getenv("EVENTSCOUT_RANK_BYPASS"); v != "" {
		c.Rank.Bypass = parseBool(v)
	}
	if v := os.Getenv("EVENTSCOUT_ENVIRONMENT"); v != "" {
		c.Telemetry.Environment = v
	}
	if v := os.Getenv("EVENTSCOUT_TOTAL_BUDGET_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.TotalBudgetMs = n
		}
	}
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// FindProjectRoot walks up from startDir looking for a .git directory or
// an .eventscout.yaml/.yml file. Reaching the filesystem root without a
// marker returns startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", eserrors.ConfigError("failed to resolve project directory", err)
	}

	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		if fileExists(filepath.Join(current, ".eventscout.yaml")) ||
			fileExists(filepath.Join(current, ".eventscout.yml")) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

// Validate checks ranges on the final merged configuration.
func (c *Config) Validate() error {
	if c.Search.TotalBudgetMs <= 0 {
		return eserrors.ConfigError(
			fmt.Sprintf("search.total_budget_ms must be positive, got %d", c.Search.TotalBudgetMs), nil)
	}
	if c.Search.DefaultLimit < 1 {
		return eserrors.ConfigError(
			fmt.Sprintf("search.default_limit must be at least 1, got %d", c.Search.DefaultLimit), nil)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return eserrors.ConfigError(
			fmt.Sprintf("search.max_limit %d is below search.default_limit %d",
				c.Search.MaxLimit, c.Search.DefaultLimit), nil)
	}
	if c.Search.TierTargetResults < 1 {
		return eserrors.ConfigError(
			fmt.Sprintf("search.tier_target_results must be at least 1, got %d", c.Search.TierTargetResults), nil)
	}
	if c.Search.MinNonAggregatorURLs < 0 || c.Search.MaxBackstopAggregators < 0 {
		return eserrors.ConfigError("search backstop thresholds must be non-negative", nil)
	}

	w := c.Quality.Weights
	sum := w.DateInWindow + w.CountryMatch + w.VenueOrCity +
		w.SpeakerPage + w.SpeakerCount + w.OfficialDomain
	if math.Abs(sum-1.0) > 0.01 {
		return eserrors.ConfigError(
			fmt.Sprintf("quality.weights must sum to 1.0, got %.2f", sum), nil)
	}
	if c.Quality.MinQualityToExtract < 0 || c.Quality.MinQualityToExtract > 1 {
		return eserrors.ConfigError(
			fmt.Sprintf("quality.min_quality_to_extract must be between 0 and 1, got %f",
				c.Quality.MinQualityToExtract), nil)
	}
	if c.Quality.MinSpeakers < 0 {
		return eserrors.ConfigError(
			fmt.Sprintf("quality.min_speakers must be non-negative, got %d", c.Quality.MinSpeakers), nil)
	}

	validBackends := map[string]bool{"none": true, "sqlite": true, "postgres": true}
	if !validBackends[strings.ToLower(c.Cache.SharedBackend)] {
		return eserrors.ConfigError(
			fmt.Sprintf("cache.shared_backend must be 'none', 'sqlite', or 'postgres', got %s",
				c.Cache.SharedBackend), nil)
	}
	if c.Cache.Enabled {
		if c.Cache.MemorySize <= 0 {
			return eserrors.ConfigError(
				fmt.Sprintf("cache.memory_size must be positive, got %d", c.Cache.MemorySize), nil)
		}
		if c.Cache.MemoryTTLMin <= 0 {
			return eserrors.ConfigError(
				fmt.Sprintf("cache.memory_ttl_min must be positive, got %d", c.Cache.MemoryTTLMin), nil)
		}
	}

	if c.Rank.Enabled {
		if c.Rank.TopN < 1 {
			return eserrors.ConfigError(
				fmt.Sprintf("rank.top_n must be at least 1, got %d", c.Rank.TopN), nil)
		}
		if c.Rank.TimeoutMs <= 0 {
			return eserrors.ConfigError(
				fmt.Sprintf("rank.timeout_ms must be positive, got %d", c.Rank.TimeoutMs), nil)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return eserrors.ConfigError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s",
				c.Logging.Level), nil)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return eserrors.ConfigError(
			fmt.Sprintf("telemetry.sample_rate must be between 0 and 1, got %f",
				c.Telemetry.SampleRate), nil)
	}

	d := c.Resilience.Defaults
	if d.Circuit.ErrorRateThreshold < 0 || d.Circuit.ErrorRateThreshold > 1 {
		return eserrors.ConfigError(
			fmt.Sprintf("resilience.defaults.circuit.error_rate_threshold must be between 0 and 1, got %f",
				d.Circuit.ErrorRateThreshold), nil)
	}
	if d.Circuit.SlowCallRatio < 0 || d.Circuit.SlowCallRatio > 1 {
		return eserrors.ConfigError(
			fmt.Sprintf("resilience.defaults.circuit.slow_call_ratio must be between 0 and 1, got %f",
				d.Circuit.SlowCallRatio), nil)
	}
	if d.RateLimit.RequestsPerWindow <= 0 || d.RateLimit.WindowSec <= 0 {
		return eserrors.ConfigError("resilience.defaults.rate_limit window settings must be positive", nil)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return eserrors.ConfigError("failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eserrors.ConfigError(fmt.Sprintf("failed to write config file %s", path), err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
