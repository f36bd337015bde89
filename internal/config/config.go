// Package config loads and validates tracker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scrape     ScrapeConfig     `mapstructure:"scrape"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	Session    SessionConfig    `mapstructure:"session"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ScrapeConfig governs scheduling and incremental refresh.
type ScrapeConfig struct {
	ResultsFile           string   `mapstructure:"results_file"`
	RescrapeThresholdDays int      `mapstructure:"rescrape_threshold_days"`
	ScholarIDs            []string `mapstructure:"scholar_ids"`
	CheckpointEvery       int      `mapstructure:"checkpoint_every"`
	Interactive           bool     `mapstructure:"interactive"`
	ValidateSession       bool     `mapstructure:"validate_session"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	MaxRetries       int      `mapstructure:"max_retries"`
	BackoffInitialMs int      `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int      `mapstructure:"backoff_max_ms"`
	UserAgents       []string `mapstructure:"user_agents"`
}

// PolitenessConfig spaces requests to stay under abuse thresholds.
type PolitenessConfig struct {
	MinDelaySeconds   int     `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds   int     `mapstructure:"max_delay_seconds"`
	JitterProbability float64 `mapstructure:"jitter_probability"`
	JitterMinSeconds  int     `mapstructure:"jitter_min_seconds"`
	JitterMaxSeconds  int     `mapstructure:"jitter_max_seconds"`
}

// SessionConfig locates the anti-bot session cache and tunes manual solves.
type SessionConfig struct {
	CachePath           string `mapstructure:"cache_path"`
	SolveTimeoutSeconds int    `mapstructure:"solve_timeout_seconds"`
}

// MetricsConfig toggles the in-run metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ProgressConfig controls the on-disk progress audit trail.
type ProgressConfig struct {
	AuditFile string `mapstructure:"audit_file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPartial builds a Config without enforcing scrape-run requirements.
// Commands that only touch the session cache use it.
func LoadPartial(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHOLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scrape.results_file", "results.json")
	v.SetDefault("scrape.rescrape_threshold_days", 7)
	v.SetDefault("scrape.checkpoint_every", 25)
	v.SetDefault("scrape.interactive", true)
	v.SetDefault("scrape.validate_session", true)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 60000)
	v.SetDefault("http.user_agents", defaultUserAgents)
	v.SetDefault("politeness.min_delay_seconds", 3)
	v.SetDefault("politeness.max_delay_seconds", 8)
	v.SetDefault("politeness.jitter_probability", 0.2)
	v.SetDefault("politeness.jitter_min_seconds", 20)
	v.SetDefault("politeness.jitter_max_seconds", 40)
	v.SetDefault("session.cache_path", ".cache/last_solved_session.json")
	v.SetDefault("session.solve_timeout_seconds", 300)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("progress.audit_file", "")
	v.SetDefault("logging.development", true)
}

// defaultUserAgents are realistic browser agents rotated per request.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scrape.ResultsFile == "" {
		return fmt.Errorf("scrape.results_file must be set")
	}
	if len(c.Scrape.ScholarIDs) == 0 {
		return fmt.Errorf("scrape.scholar_ids must include at least one author id")
	}
	if c.Scrape.CheckpointEvery <= 0 {
		return fmt.Errorf("scrape.checkpoint_every must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if len(c.HTTP.UserAgents) == 0 {
		return fmt.Errorf("http.user_agents must include at least one agent")
	}
	if c.Politeness.MinDelaySeconds < 0 || c.Politeness.MaxDelaySeconds < c.Politeness.MinDelaySeconds {
		return fmt.Errorf("politeness delays must satisfy 0 <= min <= max")
	}
	if c.Politeness.JitterProbability < 0 || c.Politeness.JitterProbability > 1 {
		return fmt.Errorf("politeness.jitter_probability must be within [0,1]")
	}
	if c.Session.CachePath == "" {
		return fmt.Errorf("session.cache_path must be set")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial backoff into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax converts the backoff cap into a duration.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}
