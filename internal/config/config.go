// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/webscout/webscout/internal/scout"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Search       SearchConfig       `mapstructure:"search"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Headless     HeadlessConfig     `mapstructure:"headless"`
	Cache        CacheConfig        `mapstructure:"cache"`
	DB           DBConfig           `mapstructure:"db"`
	PubSub       PubSubConfig       `mapstructure:"pubsub"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Settings     scout.Settings     `mapstructure:"settings"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeoutSec  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSec int `mapstructure:"write_timeout_seconds"`
	ShutdownSec     int `mapstructure:"shutdown_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// OrchestratorConfig governs the worker pool and queue.
type OrchestratorConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// PipelineConfig bounds one query's pipeline run.
type PipelineConfig struct {
	FetchConcurrency  int `mapstructure:"fetch_concurrency"`
	SearchTimeoutSec  int `mapstructure:"search_timeout_seconds"`
	FetchTimeoutSec   int `mapstructure:"fetch_timeout_seconds"`
	RateLimitAttempts int `mapstructure:"rate_limit_attempts"`
}

// SearchConfig holds search-provider credentials.
type SearchConfig struct {
	GoogleAPIKey   string `mapstructure:"google_api_key"`
	GoogleEngineID string `mapstructure:"google_engine_id"`
	DuckDuckGo     bool   `mapstructure:"duckduckgo"`
}

// ExtractorConfig selects the content extraction path.
type ExtractorConfig struct {
	// Reader enables the remote Reader API; when disabled the colly HTML
	// extractor is primary.
	Reader           bool   `mapstructure:"reader"`
	ReaderAPIKey     string `mapstructure:"reader_api_key"`
	ReaderBaseURL    string `mapstructure:"reader_base_url"`
	ReaderTimeoutSec int    `mapstructure:"reader_timeout_seconds"`
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSec       int    `mapstructure:"timeout_seconds"`
	MinWordCount     int    `mapstructure:"min_word_count"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// CacheConfig bounds the document cache.
type CacheConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory
// log store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for completion notifications. An empty project
// id disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig selects the zap profile.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBSCOUT")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("server.shutdown_seconds", 15)
	v.SetDefault("orchestrator.workers", 4)
	v.SetDefault("orchestrator.queue_depth", 256)
	v.SetDefault("pipeline.fetch_concurrency", 4)
	v.SetDefault("pipeline.search_timeout_seconds", 30)
	v.SetDefault("pipeline.fetch_timeout_seconds", 60)
	v.SetDefault("pipeline.rate_limit_attempts", 3)
	v.SetDefault("search.duckduckgo", true)
	v.SetDefault("extractor.reader", false)
	v.SetDefault("extractor.reader_base_url", "https://r.jina.ai")
	v.SetDefault("extractor.reader_timeout_seconds", 30)
	v.SetDefault("extractor.user_agent", "webscout-bot/0.1")
	v.SetDefault("extractor.timeout_seconds", 30)
	v.SetDefault("extractor.min_word_count", 50)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("settings.max_results_per_query", 10)
	v.SetDefault("settings.search_results_limit", 20)
	v.SetDefault("settings.scrape_limit", 10)
	v.SetDefault("settings.min_score_threshold", 0.5)
	v.SetDefault("settings.search_rate_limit", 60)
	v.SetDefault("settings.fetch_rate_limit", 120)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Orchestrator.Workers <= 0 {
		return fmt.Errorf("orchestrator.workers must be > 0")
	}
	if c.Orchestrator.QueueDepth <= 0 {
		return fmt.Errorf("orchestrator.queue_depth must be > 0")
	}
	if c.Pipeline.FetchConcurrency <= 0 {
		return fmt.Errorf("pipeline.fetch_concurrency must be > 0")
	}
	if !c.Search.DuckDuckGo && c.Search.GoogleAPIKey == "" {
		return fmt.Errorf("at least one search provider must be configured")
	}
	if c.Extractor.Reader && c.Extractor.ReaderAPIKey == "" {
		return fmt.Errorf("extractor.reader_api_key must be set when the reader is enabled")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Settings.MinScoreThreshold < 0 || c.Settings.MinScoreThreshold > 1 {
		return fmt.Errorf("settings.min_score_threshold must be within [0, 1]")
	}
	return nil
}

// SearchTimeout converts the pipeline search budget into a duration.
func (c Config) SearchTimeout() time.Duration {
	return time.Duration(c.Pipeline.SearchTimeoutSec) * time.Second
}

// FetchTimeout converts the pipeline fetch budget into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Pipeline.FetchTimeoutSec) * time.Second
}

// CacheTTL converts the cache budget into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}
