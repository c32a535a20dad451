// Package config loads runtime configuration from the environment with
// an optional YAML overlay. Every knob has a default so the service
// boots with zero configuration against a local sqlite file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	// Server
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Storage
	DatabaseURL string `yaml:"database_url"` // sqlite:path or postgres://...
	RedisURL    string `yaml:"redis_url"`    // optional shared KV tier

	// Retention and ingest cadence
	RetentionDays             int `yaml:"retention_days"`
	NewsIngestIntervalMinutes int `yaml:"news_ingest_interval_minutes"`

	// News engine
	ImpactHalfLifeHours float64 `yaml:"impact_half_life_hours"`
	RankProfile         string  `yaml:"news_rank_profile"` // default|risk_off|high_volatility
	RankProfileAuto     bool    `yaml:"news_rank_profile_auto"`
	MaxQueriesPerSpan   int     `yaml:"max_queries_per_span"`
	MinNews             int     `yaml:"news_min"`
	MinNewsLong         int     `yaml:"news_min_long"`
	NewsExtraMaxTickers int     `yaml:"news_extra_max_tickers"`
	NewsExtraMaxFeeds   int     `yaml:"news_extra_max_feeds"`
	DedupSimilarity     float64 `yaml:"dedup_similarity"`
	DomainSoftCap       int     `yaml:"domain_soft_cap"`
	PersonalBudgetMS    int     `yaml:"personal_budget_ms"`

	// Budgets and caching
	CacheTTLSeconds       int           `yaml:"cache_ttl_seconds"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	NewsBudget            time.Duration `yaml:"news_budget"`
	EventFeedBudget       time.Duration `yaml:"event_feed_budget"`
	DebateBudget          time.Duration `yaml:"debate_budget"`
	DebateProviderTimeout time.Duration `yaml:"debate_provider_timeout"`

	// Provider keys (opaque tokens)
	GdeltEnabled  bool
	FinnhubKey    string
	TwelveDataKey string
	OpenAIKey     string
	OpenRouterKey string
	GeminiKey     string
}

// Defaults returns the baseline configuration before env/yaml overlays.
func Defaults() Config {
	return Config{
		Host:                      "127.0.0.1",
		Port:                      8090,
		DatabaseURL:               "sqlite:intelrun.db",
		RetentionDays:             14,
		NewsIngestIntervalMinutes: 10,
		ImpactHalfLifeHours:       6,
		RankProfile:               "default",
		RankProfileAuto:           true,
		MaxQueriesPerSpan:         4,
		MinNews:                   12,
		MinNewsLong:               6,
		NewsExtraMaxTickers:       4,
		NewsExtraMaxFeeds:         3,
		DedupSimilarity:           0.85,
		DomainSoftCap:             5,
		PersonalBudgetMS:          800,
		CacheTTLSeconds:           120,
		RequestTimeout:            8 * time.Second,
		NewsBudget:                18 * time.Second,
		EventFeedBudget:           12 * time.Second,
		DebateBudget:              10 * time.Second,
		DebateProviderTimeout:     8 * time.Second,
		GdeltEnabled:              true,
	}
}

// Load resolves configuration: defaults, then optional YAML file, then
// environment variables. A missing .env file is not an error.
func Load(yamlPath string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	strVar(&c.DatabaseURL, "DATABASE_URL")
	strVar(&c.RedisURL, "REDIS_URL")
	intVar(&c.RetentionDays, "RETENTION_DAYS")
	intVar(&c.NewsIngestIntervalMinutes, "NEWS_INGEST_INTERVAL_MINUTES")
	floatVar(&c.ImpactHalfLifeHours, "IMPACT_HALF_LIFE_HOURS")
	strVar(&c.RankProfile, "NEWS_RANK_PROFILE")
	boolVar(&c.RankProfileAuto, "NEWS_RANK_PROFILE_AUTO")
	intVar(&c.CacheTTLSeconds, "CACHE_TTL_SECONDS")
	durVar(&c.RequestTimeout, "REQUEST_TIMEOUT")
	intVar(&c.MaxQueriesPerSpan, "MAX_QUERIES_PER_SPAN")
	intVar(&c.PersonalBudgetMS, "PERSONAL_BUDGET_MS")
	intVar(&c.MinNews, "NEWS_MIN")
	intVar(&c.MinNewsLong, "NEWS_MIN_LONG")
	intVar(&c.NewsExtraMaxTickers, "NEWS_EXTRA_MAX_TICKERS")
	intVar(&c.NewsExtraMaxFeeds, "NEWS_EXTRA_MAX_FEEDS")
	boolVar(&c.GdeltEnabled, "GDELT_ENABLED")
	strVar(&c.FinnhubKey, "FINNHUB_API_KEY")
	strVar(&c.TwelveDataKey, "TWELVEDATA_API_KEY")
	strVar(&c.OpenAIKey, "OPENAI_API_KEY")
	strVar(&c.OpenRouterKey, "OPENROUTER_API_KEY")
	strVar(&c.GeminiKey, "GEMINI_API_KEY")
	strVar(&c.Host, "HTTP_HOST")
	intVar(&c.Port, "HTTP_PORT")
}

func (c *Config) validate() error {
	switch c.RankProfile {
	case "default", "risk_off", "high_volatility":
	default:
		return fmt.Errorf("invalid NEWS_RANK_PROFILE %q", c.RankProfile)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("RETENTION_DAYS must be positive, got %d", c.RetentionDays)
	}
	if c.MaxQueriesPerSpan <= 0 {
		return fmt.Errorf("MAX_QUERIES_PER_SPAN must be positive, got %d", c.MaxQueriesPerSpan)
	}
	return nil
}

func strVar(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVar(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolVar(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func durVar(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(secs) * time.Second
		}
	}
}
