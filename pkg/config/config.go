package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	Database DatabaseConfig
	Redis    RedisConfig

	// Providers
	Yahoo     YahooConfig
	Reddit    RedditConfig
	GNews     GNewsConfig
	Generator GeneratorConfig

	Cache     CacheConfig
	Refresher RefresherConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// YahooConfig points at the Yahoo Finance chart and quote API.
type YahooConfig struct {
	BaseURL  string
	Interval string
	Lookback string
}

// RedditConfig holds the script-app credentials used for search.
// Without a client ID the public JSON endpoint is used.
type RedditConfig struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	UserAgent    string
}

// GNewsConfig holds the GNews search API configuration
type GNewsConfig struct {
	BaseURL string
	APIKey  string
}

// GeneratorConfig selects and configures the forecast text generator
type GeneratorConfig struct {
	Provider string // openai, local
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// CacheConfig controls forecast freshness and refresh behaviour
type CacheConfig struct {
	TTL               time.Duration
	MajorSymbolPolicy string // regenerate, serve_cached
	RefreshTimeout    time.Duration
	QuoteTTL          time.Duration
}

// RefresherConfig controls the background refresh job
type RefresherConfig struct {
	Enabled     bool
	Schedule    string
	Interval    time.Duration
	SymbolsFile string
}

// Generator providers
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// Major symbol policies
const (
	PolicyRegenerate  = "regenerate"
	PolicyServeCached = "serve_cached"
)

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "5000"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Yahoo: YahooConfig{
			BaseURL:  getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			Interval: getEnv("YAHOO_INTERVAL", "1wk"),
			Lookback: getEnv("YAHOO_LOOKBACK", "4mo"),
		},

		Reddit: RedditConfig{
			BaseURL:      getEnv("REDDIT_BASE_URL", "https://oauth.reddit.com"),
			AuthURL:      getEnv("REDDIT_AUTH_URL", "https://www.reddit.com/api/v1/access_token"),
			ClientID:     getEnv("REDDIT_CLIENT_ID", ""),
			ClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
			UserAgent:    getEnv("REDDIT_USER_AGENT", "investanalytics/1.0"),
		},

		GNews: GNewsConfig{
			BaseURL: getEnv("GNEWS_BASE_URL", "https://gnews.io/api/v4"),
			APIKey:  getEnv("GNEWS_API_KEY", ""),
		},

		Generator: GeneratorConfig{
			Provider: getEnv("GENERATOR_PROVIDER", ProviderOpenAI),
			APIKey:   getEnv("OPENAI_API_KEY", ""),
			Model:    getEnv("OPENAI_MODEL", "gpt-5-nano"),
			BaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout:  getEnvAsDuration("GENERATOR_TIMEOUT", "2m"),
		},

		Cache: CacheConfig{
			TTL:               getEnvAsDuration("CACHE_TTL", "9h"),
			MajorSymbolPolicy: getEnv("MAJOR_SYMBOL_POLICY", PolicyRegenerate),
			RefreshTimeout:    getEnvAsDuration("REFRESH_TIMEOUT", "3m"),
			QuoteTTL:          getEnvAsDuration("QUOTE_TTL", "1m"),
		},

		Refresher: RefresherConfig{
			Enabled:     getEnvAsBool("REFRESHER_ENABLED", true),
			Schedule:    getEnv("REFRESH_SCHEDULE", "0 0 */6 * * *"),
			Interval:    getEnvAsDuration("REFRESH_INTERVAL", "180s"),
			SymbolsFile: getEnv("SYMBOLS_FILE", ""),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Generator.Provider {
	case ProviderOpenAI:
		if c.Generator.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when GENERATOR_PROVIDER=%s", ProviderOpenAI)
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("GENERATOR_PROVIDER must be one of: %s, %s", ProviderOpenAI, ProviderLocal)
	}

	if c.Cache.MajorSymbolPolicy != PolicyRegenerate && c.Cache.MajorSymbolPolicy != PolicyServeCached {
		return fmt.Errorf("MAJOR_SYMBOL_POLICY must be one of: %s, %s", PolicyRegenerate, PolicyServeCached)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
