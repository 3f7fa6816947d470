// Package config loads gateway configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Links     LinksConfig
	RateLimit RateLimitConfig
	Clicks    ClicksConfig
	GeoIP     GeoIPConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `envconfig:"SERVER_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds the link store connection configuration.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" default:"postgres://localhost/linkgate?sslmode=disable"`
}

// RedisConfig holds the shared key-value store configuration.
type RedisConfig struct {
	Addr        string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	DialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
}

// LinksConfig holds resolver and redirect engine configuration.
type LinksConfig struct {
	CacheTTL    time.Duration `envconfig:"LINK_CACHE_TTL" default:"300s"`
	NegativeTTL time.Duration `envconfig:"LINK_NEGATIVE_TTL" default:"60s"`
	NotFoundURL string        `envconfig:"LINK_NOT_FOUND_URL" default:"/not-found"`
	ExpiredURL  string        `envconfig:"LINK_EXPIRED_URL" default:"/expired"`
	OGProxyURL  string        `envconfig:"LINK_OG_PROXY_URL" default:"/og"`
}

// RateLimitConfig holds the redirect-path throttle configuration.
type RateLimitConfig struct {
	Limit  int           `envconfig:"RATE_LIMIT" default:"100"`
	Window time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
}

// ClicksConfig holds the click analytics pipeline configuration.
type ClicksConfig struct {
	Brokers       []string      `envconfig:"KAFKA_BROKERS"`
	Topic         string        `envconfig:"KAFKA_CLICKS_TOPIC" default:"link-clicks"`
	DedupTTL      time.Duration `envconfig:"CLICK_DEDUP_TTL" default:"1h"`
	RecordTimeout time.Duration `envconfig:"CLICK_RECORD_TIMEOUT" default:"5s"`
	IPHashSalt    string        `envconfig:"CLICK_IP_HASH_SALT"`
}

// GeoIPConfig holds the geolocation database configuration.
type GeoIPConfig struct {
	DatabaseURL    string        `envconfig:"GEOIP_DB_URL"`
	MinSizeBytes   int64         `envconfig:"GEOIP_MIN_SIZE_BYTES" default:"1048576"`
	FetchTimeout   time.Duration `envconfig:"GEOIP_FETCH_TIMEOUT" default:"30s"`
	RetryCooldown  time.Duration `envconfig:"GEOIP_RETRY_COOLDOWN" default:"60s"`
	CacheTTL       time.Duration `envconfig:"GEOIP_CACHE_TTL" default:"168h"`
	StaleThreshold time.Duration `envconfig:"GEOIP_STALE_THRESHOLD" default:"24h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	if c.Links.CacheTTL <= 0 || c.Links.NegativeTTL <= 0 {
		return fmt.Errorf("link cache TTLs must be positive")
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.Clicks.DedupTTL <= 0 {
		return fmt.Errorf("click dedup TTL must be positive")
	}
	if c.GeoIP.StaleThreshold > c.GeoIP.CacheTTL {
		return fmt.Errorf("geoip stale threshold (%s) cannot exceed cache TTL (%s)",
			c.GeoIP.StaleThreshold, c.GeoIP.CacheTTL)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	return nil
}

// Load reads configuration from environment variables only.
// (Do .env loading in cmd/gateway/main.go for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
