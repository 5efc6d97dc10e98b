package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Inference InferenceConfig `mapstructure:"inference"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Events    EventsConfig    `mapstructure:"events"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxImageBytes  int64    `mapstructure:"max_image_bytes"`
}

// InferenceConfig holds the vision/LLM endpoint configuration
type InferenceConfig struct {
	Provider          string        `mapstructure:"provider"` // "openai" or "stub"
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	ExtractionModel   string        `mapstructure:"extraction_model"`
	SummaryModel      string        `mapstructure:"summary_model"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds Postgres configuration
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds request rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
	Burst int `mapstructure:"burst"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// EventsConfig holds RabbitMQ publisher configuration
type EventsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AMQPURL    string `mapstructure:"amqp_url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/toxiscan/")

	// Environment variable settings, e.g. TOXISCAN_AUTH_JWT_SECRET
	v.SetEnvPrefix("TOXISCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values; every key needs one so AutomaticEnv can bind it
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_image_bytes", 10<<20) // 10 MB

	// Inference defaults
	v.SetDefault("inference.provider", "openai")
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.base_url", "https://api.openai.com/v1")
	v.SetDefault("inference.extraction_model", "gpt-4o")
	v.SetDefault("inference.summary_model", "gpt-4o-mini")
	v.SetDefault("inference.requests_per_second", 2.0)
	v.SetDefault("inference.burst", 4)
	v.SetDefault("inference.timeout", "60s")

	// Database defaults
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "15m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 30)
	v.SetDefault("ratelimit.burst", 10)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "toxiscan")
	v.SetDefault("events.routing_key", "analysis.completed")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set TOXISCAN_AUTH_JWT_SECRET)")
	}

	if config.Database.URL == "" {
		return fmt.Errorf("database URL is required (set TOXISCAN_DATABASE_URL)")
	}

	switch config.Inference.Provider {
	case "openai":
		if config.Inference.APIKey == "" {
			return fmt.Errorf("inference API key is required for provider 'openai' (set TOXISCAN_INFERENCE_API_KEY)")
		}
	case "stub":
	default:
		return fmt.Errorf("inference provider must be 'openai' or 'stub', got: %s", config.Inference.Provider)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Events.Enabled && config.Events.AMQPURL == "" {
		return fmt.Errorf("AMQP URL is required when events are enabled")
	}

	if config.Server.MaxImageBytes <= 0 {
		return fmt.Errorf("server.max_image_bytes must be positive, got: %d", config.Server.MaxImageBytes)
	}

	return nil
}
