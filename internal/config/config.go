package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Google    GoogleConfig    `mapstructure:"google"`
	Unsplash  UnsplashConfig  `mapstructure:"unsplash"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	BindAddress     string `mapstructure:"bind_address"`
	Port            int    `mapstructure:"port"`
	MetricsPort     int    `mapstructure:"metrics_port"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "mongo"
	Path  string      `mapstructure:"path"`
	Mongo MongoConfig `mapstructure:"mongo"`
}

// MongoConfig defines MongoDB connection settings
type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	ConnectTimeout string `mapstructure:"connect_timeout"`
}

// SessionsConfig selects where dashboard sessions live
type SessionsConfig struct {
	Backend string      `mapstructure:"backend"` // "storage" or "redis"
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings. A zero Port means Host
// already carries "host:port".
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig defines the web dashboard settings
type DashboardConfig struct {
	JWTSecret       string   `mapstructure:"jwt_secret"`
	SessionTimeout  string   `mapstructure:"session_timeout"`
	RateLimit       int      `mapstructure:"rate_limit"`
	RateLimitWindow string   `mapstructure:"rate_limit_window"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	PanelCacheSize  int      `mapstructure:"panel_cache_size"`
	SecureCookies   bool     `mapstructure:"secure_cookies"`
}

// GoogleConfig defines Google Maps Platform settings
type GoogleConfig struct {
	MapsAPIKey string `mapstructure:"maps_api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    string `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// UnsplashConfig defines Unsplash API settings
type UnsplashConfig struct {
	AccessKey  string `mapstructure:"access_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    string `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// GeminiConfig defines the Gemini assistant settings
type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    string `mapstructure:"timeout"`
	MaxRetries int    `mapstructure:"max_retries"`
	CacheTTL   string `mapstructure:"cache_ttl"`
	CacheSize  int    `mapstructure:"cache_size"`
}

// RetentionConfig defines the daily cleanup job
type RetentionConfig struct {
	RunTime     string `mapstructure:"run_time"` // HH:MM
	MessageDays int    `mapstructure:"message_days"`
}

// legacyEnv maps the unprefixed variables of existing deployments to keys.
var legacyEnv = map[string]string{
	"gemini.api_key":         "GEMINI_API_KEY",
	"unsplash.access_key":    "UNSPLASH_API_KEY",
	"google.maps_api_key":    "GOOGLE_MAPS_API_KEY",
	"storage.mongo.database": "MONGODB_DB_NAME",
	"storage.mongo.uri":      "MONGODB_URI",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// A .env next to the working directory is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("ELDFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "ELDFLOW_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// optionalKeys are understood but carry no default.
var optionalKeys = []string{
	"sessions.redis.password",
	"dashboard.jwt_secret",
	"google.maps_api_key",
	"unsplash.access_key",
	"gemini.api_key",
}

// Defaults returns the configuration that applies when nothing is set.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// KnownKeys returns the set of every configuration key.
func KnownKeys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	for _, key := range optionalKeys {
		keys[key] = true
	}
	return keys
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.shutdown_timeout", "10s")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/eldflow/eldflow.bolt")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "eldflow")
	v.SetDefault("storage.mongo.connect_timeout", "10s")

	// Session defaults
	v.SetDefault("sessions.backend", "storage")
	v.SetDefault("sessions.redis.host", "localhost")
	v.SetDefault("sessions.redis.port", 6379)
	v.SetDefault("sessions.redis.db", 0)
	v.SetDefault("sessions.redis.pool_size", 10)
	v.SetDefault("sessions.redis.min_idle_conns", 2)
	v.SetDefault("sessions.redis.dial_timeout", "5s")
	v.SetDefault("sessions.redis.read_timeout", "3s")
	v.SetDefault("sessions.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Dashboard defaults
	v.SetDefault("dashboard.session_timeout", "24h")
	v.SetDefault("dashboard.rate_limit", 100)
	v.SetDefault("dashboard.rate_limit_window", "1m")
	v.SetDefault("dashboard.allowed_origins", []string{"*"})
	v.SetDefault("dashboard.panel_cache_size", 256)
	v.SetDefault("dashboard.secure_cookies", false)

	// External API defaults
	v.SetDefault("google.base_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("google.timeout", "10s")
	v.SetDefault("google.max_retries", 2)
	v.SetDefault("unsplash.base_url", "https://api.unsplash.com")
	v.SetDefault("unsplash.timeout", "10s")
	v.SetDefault("unsplash.max_retries", 2)
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.timeout", "30s")
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.cache_ttl", "2h")
	v.SetDefault("gemini.cache_size", 128)

	// Retention defaults
	v.SetDefault("retention.run_time", "03:00")
	v.SetDefault("retention.message_days", 90)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	for name, value := range map[string]string{
		"server.shutdown_timeout":     cfg.Server.ShutdownTimeout,
		"dashboard.session_timeout":   cfg.Dashboard.SessionTimeout,
		"dashboard.rate_limit_window": cfg.Dashboard.RateLimitWindow,
		"gemini.cache_ttl":            cfg.Gemini.CacheTTL,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	if _, err := time.Parse("15:04", cfg.Retention.RunTime); err != nil {
		return fmt.Errorf("invalid retention.run_time %q (expected HH:MM)", cfg.Retention.RunTime)
	}

	switch cfg.Storage.Type {
	case "", "bolt":
		cfg.Storage.Type = "bolt"
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "mongo":
		if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" {
			return fmt.Errorf("storage.mongo.uri and storage.mongo.database are required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	switch cfg.Sessions.Backend {
	case "", "storage":
		cfg.Sessions.Backend = "storage"
	case "redis":
		if cfg.Sessions.Redis.Host == "" {
			return fmt.Errorf("sessions.redis.host is required")
		}
	default:
		return fmt.Errorf("unknown session backend: %s", cfg.Sessions.Backend)
	}

	if cfg.Dashboard.PanelCacheSize <= 0 {
		return fmt.Errorf("dashboard.panel_cache_size must be positive")
	}

	return nil
}
