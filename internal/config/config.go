// Package config provides configuration management for the find-anything
// server. It supports loading configuration from environment variables,
// a YAML file, and defaults, with precedence env > file > defaults.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete find-anything server configuration.
type Config struct {
	Server        ServerConfig        `json:"server" yaml:"server"`
	DataDir       string              `json:"data_dir" yaml:"data_dir"`
	Archive       ArchiveConfig       `json:"archive" yaml:"archive"`
	Inbox         InboxConfig         `json:"inbox" yaml:"inbox"`
	Query         QueryConfig         `json:"query" yaml:"query"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	CORS          CORSConfig          `json:"cors" yaml:"cors"`
	RateLimit     RateLimitConfig     `json:"rate_limit" yaml:"rate_limit"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	BearerToken string `json:"bearer_token" yaml:"bearer_token"`
}

// ArchiveConfig holds chunk content store configuration.
type ArchiveConfig struct {
	SoftTargetBytes  int64 `json:"soft_target_bytes" yaml:"soft_target_bytes"`
	CompressionLevel int   `json:"compression_level" yaml:"compression_level"`
}

// InboxConfig holds async inbox worker configuration.
type InboxConfig struct {
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	WatchEnabled bool          `json:"watch_enabled" yaml:"watch_enabled"`
}

// QueryConfig holds query pipeline configuration.
type QueryConfig struct {
	OverscanLimit     int     `json:"overscan_limit" yaml:"overscan_limit"`
	FuzzyThreshold    float64 `json:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	MaxCompositeDepth int     `json:"max_composite_depth" yaml:"max_composite_depth"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Sentry  SentryConfig  `json:"sentry" yaml:"sentry"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Endpoint   string  `json:"endpoint" yaml:"endpoint"`
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
}

// SentryConfig holds Sentry error monitoring configuration.
type SentryConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	DSN         string  `json:"dsn" yaml:"dsn"`
	Environment string  `json:"environment" yaml:"environment"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
	Release     string  `json:"release" yaml:"release"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `json:"max_age" yaml:"max_age"`
}

// RateLimitConfig holds rate limiting configuration, gating /bulk and
// /search.
type RateLimitConfig struct {
	Enabled         bool                 `json:"enabled" yaml:"enabled"`
	Redis           RateLimitRedisConfig `json:"redis" yaml:"redis"`
	Bulk            RateLimitRuleConfig  `json:"bulk" yaml:"bulk"`
	Search          RateLimitRuleConfig  `json:"search" yaml:"search"`
	BurstMultiplier float64              `json:"burst_multiplier" yaml:"burst_multiplier"`
	CleanupInterval time.Duration        `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// RateLimitRedisConfig holds Redis configuration for rate limiting.
type RateLimitRedisConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// RateLimitRuleConfig holds rate limit configuration for a specific endpoint.
type RateLimitRuleConfig struct {
	Requests int           `json:"requests" yaml:"requests"`
	Window   time.Duration `json:"window" yaml:"window"`
}

// Default values.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8080
	DefaultDataDir           = "./data"
	DefaultArchiveSoftTarget = 10 * 1024 * 1024
	DefaultCompressionLevel  = 6
	DefaultInboxPollInterval = time.Second
	DefaultInboxWatchEnabled = true
	DefaultOverscanLimit     = 200
	DefaultFuzzyThreshold    = 0.7
	DefaultMaxCompositeDepth = 10
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultCORSEnabled       = false
	DefaultCORSMaxAge        = 86400
	DefaultMetricsEnabled    = false
	DefaultMetricsPort       = 9091
	DefaultMetricsPath       = "/metrics"
	DefaultTracingEnabled    = false
	DefaultTracingEndpoint   = "http://localhost:4318"
	DefaultSampleRate        = 0.1
	DefaultSentryEnabled     = false
	DefaultSentryEnv         = "development"
	DefaultSentrySampleRate  = 1.0
	DefaultSentryRelease     = "0.1.0"
)

// Valid values for validation.
var (
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"json", "text"}
)

// Load loads configuration from environment variables and an optional
// config file. Precedence: env vars > config file > defaults.
func Load(ctx context.Context) (*Config, error) {
	cfg := defaults()

	if configFile := os.Getenv("FINDANYTHING_CONFIG_FILE"); configFile != "" {
		fileCfg, err := loadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg = loadEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config with all default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		DataDir: DefaultDataDir,
		Archive: ArchiveConfig{
			SoftTargetBytes:  DefaultArchiveSoftTarget,
			CompressionLevel: DefaultCompressionLevel,
		},
		Inbox: InboxConfig{
			PollInterval: DefaultInboxPollInterval,
			WatchEnabled: DefaultInboxWatchEnabled,
		},
		Query: QueryConfig{
			OverscanLimit:     DefaultOverscanLimit,
			FuzzyThreshold:    DefaultFuzzyThreshold,
			MaxCompositeDepth: DefaultMaxCompositeDepth,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		CORS: CORSConfig{
			Enabled:        DefaultCORSEnabled,
			AllowedOrigins: []string{},
			AllowedMethods: []string{"GET", "POST", "DELETE"},
			AllowedHeaders: []string{"Content-Type", "Content-Encoding", "Authorization"},
			MaxAge:         DefaultCORSMaxAge,
		},
		RateLimit: RateLimitConfig{
			Bulk:            RateLimitRuleConfig{Requests: 30, Window: time.Minute},
			Search:          RateLimitRuleConfig{Requests: 120, Window: time.Minute},
			BurstMultiplier: 1.5,
			CleanupInterval: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
				Port:    DefaultMetricsPort,
				Path:    DefaultMetricsPath,
			},
			Tracing: TracingConfig{
				Enabled:    DefaultTracingEnabled,
				Endpoint:   DefaultTracingEndpoint,
				SampleRate: DefaultSampleRate,
			},
			Sentry: SentryConfig{
				Enabled:     DefaultSentryEnabled,
				Environment: DefaultSentryEnv,
				SampleRate:  DefaultSentrySampleRate,
				Release:     DefaultSentryRelease,
			},
		},
	}
}

// loadFile loads configuration from a YAML file.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	cfg := &Config{}
	// A file that omits watch_enabled must decode to the default, since
	// merge treats any other WatchEnabled value as an override.
	cfg.Inbox.WatchEnabled = DefaultInboxWatchEnabled
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// loadEnv loads configuration from environment variables, overriding
// non-zero values in cfg.
func loadEnv(cfg *Config) *Config {
	if host := os.Getenv("FINDANYTHING_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("FINDANYTHING_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if token := os.Getenv("FINDANYTHING_BEARER_TOKEN"); token != "" {
		cfg.Server.BearerToken = token
	}
	if dataDir := os.Getenv("FINDANYTHING_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	if softTarget := os.Getenv("FINDANYTHING_ARCHIVE_SOFT_TARGET_BYTES"); softTarget != "" {
		if v, err := strconv.ParseInt(softTarget, 10, 64); err == nil {
			cfg.Archive.SoftTargetBytes = v
		}
	}
	if level := os.Getenv("FINDANYTHING_ARCHIVE_COMPRESSION_LEVEL"); level != "" {
		if v, err := strconv.Atoi(level); err == nil {
			cfg.Archive.CompressionLevel = v
		}
	}

	if poll := os.Getenv("FINDANYTHING_INBOX_POLL_INTERVAL"); poll != "" {
		if d, err := time.ParseDuration(poll); err == nil {
			cfg.Inbox.PollInterval = d
		}
	}
	if watch := os.Getenv("FINDANYTHING_INBOX_WATCH_ENABLED"); watch != "" {
		if b, err := strconv.ParseBool(watch); err == nil {
			cfg.Inbox.WatchEnabled = b
		}
	}

	if overscan := os.Getenv("FINDANYTHING_QUERY_OVERSCAN_LIMIT"); overscan != "" {
		if v, err := strconv.Atoi(overscan); err == nil {
			cfg.Query.OverscanLimit = v
		}
	}
	if threshold := os.Getenv("FINDANYTHING_QUERY_FUZZY_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Query.FuzzyThreshold = v
		}
	}
	if depth := os.Getenv("FINDANYTHING_QUERY_MAX_COMPOSITE_DEPTH"); depth != "" {
		if v, err := strconv.Atoi(depth); err == nil {
			cfg.Query.MaxCompositeDepth = v
		}
	}

	if logLevel := os.Getenv("FINDANYTHING_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("FINDANYTHING_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if metricsEnabled := os.Getenv("FINDANYTHING_METRICS_ENABLED"); metricsEnabled != "" {
		if enabled, err := strconv.ParseBool(metricsEnabled); err == nil {
			cfg.Observability.Metrics.Enabled = enabled
		}
	}
	if metricsPort := os.Getenv("FINDANYTHING_METRICS_PORT"); metricsPort != "" {
		if port, err := strconv.Atoi(metricsPort); err == nil {
			cfg.Observability.Metrics.Port = port
		}
	}
	if metricsPath := os.Getenv("FINDANYTHING_METRICS_PATH"); metricsPath != "" {
		cfg.Observability.Metrics.Path = metricsPath
	}

	if tracingEnabled := os.Getenv("FINDANYTHING_TRACING_ENABLED"); tracingEnabled != "" {
		if enabled, err := strconv.ParseBool(tracingEnabled); err == nil {
			cfg.Observability.Tracing.Enabled = enabled
		}
	}
	if tracingEndpoint := os.Getenv("FINDANYTHING_TRACING_ENDPOINT"); tracingEndpoint != "" {
		cfg.Observability.Tracing.Endpoint = tracingEndpoint
	}
	if sampleRate := os.Getenv("FINDANYTHING_TRACING_SAMPLE_RATE"); sampleRate != "" {
		if rate, err := strconv.ParseFloat(sampleRate, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = rate
		}
	}

	if sentryEnabled := os.Getenv("FINDANYTHING_SENTRY_ENABLED"); sentryEnabled != "" {
		if enabled, err := strconv.ParseBool(sentryEnabled); err == nil {
			cfg.Observability.Sentry.Enabled = enabled
		}
	}
	if sentryDSN := os.Getenv("FINDANYTHING_SENTRY_DSN"); sentryDSN != "" {
		cfg.Observability.Sentry.DSN = sentryDSN
	}
	if sentryEnv := os.Getenv("FINDANYTHING_SENTRY_ENVIRONMENT"); sentryEnv != "" {
		cfg.Observability.Sentry.Environment = sentryEnv
	}
	if sentrySampleRate := os.Getenv("FINDANYTHING_SENTRY_SAMPLE_RATE"); sentrySampleRate != "" {
		if rate, err := strconv.ParseFloat(sentrySampleRate, 64); err == nil {
			cfg.Observability.Sentry.SampleRate = rate
		}
	}
	if sentryRelease := os.Getenv("FINDANYTHING_SENTRY_RELEASE"); sentryRelease != "" {
		cfg.Observability.Sentry.Release = sentryRelease
	}

	if corsEnabled := os.Getenv("FINDANYTHING_CORS_ENABLED"); corsEnabled != "" {
		if enabled, err := strconv.ParseBool(corsEnabled); err == nil {
			cfg.CORS.Enabled = enabled
		}
	}
	if origins := os.Getenv("FINDANYTHING_CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = splitTrim(origins)
	}
	if methods := os.Getenv("FINDANYTHING_CORS_ALLOWED_METHODS"); methods != "" {
		cfg.CORS.AllowedMethods = splitTrim(methods)
	}
	if headers := os.Getenv("FINDANYTHING_CORS_ALLOWED_HEADERS"); headers != "" {
		cfg.CORS.AllowedHeaders = splitTrim(headers)
	}
	if credentials := os.Getenv("FINDANYTHING_CORS_ALLOW_CREDENTIALS"); credentials != "" {
		if allow, err := strconv.ParseBool(credentials); err == nil {
			cfg.CORS.AllowCredentials = allow
		}
	}
	if maxAge := os.Getenv("FINDANYTHING_CORS_MAX_AGE"); maxAge != "" {
		if v, err := strconv.Atoi(maxAge); err == nil {
			cfg.CORS.MaxAge = v
		}
	}

	if rlEnabled := os.Getenv("FINDANYTHING_RATE_LIMIT_ENABLED"); rlEnabled != "" {
		if enabled, err := strconv.ParseBool(rlEnabled); err == nil {
			cfg.RateLimit.Enabled = enabled
		}
	}
	if redisEnabled := os.Getenv("FINDANYTHING_RATE_LIMIT_REDIS_ENABLED"); redisEnabled != "" {
		if enabled, err := strconv.ParseBool(redisEnabled); err == nil {
			cfg.RateLimit.Redis.Enabled = enabled
		}
	}
	if redisAddr := os.Getenv("FINDANYTHING_RATE_LIMIT_REDIS_ADDR"); redisAddr != "" {
		cfg.RateLimit.Redis.Addr = redisAddr
	}
	if redisPassword := os.Getenv("FINDANYTHING_RATE_LIMIT_REDIS_PASSWORD"); redisPassword != "" {
		cfg.RateLimit.Redis.Password = redisPassword
	}
	if redisDB := os.Getenv("FINDANYTHING_RATE_LIMIT_REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.RateLimit.Redis.DB = db
		}
	}
	if keyPrefix := os.Getenv("FINDANYTHING_RATE_LIMIT_REDIS_KEY_PREFIX"); keyPrefix != "" {
		cfg.RateLimit.Redis.KeyPrefix = keyPrefix
	}
	if bulkRequests := os.Getenv("FINDANYTHING_RATE_LIMIT_BULK_REQUESTS"); bulkRequests != "" {
		if v, err := strconv.Atoi(bulkRequests); err == nil {
			cfg.RateLimit.Bulk.Requests = v
		}
	}
	if bulkWindow := os.Getenv("FINDANYTHING_RATE_LIMIT_BULK_WINDOW"); bulkWindow != "" {
		if d, err := time.ParseDuration(bulkWindow); err == nil {
			cfg.RateLimit.Bulk.Window = d
		}
	}
	if searchRequests := os.Getenv("FINDANYTHING_RATE_LIMIT_SEARCH_REQUESTS"); searchRequests != "" {
		if v, err := strconv.Atoi(searchRequests); err == nil {
			cfg.RateLimit.Search.Requests = v
		}
	}
	if searchWindow := os.Getenv("FINDANYTHING_RATE_LIMIT_SEARCH_WINDOW"); searchWindow != "" {
		if d, err := time.ParseDuration(searchWindow); err == nil {
			cfg.RateLimit.Search.Window = d
		}
	}
	if burst := os.Getenv("FINDANYTHING_RATE_LIMIT_BURST_MULTIPLIER"); burst != "" {
		if v, err := strconv.ParseFloat(burst, 64); err == nil {
			cfg.RateLimit.BurstMultiplier = v
		}
	}
	if cleanup := os.Getenv("FINDANYTHING_RATE_LIMIT_CLEANUP_INTERVAL"); cleanup != "" {
		if d, err := time.ParseDuration(cleanup); err == nil {
			cfg.RateLimit.CleanupInterval = d
		}
	}

	return cfg
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// merge merges two configs, preferring non-zero values from override.
// Inbox.WatchEnabled, whose default is true, is taken from override
// whenever it differs from that default.
func merge(base, override *Config) *Config {
	result := *base

	if override.Server.Host != "" {
		result.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		result.Server.Port = override.Server.Port
	}
	if override.Server.BearerToken != "" {
		result.Server.BearerToken = override.Server.BearerToken
	}
	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}

	if override.Archive.SoftTargetBytes != 0 {
		result.Archive.SoftTargetBytes = override.Archive.SoftTargetBytes
	}
	if override.Archive.CompressionLevel != 0 {
		result.Archive.CompressionLevel = override.Archive.CompressionLevel
	}

	if override.Inbox.PollInterval != 0 {
		result.Inbox.PollInterval = override.Inbox.PollInterval
	}
	if override.Inbox.WatchEnabled != DefaultInboxWatchEnabled {
		result.Inbox.WatchEnabled = override.Inbox.WatchEnabled
	}

	if override.Query.OverscanLimit != 0 {
		result.Query.OverscanLimit = override.Query.OverscanLimit
	}
	if override.Query.FuzzyThreshold != 0 {
		result.Query.FuzzyThreshold = override.Query.FuzzyThreshold
	}
	if override.Query.MaxCompositeDepth != 0 {
		result.Query.MaxCompositeDepth = override.Query.MaxCompositeDepth
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	if override.Observability.Metrics.Enabled != DefaultMetricsEnabled {
		result.Observability.Metrics.Enabled = override.Observability.Metrics.Enabled
	}
	if override.Observability.Metrics.Port != 0 {
		result.Observability.Metrics.Port = override.Observability.Metrics.Port
	}
	if override.Observability.Metrics.Path != "" {
		result.Observability.Metrics.Path = override.Observability.Metrics.Path
	}

	if override.Observability.Tracing.Enabled != DefaultTracingEnabled {
		result.Observability.Tracing.Enabled = override.Observability.Tracing.Enabled
	}
	if override.Observability.Tracing.Endpoint != "" {
		result.Observability.Tracing.Endpoint = override.Observability.Tracing.Endpoint
	}
	if override.Observability.Tracing.SampleRate != 0 {
		result.Observability.Tracing.SampleRate = override.Observability.Tracing.SampleRate
	}

	if override.Observability.Sentry.Enabled != DefaultSentryEnabled {
		result.Observability.Sentry.Enabled = override.Observability.Sentry.Enabled
	}
	if override.Observability.Sentry.DSN != "" {
		result.Observability.Sentry.DSN = override.Observability.Sentry.DSN
	}
	if override.Observability.Sentry.Environment != "" {
		result.Observability.Sentry.Environment = override.Observability.Sentry.Environment
	}
	if override.Observability.Sentry.SampleRate != 0 {
		result.Observability.Sentry.SampleRate = override.Observability.Sentry.SampleRate
	}
	if override.Observability.Sentry.Release != "" {
		result.Observability.Sentry.Release = override.Observability.Sentry.Release
	}

	if override.CORS.Enabled != DefaultCORSEnabled {
		result.CORS.Enabled = override.CORS.Enabled
	}
	if len(override.CORS.AllowedOrigins) > 0 {
		result.CORS.AllowedOrigins = override.CORS.AllowedOrigins
	}
	if len(override.CORS.AllowedMethods) > 0 {
		result.CORS.AllowedMethods = override.CORS.AllowedMethods
	}
	if len(override.CORS.AllowedHeaders) > 0 {
		result.CORS.AllowedHeaders = override.CORS.AllowedHeaders
	}
	if override.CORS.AllowCredentials {
		result.CORS.AllowCredentials = override.CORS.AllowCredentials
	}
	if override.CORS.MaxAge != 0 {
		result.CORS.MaxAge = override.CORS.MaxAge
	}

	if override.RateLimit.Enabled {
		result.RateLimit.Enabled = override.RateLimit.Enabled
	}
	if override.RateLimit.Redis.Enabled {
		result.RateLimit.Redis.Enabled = override.RateLimit.Redis.Enabled
	}
	if override.RateLimit.Redis.Addr != "" {
		result.RateLimit.Redis.Addr = override.RateLimit.Redis.Addr
	}
	if override.RateLimit.Redis.Password != "" {
		result.RateLimit.Redis.Password = override.RateLimit.Redis.Password
	}
	if override.RateLimit.Redis.DB != 0 {
		result.RateLimit.Redis.DB = override.RateLimit.Redis.DB
	}
	if override.RateLimit.Redis.KeyPrefix != "" {
		result.RateLimit.Redis.KeyPrefix = override.RateLimit.Redis.KeyPrefix
	}
	if override.RateLimit.Bulk.Requests != 0 {
		result.RateLimit.Bulk.Requests = override.RateLimit.Bulk.Requests
	}
	if override.RateLimit.Bulk.Window != 0 {
		result.RateLimit.Bulk.Window = override.RateLimit.Bulk.Window
	}
	if override.RateLimit.Search.Requests != 0 {
		result.RateLimit.Search.Requests = override.RateLimit.Search.Requests
	}
	if override.RateLimit.Search.Window != 0 {
		result.RateLimit.Search.Window = override.RateLimit.Search.Window
	}
	if override.RateLimit.BurstMultiplier != 0 {
		result.RateLimit.BurstMultiplier = override.RateLimit.BurstMultiplier
	}
	if override.RateLimit.CleanupInterval != 0 {
		result.RateLimit.CleanupInterval = override.RateLimit.CleanupInterval
	}

	return &result
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}

	if c.Archive.SoftTargetBytes < 1 {
		return fmt.Errorf("archive soft target bytes must be positive: %d", c.Archive.SoftTargetBytes)
	}
	if c.Archive.CompressionLevel < -1 || c.Archive.CompressionLevel > 9 {
		return fmt.Errorf("invalid archive compression level: %d (must be -1 to 9)", c.Archive.CompressionLevel)
	}

	if c.Inbox.PollInterval <= 0 {
		return fmt.Errorf("inbox poll interval must be positive: %s", c.Inbox.PollInterval)
	}

	if c.Query.OverscanLimit < 0 {
		return fmt.Errorf("query overscan limit cannot be negative: %d", c.Query.OverscanLimit)
	}
	if c.Query.FuzzyThreshold < 0 || c.Query.FuzzyThreshold > 1 {
		return fmt.Errorf("query fuzzy threshold must be between 0 and 1: %f", c.Query.FuzzyThreshold)
	}
	if c.Query.MaxCompositeDepth < 1 {
		return fmt.Errorf("query max composite depth must be positive: %d", c.Query.MaxCompositeDepth)
	}

	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}

	if c.Observability.Metrics.Enabled {
		if c.Observability.Metrics.Port < 1 || c.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d (must be 1-65535)", c.Observability.Metrics.Port)
		}
		if c.Observability.Metrics.Path == "" {
			return fmt.Errorf("metrics path cannot be empty when metrics enabled")
		}
	}

	if c.Observability.Tracing.Enabled {
		if c.Observability.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing endpoint cannot be empty when tracing enabled")
		}
		if c.Observability.Tracing.SampleRate < 0 || c.Observability.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing sample rate must be between 0 and 1: %f", c.Observability.Tracing.SampleRate)
		}
	}

	if c.Observability.Sentry.Enabled {
		if c.Observability.Sentry.DSN == "" {
			return fmt.Errorf("sentry DSN cannot be empty when sentry enabled")
		}
		if c.Observability.Sentry.SampleRate < 0 || c.Observability.Sentry.SampleRate > 1 {
			return fmt.Errorf("sentry sample rate must be between 0 and 1: %f", c.Observability.Sentry.SampleRate)
		}
	}

	if c.RateLimit.Redis.Enabled && c.RateLimit.Redis.Addr == "" {
		return fmt.Errorf("rate limit redis addr cannot be empty when redis enabled")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Default returns a default configuration for testing and documentation.
func Default() *Config {
	return defaults()
}
