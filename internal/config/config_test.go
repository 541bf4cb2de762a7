package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, int64(DefaultArchiveSoftTarget), cfg.Archive.SoftTargetBytes)
	assert.Equal(t, DefaultCompressionLevel, cfg.Archive.CompressionLevel)
	assert.Equal(t, DefaultInboxPollInterval, cfg.Inbox.PollInterval)
	assert.True(t, cfg.Inbox.WatchEnabled)
	assert.Equal(t, DefaultOverscanLimit, cfg.Query.OverscanLimit)
	assert.Equal(t, DefaultFuzzyThreshold, cfg.Query.FuzzyThreshold)
	assert.Equal(t, DefaultMaxCompositeDepth, cfg.Query.MaxCompositeDepth)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Cleanup(func() { clearEnv(t) })

	os.Setenv("FINDANYTHING_HOST", "127.0.0.1")
	os.Setenv("FINDANYTHING_PORT", "9090")
	os.Setenv("FINDANYTHING_BEARER_TOKEN", "s3cr3t")
	os.Setenv("FINDANYTHING_DATA_DIR", "/custom/data")
	os.Setenv("FINDANYTHING_ARCHIVE_SOFT_TARGET_BYTES", "2048")
	os.Setenv("FINDANYTHING_ARCHIVE_COMPRESSION_LEVEL", "9")
	os.Setenv("FINDANYTHING_INBOX_POLL_INTERVAL", "2s")
	os.Setenv("FINDANYTHING_INBOX_WATCH_ENABLED", "false")
	os.Setenv("FINDANYTHING_QUERY_OVERSCAN_LIMIT", "50")
	os.Setenv("FINDANYTHING_QUERY_FUZZY_THRESHOLD", "0.5")
	os.Setenv("FINDANYTHING_QUERY_MAX_COMPOSITE_DEPTH", "3")
	os.Setenv("FINDANYTHING_LOG_LEVEL", "debug")
	os.Setenv("FINDANYTHING_LOG_FORMAT", "text")

	cfg := loadEnv(defaults())

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cr3t", cfg.Server.BearerToken)
	assert.Equal(t, "/custom/data", cfg.DataDir)
	assert.Equal(t, int64(2048), cfg.Archive.SoftTargetBytes)
	assert.Equal(t, 9, cfg.Archive.CompressionLevel)
	assert.Equal(t, 2*time.Second, cfg.Inbox.PollInterval)
	assert.False(t, cfg.Inbox.WatchEnabled)
	assert.Equal(t, 50, cfg.Query.OverscanLimit)
	assert.Equal(t, 0.5, cfg.Query.FuzzyThreshold)
	assert.Equal(t, 3, cfg.Query.MaxCompositeDepth)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnv_InvalidValuesIgnored(t *testing.T) {
	clearEnv(t)
	t.Cleanup(func() { clearEnv(t) })

	os.Setenv("FINDANYTHING_PORT", "not-a-number")
	os.Setenv("FINDANYTHING_QUERY_FUZZY_THRESHOLD", "not-a-float")
	os.Setenv("FINDANYTHING_INBOX_WATCH_ENABLED", "not-a-bool")

	base := defaults()
	cfg := loadEnv(defaults())

	assert.Equal(t, base.Server.Port, cfg.Server.Port)
	assert.Equal(t, base.Query.FuzzyThreshold, cfg.Query.FuzzyThreshold)
	assert.Equal(t, base.Inbox.WatchEnabled, cfg.Inbox.WatchEnabled)
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9090
data_dir: /custom/data
logging:
  level: "debug"
  format: "text"
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := loadFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/custom/data", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("invalid: yaml: content: ["), 0o644))

	_, err := loadFile(configFile)
	assert.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := loadFile("/nonexistent/config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}

func TestMerge(t *testing.T) {
	base := defaults()
	override := &Config{
		Server: ServerConfig{
			Port: 9090,
		},
		Logging: LoggingConfig{
			Level: "debug",
		},
	}

	result := merge(base, override)

	assert.Equal(t, 9090, result.Server.Port)
	assert.Equal(t, "debug", result.Logging.Level)

	assert.Equal(t, base.Server.Host, result.Server.Host)
	assert.Equal(t, base.DataDir, result.DataDir)
	assert.Equal(t, base.Archive.SoftTargetBytes, result.Archive.SoftTargetBytes)
	assert.Equal(t, base.Logging.Format, result.Logging.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "invalid port - too low",
			mutate:      func(c *Config) { c.Server.Port = 0 },
			expectError: true,
			errorMsg:    "invalid port",
		},
		{
			name:        "empty data dir",
			mutate:      func(c *Config) { c.DataDir = "" },
			expectError: true,
			errorMsg:    "data_dir cannot be empty",
		},
		{
			name:        "zero archive soft target",
			mutate:      func(c *Config) { c.Archive.SoftTargetBytes = 0 },
			expectError: true,
			errorMsg:    "archive soft target bytes must be positive",
		},
		{
			name:        "invalid compression level",
			mutate:      func(c *Config) { c.Archive.CompressionLevel = 42 },
			expectError: true,
			errorMsg:    "invalid archive compression level",
		},
		{
			name:        "zero inbox poll interval",
			mutate:      func(c *Config) { c.Inbox.PollInterval = 0 },
			expectError: true,
			errorMsg:    "inbox poll interval must be positive",
		},
		{
			name:        "invalid fuzzy threshold",
			mutate:      func(c *Config) { c.Query.FuzzyThreshold = 1.5 },
			expectError: true,
			errorMsg:    "query fuzzy threshold must be between 0 and 1",
		},
		{
			name:        "invalid max composite depth",
			mutate:      func(c *Config) { c.Query.MaxCompositeDepth = 0 },
			expectError: true,
			errorMsg:    "query max composite depth must be positive",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "invalid" },
			expectError: true,
			errorMsg:    "invalid log level",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.Logging.Format = "invalid" },
			expectError: true,
			errorMsg:    "invalid log format",
		},
		{
			name:        "redis enabled without addr",
			mutate:      func(c *Config) { c.RateLimit.Redis.Enabled = true },
			expectError: true,
			errorMsg:    "rate limit redis addr cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		clearEnv(t)
		t.Cleanup(func() { clearEnv(t) })

		cfg, err := Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, defaults(), cfg)
	})

	t.Run("with config file", func(t *testing.T) {
		clearEnv(t)
		t.Cleanup(func() { clearEnv(t) })

		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")
		content := "server:\n  port: 9090\nlogging:\n  level: \"debug\"\n"
		require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

		os.Setenv("FINDANYTHING_CONFIG_FILE", configFile)

		cfg, err := Load(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, DefaultHost, cfg.Server.Host)
		assert.Equal(t, DefaultDataDir, cfg.DataDir)
	})

	t.Run("env overrides file", func(t *testing.T) {
		clearEnv(t)
		t.Cleanup(func() { clearEnv(t) })

		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")
		content := "server:\n  port: 9090\nlogging:\n  level: \"debug\"\n"
		require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

		os.Setenv("FINDANYTHING_CONFIG_FILE", configFile)
		os.Setenv("FINDANYTHING_PORT", "3000")
		os.Setenv("FINDANYTHING_LOG_LEVEL", "error")
		os.Setenv("FINDANYTHING_HOST", "192.168.1.100")

		cfg, err := Load(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "error", cfg.Logging.Level)
		assert.Equal(t, "192.168.1.100", cfg.Server.Host)
	})

	t.Run("invalid config file", func(t *testing.T) {
		clearEnv(t)
		t.Cleanup(func() { clearEnv(t) })

		os.Setenv("FINDANYTHING_CONFIG_FILE", "/nonexistent/config.yaml")

		_, err := Load(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "load config file")
	})

	t.Run("validation error", func(t *testing.T) {
		clearEnv(t)
		t.Cleanup(func() { clearEnv(t) })

		os.Setenv("FINDANYTHING_PORT", "99999")

		_, err := Load(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validate config")
	})
}

func TestContains(t *testing.T) {
	slice := []string{"a", "b", "c"}

	assert.True(t, contains(slice, "a"))
	assert.True(t, contains(slice, "b"))
	assert.False(t, contains(slice, "d"))
	assert.False(t, contains([]string{}, "a"))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, defaults(), cfg)
}

// clearEnv clears all FINDANYTHING_* env vars used by the config package.
func clearEnv(t *testing.T) {
	vars := []string{
		"FINDANYTHING_HOST",
		"FINDANYTHING_PORT",
		"FINDANYTHING_BEARER_TOKEN",
		"FINDANYTHING_DATA_DIR",
		"FINDANYTHING_CONFIG_FILE",
		"FINDANYTHING_ARCHIVE_SOFT_TARGET_BYTES",
		"FINDANYTHING_ARCHIVE_COMPRESSION_LEVEL",
		"FINDANYTHING_INBOX_POLL_INTERVAL",
		"FINDANYTHING_INBOX_WATCH_ENABLED",
		"FINDANYTHING_QUERY_OVERSCAN_LIMIT",
		"FINDANYTHING_QUERY_FUZZY_THRESHOLD",
		"FINDANYTHING_QUERY_MAX_COMPOSITE_DEPTH",
		"FINDANYTHING_LOG_LEVEL",
		"FINDANYTHING_LOG_FORMAT",
		"FINDANYTHING_METRICS_ENABLED",
		"FINDANYTHING_METRICS_PORT",
		"FINDANYTHING_METRICS_PATH",
		"FINDANYTHING_TRACING_ENABLED",
		"FINDANYTHING_TRACING_ENDPOINT",
		"FINDANYTHING_TRACING_SAMPLE_RATE",
		"FINDANYTHING_SENTRY_ENABLED",
		"FINDANYTHING_SENTRY_DSN",
		"FINDANYTHING_SENTRY_ENVIRONMENT",
		"FINDANYTHING_SENTRY_SAMPLE_RATE",
		"FINDANYTHING_SENTRY_RELEASE",
		"FINDANYTHING_CORS_ENABLED",
		"FINDANYTHING_CORS_ALLOWED_ORIGINS",
		"FINDANYTHING_CORS_ALLOWED_METHODS",
		"FINDANYTHING_CORS_ALLOWED_HEADERS",
		"FINDANYTHING_CORS_ALLOW_CREDENTIALS",
		"FINDANYTHING_CORS_MAX_AGE",
		"FINDANYTHING_RATE_LIMIT_ENABLED",
		"FINDANYTHING_RATE_LIMIT_REDIS_ENABLED",
		"FINDANYTHING_RATE_LIMIT_REDIS_ADDR",
		"FINDANYTHING_RATE_LIMIT_REDIS_PASSWORD",
		"FINDANYTHING_RATE_LIMIT_REDIS_DB",
		"FINDANYTHING_RATE_LIMIT_REDIS_KEY_PREFIX",
		"FINDANYTHING_RATE_LIMIT_BULK_REQUESTS",
		"FINDANYTHING_RATE_LIMIT_BULK_WINDOW",
		"FINDANYTHING_RATE_LIMIT_SEARCH_REQUESTS",
		"FINDANYTHING_RATE_LIMIT_SEARCH_WINDOW",
		"FINDANYTHING_RATE_LIMIT_BURST_MULTIPLIER",
		"FINDANYTHING_RATE_LIMIT_CLEANUP_INTERVAL",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
