package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable loadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range legacyEnv {
		t.Setenv(name, "")
	}
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, envPrefix) {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	registerFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "mongo", cfg.Store.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "log", cfg.Mail.Driver)
	assert.Equal(t, 587, cfg.Mail.SMTP.Port)
	assert.Equal(t, time.Hour, cfg.Sweep.Interval)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigLayering(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
env: production
http:
  addr: ":7000"
store:
  driver: redis
mail:
  smtp:
    port: 2525
sweep:
  interval: 30m
log:
  level: warn
`)

	t.Run("file over defaults", func(t *testing.T) {
		cfg, err := loadConfig(newFlags(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.Env)
		assert.Equal(t, ":7000", cfg.HTTP.Addr)
		assert.Equal(t, "redis", cfg.Store.Driver)
		assert.Equal(t, 2525, cfg.Mail.SMTP.Port)
		assert.Equal(t, 30*time.Minute, cfg.Sweep.Interval)
		assert.Equal(t, "authflow", cfg.Mongo.Database)
	})

	t.Run("legacy env over file", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		cfg, err := loadConfig(newFlags(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.HTTP.Addr)
	})

	t.Run("prefixed env over legacy", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("AUTHFLOW_HTTP__ADDR", "127.0.0.1:9000")
		t.Setenv("AUTHFLOW_LOG__LEVEL", "debug")
		t.Setenv("AUTHFLOW_MAIL__SMTP__MAX_RETRIES", "7")
		cfg, err := loadConfig(newFlags(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, uint64(7), cfg.Mail.SMTP.MaxRetries)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("AUTHFLOW_HTTP__ADDR", "127.0.0.1:9000")
		cfg, err := loadConfig(newFlags(t, "--config", path, "--addr", ":6000", "--store", "postgres"))
		require.NoError(t, err)
		assert.Equal(t, ":6000", cfg.HTTP.Addr)
		assert.Equal(t, "postgres", cfg.Store.Driver)
		assert.Equal(t, "warn", cfg.Log.Level)
	})

	t.Run("config path from env", func(t *testing.T) {
		t.Setenv("AUTHFLOW_CONFIG", path)
		cfg, err := loadConfig(newFlags(t))
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.HTTP.Addr)
	})
}

func TestLoadConfigLegacyNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "legacy-secret")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("CLIENT_URL", "https://app.example.com/")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("PORT", "127.0.0.1:5050")

	cfg, err := loadConfig(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "legacy-secret", cfg.JWT.Secret)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "https://app.example.com/", cfg.ClientURL)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "127.0.0.1:5050", cfg.HTTP.Addr)
}

func TestLoadConfigBadFile(t *testing.T) {
	clearEnv(t)

	_, err := loadConfig(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)

	_, err = loadConfig(newFlags(t, "--config", writeFile(t, "http: [unclosed")))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr string
	}{
		{"defaults", func(*config) {}, ""},
		{"unknown store", func(c *config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"unknown mail", func(c *config) { c.Mail.Driver = "sendgrid" }, "mail.driver"},
		{"log format", func(c *config) { c.Log.Format = "xml" }, "log.format"},
		{"postgres without dsn", func(c *config) { c.Store.Driver = "postgres" }, "postgres.dsn"},
		{"smtp without host", func(c *config) { c.Mail.Driver = "smtp" }, "mail.smtp.host"},
		{"dev redis in production", func(c *config) {
			c.Env = "production"
			c.DevRedis = true
		}, "dev_redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(newFlags(t))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEngineConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTHFLOW_ENV", "production")
	t.Setenv("AUTHFLOW_JWT__SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTHFLOW_CLIENT_URL", "https://app.example.com/")
	t.Setenv("AUTHFLOW_SWEEP__ENABLED", "false")
	t.Setenv("AUTHFLOW_AUDIT__ENABLED", "true")

	cfg, err := loadConfig(newFlags(t))
	require.NoError(t, err)
	got := cfg.engineConfig()

	assert.Equal(t, authflow.EnvProduction, got.Environment)
	assert.True(t, got.SecureCookies())
	assert.Equal(t, "https://app.example.com", got.ClientURL)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), got.JWT.Secret)
	assert.Equal(t, 7*24*time.Hour, got.JWT.TTL)
	assert.False(t, got.Sweep.Enabled)
	assert.True(t, got.Audit.Enabled)
	assert.Equal(t, "token", got.Cookie.Name)
	assert.NoError(t, got.Validate())
}
