package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix marks process settings in the environment. A double underscore
// separates nesting levels: AUTHFLOW_MAIL__SMTP__HOST is mail.smtp.host.
const envPrefix = "AUTHFLOW_"

// config is the process configuration assembled by loadConfig.
type config struct {
	Env       string `koanf:"env"`
	ClientURL string `koanf:"client_url"`
	AppName   string `koanf:"app_name"`
	DevRedis  bool   `koanf:"dev_redis"`

	HTTP struct {
		Addr            string        `koanf:"addr"`
		TrustProxy      bool          `koanf:"trust_proxy"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	JWT struct {
		Secret string        `koanf:"secret"`
		TTL    time.Duration `koanf:"ttl"`
	} `koanf:"jwt"`

	Store struct {
		Driver         string `koanf:"driver"`
		ConnectRetries uint64 `koanf:"connect_retries"`
	} `koanf:"store"`

	Mongo struct {
		URI      string `koanf:"uri"`
		Database string `koanf:"database"`
	} `koanf:"mongo"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
		Prefix   string `koanf:"prefix"`
	} `koanf:"redis"`

	Postgres struct {
		DSN string `koanf:"dsn"`
	} `koanf:"postgres"`

	Mail struct {
		Driver string `koanf:"driver"`
		From   string `koanf:"from"`
		SMTP   struct {
			Host       string `koanf:"host"`
			Port       int    `koanf:"port"`
			Username   string `koanf:"username"`
			Password   string `koanf:"password"`
			MaxRetries uint64 `koanf:"max_retries"`
		} `koanf:"smtp"`
	} `koanf:"mail"`

	Sweep struct {
		Enabled  bool          `koanf:"enabled"`
		Interval time.Duration `koanf:"interval"`
	} `koanf:"sweep"`

	Audit struct {
		Enabled bool `koanf:"enabled"`
	} `koanf:"audit"`

	Log struct {
		Format string `koanf:"format"`
		Level  string `koanf:"level"`
	} `koanf:"log"`

	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`
}

func defaults() map[string]any {
	return map[string]any{
		"env":                   "development",
		"client_url":            "http://localhost:5173",
		"app_name":              "authflow",
		"dev_redis":             false,
		"http.addr":             ":5000",
		"http.trust_proxy":      false,
		"http.shutdown_timeout": "15s",
		"jwt.ttl":               "168h",
		"store.driver":          "mongo",
		"store.connect_retries": 5,
		"mongo.uri":             "mongodb://localhost:27017",
		"mongo.database":        "authflow",
		"redis.addr":            "localhost:6379",
		"redis.prefix":          "authflow",
		"mail.driver":           "log",
		"mail.from":             "authflow <no-reply@localhost>",
		"mail.smtp.port":        587,
		"mail.smtp.max_retries": 3,
		"sweep.enabled":         true,
		"sweep.interval":        "1h",
		"audit.enabled":         false,
		"log.format":            "json",
		"log.level":             "info",
		"metrics.addr":          "127.0.0.1:9100",
	}
}

// legacyEnv maps the unprefixed variable names older deployments use.
var legacyEnv = map[string]string{
	"JWT_SECRET": "jwt.secret",
	"NODE_ENV":   "env",
	"APP_ENV":    "env",
	"CLIENT_URL": "client_url",
	"MONGO_URI":  "mongo.uri",
	"PORT":       "http.addr",
}

// flagKeys maps persistent flag names to config keys.
var flagKeys = map[string]string{
	"env":          "env",
	"addr":         "http.addr",
	"store":        "store.driver",
	"dev-redis":    "dev_redis",
	"mail":         "mail.driver",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
}

// registerFlags adds the config override flags to fs.
func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML config file path")
	fs.String("env", "", "environment (development or production)")
	fs.String("addr", "", "HTTP listen address")
	fs.String("store", "", "user store driver (mongo, redis or postgres)")
	fs.Bool("dev-redis", false, "run an in-process Redis for the store and rate limiter")
	fs.String("mail", "", "mail driver (smtp or log)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn or error)")
	fs.String("metrics-addr", "", "metrics listen address (empty disables)")
}

// loadConfig layers defaults, the optional YAML file, the environment and
// changed flags, in that order.
func loadConfig(fs *pflag.FlagSet) (*config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	legacy := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		target, ok := legacyEnv[key]
		if !ok || value == "" {
			return "", nil
		}
		if key == "PORT" && !strings.Contains(value, ":") {
			value = ":" + value
		}
		return target, value
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, fmt.Errorf("load legacy environment: %w", err)
	}

	prefixed := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		name := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if name == "config" || value == "" {
			return "", nil
		}
		return strings.ReplaceAll(name, "__", "."), value
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(flags, nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *config) Validate() error {
	switch c.Store.Driver {
	case "mongo", "redis", "postgres":
	default:
		return fmt.Errorf("store.driver must be mongo, redis or postgres, got %q", c.Store.Driver)
	}
	switch c.Mail.Driver {
	case "smtp", "log":
	default:
		return fmt.Errorf("mail.driver must be smtp or log, got %q", c.Mail.Driver)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Store.Driver == "postgres" && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required for the postgres store")
	}
	if c.Mail.Driver == "smtp" && c.Mail.SMTP.Host == "" {
		return errors.New("mail.smtp.host is required for the smtp mail driver")
	}
	if c.production() && c.DevRedis {
		return errors.New("dev_redis cannot be used in production")
	}
	return nil
}

func (c *config) production() bool {
	return c.Env == "production"
}

// engineConfig maps the process settings onto the engine configuration.
func (c *config) engineConfig() authflow.Config {
	cfg := authflow.DefaultConfig()
	if c.production() {
		cfg.Environment = authflow.EnvProduction
	}
	cfg.ClientURL = strings.TrimRight(c.ClientURL, "/")
	cfg.JWT.Secret = []byte(c.JWT.Secret)
	if c.JWT.TTL > 0 {
		cfg.JWT.TTL = c.JWT.TTL
	}
	cfg.Sweep.Enabled = c.Sweep.Enabled
	if c.Sweep.Interval > 0 {
		cfg.Sweep.Interval = c.Sweep.Interval
	}
	cfg.Audit.Enabled = c.Audit.Enabled
	return cfg
}
