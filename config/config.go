// Package config loads service configuration from an optional config.yml,
// an optional .env file and the environment, in increasing priority.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Service string        `mapstructure:"service" validate:"required"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// StoreConfig selects where graphs and snapshots are kept.
type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory postgres"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Driver postgres"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// Logger builds a logger writing to w.
func (c LoggingConfig) Logger(w io.Writer, service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", service).Logger()
}

// environment variables bound to config keys
var envKeys = map[string]string{
	"http.addr":          "HTTP_ADDR",
	"store.driver":       "STORE_DRIVER",
	"store.database_url": "DATABASE_URL",
	"logging.level":      "LOG_LEVEL",
	"logging.format":     "LOG_FORMAT",
}

type options struct {
	configFile string
	envFile    string
}

// Option customises Load.
type Option func(*options)

// WithConfigFile reads path instead of searching for config.yml.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithEnvFile loads path instead of ./.env.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// Load reads the configuration for service, applies defaults and validates
// the result.
func Load(service string, opts ...Option) (*Config, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.configFile == "" {
		o.configFile = firstExisting("./config.yml", "./config/config.yml")
	}
	if o.envFile == "" {
		o.envFile = firstExisting(".env")
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, errors.Wrapf(err, "config: load %s", o.envFile)
		}
	}

	v := viper.New()
	v.SetDefault("service", service)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", o.configFile)
		}
	}
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "config: bind %s", env)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "config: unmarshal for service %s", service)
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: invalid")
	}
	return &cfg, nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
