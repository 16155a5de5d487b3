// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package config loads service configuration from defaults, an optional YAML
// file and command-line flags. Secrets only come from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables holding secrets.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvJWTSecret    = "TASKLIST_JWT_SECRET"
	EnvSMTPPassword = "TASKLIST_SMTP_PASSWORD"
	EnvRedisURL     = "REDIS_URL"
)

// Notifier drivers.
const (
	NotifyDriverLog  = "log"
	NotifyDriverSMTP = "smtp"
)

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	// TrustedProxies lists the peers (addresses or CIDRs) whose
	// X-Forwarded-For is believed. Empty means forwarding headers are ignored.
	TrustedProxies    []string      `koanf:"trusted_proxies"`
}

// MetricsConfig configures the observability listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// AuthConfig tunes the auth service.
type AuthConfig struct {
	SessionTTL      time.Duration `koanf:"session_ttl"`
	ResetTTL        time.Duration `koanf:"reset_ttl"`
	Issuer          string        `koanf:"issuer"`
	HashConcurrency int           `koanf:"hash_concurrency"`
}

// NotifyConfig selects and configures the reset-email notifier.
type NotifyConfig struct {
	Driver       string        `koanf:"driver"`
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUsername string        `koanf:"smtp_username"`
	SMTPTimeout  time.Duration `koanf:"smtp_timeout"`
	From         string        `koanf:"from"`
	ResetURL     string        `koanf:"reset_url"`
}

// RateLimitConfig configures the Redis limiter on /auth.
type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Block    time.Duration `koanf:"block"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig tunes the initial connection.
type DatabaseConfig struct {
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// Secrets are read from the environment and never from files or flags.
type Secrets struct {
	DatabaseURL  string
	JWTSecret    string
	SMTPPassword string
	RedisURL     string
}

// Config is the effective service configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Auth      AuthConfig      `koanf:"auth"`
	Notify    NotifyConfig    `koanf:"notify"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Secrets   Secrets         `koanf:"-"`
}

// Defaults returns the built-in configuration values keyed by koanf path.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":                ":8080",
		"http.read_header_timeout": 10 * time.Second,
		"http.shutdown_timeout":    15 * time.Second,
		"http.cors_origins":        []string{"*"},
		"http.trusted_proxies":     []string{},
		"metrics.addr":             "127.0.0.1:9100",
		"auth.session_ttl":         time.Hour,
		"auth.reset_ttl":           time.Hour,
		"auth.issuer":              "tasklist",
		"auth.hash_concurrency":    0,
		"notify.driver":            NotifyDriverLog,
		"notify.smtp_host":         "",
		"notify.smtp_port":         465,
		"notify.smtp_username":     "",
		"notify.smtp_timeout":      10 * time.Second,
		"notify.from":              "",
		"notify.reset_url":         "http://localhost:3000/reset-password",
		"ratelimit.requests":       10,
		"ratelimit.window":         time.Minute,
		"ratelimit.block":          5 * time.Minute,
		"log.format":               "json",
		"log.level":                "info",
		"database.connect_timeout": 30 * time.Second,
	}
}

// flagKeys maps command-line flag names to koanf paths.
var flagKeys = map[string]string{
	"http-addr":     "http.addr",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"notify-driver": "notify.driver",
}

// RegisterFlags adds the overridable settings to fs. Defaults shown in help
// are the built-in ones; a config file may change them.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("http-addr", d["http.addr"].(string), "API listen address")
	fs.String("metrics-addr", d["metrics.addr"].(string), "metrics/health listen address (empty = disabled)")
	fs.String("log-format", d["log.format"].(string), "log format (json or text)")
	fs.String("log-level", d["log.level"].(string), "log level (debug, info, warn, error)")
	fs.String("notify-driver", d["notify.driver"].(string), "reset email driver (log or smtp)")
}

// LoadOptions controls where Load reads from. Zero values skip a layer.
type LoadOptions struct {
	// File is an optional YAML config file.
	File string
	// Flags are applied last; only flags set on the command line override.
	Flags *pflag.FlagSet
	// EnvFile is loaded into the process environment if it exists.
	EnvFile string
	// Getenv reads secrets. Defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds the effective configuration.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("file", opts.File).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_ENV_FILE_INVALID").With("file", opts.EnvFile).Wrap(err)
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.Secrets = Secrets{
		DatabaseURL:  getenv(EnvDatabaseURL),
		JWTSecret:    getenv(EnvJWTSecret),
		SMTPPassword: getenv(EnvSMTPPassword),
		RedisURL:     getenv(EnvRedisURL),
	}

	return &cfg, nil
}
