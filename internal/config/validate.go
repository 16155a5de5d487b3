// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package config

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/tasklist/tasklist/internal/auth"
	"github.com/tasklist/tasklist/internal/logging"
)

const redactedValue = "[redacted]"

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Validate checks settings that do not depend on secrets.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if c.HTTP.ReadHeaderTimeout <= 0 {
		return invalid("http.read_header_timeout", "http.read_header_timeout must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("http.shutdown_timeout", "http.shutdown_timeout must be positive")
	}
	if _, err := c.HTTP.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level %q is not a level", c.Log.Level)
	}
	if c.Auth.SessionTTL <= 0 {
		return invalid("auth.session_ttl", "auth.session_ttl must be positive")
	}
	if c.Auth.ResetTTL <= 0 {
		return invalid("auth.reset_ttl", "auth.reset_ttl must be positive")
	}
	if c.Auth.Issuer == "" {
		return invalid("auth.issuer", "auth.issuer is required")
	}
	if c.Auth.HashConcurrency < 0 {
		return invalid("auth.hash_concurrency", "auth.hash_concurrency cannot be negative")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 || c.RateLimit.Block <= 0 {
		return invalid("ratelimit", "ratelimit.requests, window and block must be positive")
	}
	if c.Database.ConnectTimeout <= 0 {
		return invalid("database.connect_timeout", "database.connect_timeout must be positive")
	}
	if u, err := url.Parse(c.Notify.ResetURL); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("notify.reset_url", "notify.reset_url must be an absolute URL")
	}

	switch c.Notify.Driver {
	case NotifyDriverLog:
	case NotifyDriverSMTP:
		if c.Notify.SMTPHost == "" {
			return invalid("notify.smtp_host", "notify.smtp_host is required for the smtp driver")
		}
		if c.Notify.SMTPPort <= 0 || c.Notify.SMTPPort > 65535 {
			return invalid("notify.smtp_port", "notify.smtp_port %d is out of range", c.Notify.SMTPPort)
		}
		if c.Notify.From == "" && c.Notify.SMTPUsername == "" {
			return invalid("notify.from", "notify.from or notify.smtp_username is required for the smtp driver")
		}
	default:
		return invalid("notify.driver", "notify.driver must be 'log' or 'smtp', got %q", c.Notify.Driver)
	}
	return nil
}

// TrustedProxyPrefixes parses http.trusted_proxies. A bare address is a
// single-host prefix.
func (h HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(h.TrustedProxies))
	for _, entry := range h.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, invalid("http.trusted_proxies", "http.trusted_proxies entry %q is not a CIDR", entry)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, invalid("http.trusted_proxies", "http.trusted_proxies entry %q is not an address", entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ValidateServe checks everything serve needs, secrets included.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Secrets.DatabaseURL == "" {
		return invalid(EnvDatabaseURL, "%s environment variable is required", EnvDatabaseURL)
	}
	if len(c.Secrets.JWTSecret) < auth.MinSigningSecretLength {
		return invalid(EnvJWTSecret, "%s must be at least %d bytes", EnvJWTSecret, auth.MinSigningSecretLength)
	}
	if c.Notify.Driver == NotifyDriverSMTP && c.Secrets.SMTPPassword == "" {
		return invalid(EnvSMTPPassword, "%s is required for the smtp driver", EnvSMTPPassword)
	}
	return nil
}

// DatabaseURL returns the database URL or a CONFIG_INVALID error when unset.
func (c *Config) DatabaseURL() (string, error) {
	if c.Secrets.DatabaseURL == "" {
		return "", invalid(EnvDatabaseURL, "%s environment variable is required", EnvDatabaseURL)
	}
	return c.Secrets.DatabaseURL, nil
}

// Redacted renders the configuration for display. Durations are strings and
// secrets show only whether they are set.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"http": map[string]any{
			"addr":                c.HTTP.Addr,
			"read_header_timeout": c.HTTP.ReadHeaderTimeout.String(),
			"shutdown_timeout":    c.HTTP.ShutdownTimeout.String(),
			"cors_origins":        c.HTTP.CORSOrigins,
			"trusted_proxies":     c.HTTP.TrustedProxies,
		},
		"metrics": map[string]any{
			"addr": c.Metrics.Addr,
		},
		"auth": map[string]any{
			"session_ttl":      c.Auth.SessionTTL.String(),
			"reset_ttl":        c.Auth.ResetTTL.String(),
			"issuer":           c.Auth.Issuer,
			"hash_concurrency": c.Auth.HashConcurrency,
		},
		"notify": map[string]any{
			"driver":        c.Notify.Driver,
			"smtp_host":     c.Notify.SMTPHost,
			"smtp_port":     c.Notify.SMTPPort,
			"smtp_username": c.Notify.SMTPUsername,
			"smtp_timeout":  c.Notify.SMTPTimeout.String(),
			"from":          c.Notify.From,
			"reset_url":     c.Notify.ResetURL,
		},
		"ratelimit": map[string]any{
			"requests": c.RateLimit.Requests,
			"window":   c.RateLimit.Window.String(),
			"block":    c.RateLimit.Block.String(),
		},
		"log": map[string]any{
			"format": c.Log.Format,
			"level":  c.Log.Level,
		},
		"database": map[string]any{
			"connect_timeout": c.Database.ConnectTimeout.String(),
		},
		"env": map[string]any{
			EnvDatabaseURL:  redact(c.Secrets.DatabaseURL),
			EnvJWTSecret:    redact(c.Secrets.JWTSecret),
			EnvSMTPPassword: redact(c.Secrets.SMTPPassword),
			EnvRedisURL:     redact(c.Secrets.RedisURL),
		},
	}
}

func redact(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return redactedValue
}
