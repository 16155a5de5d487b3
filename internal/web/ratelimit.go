// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package web

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// RateLimitConfig is a fixed-window limit with a cool-off block.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Block    time.Duration
	Prefix   string
}

// RateLimitStore keeps per-client counters.
type RateLimitStore interface {
	// Blocked reports whether key is blocked and for how much longer.
	Blocked(ctx context.Context, key string) (time.Duration, bool, error)
	// Hit increments the counter for key, starting a window on the first hit.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	// Block blocks key for d.
	Block(ctx context.Context, key string, d time.Duration) error
}

// RedisRateLimitStore implements RateLimitStore on Redis INCR/EXPIRE NX.
// It needs Redis 7 or later.
type RedisRateLimitStore struct {
	rdb redis.Cmdable
}

// NewRedisRateLimitStore wraps a Redis client.
func NewRedisRateLimitStore(rdb redis.Cmdable) *RedisRateLimitStore {
	return &RedisRateLimitStore{rdb: rdb}
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("REDIS_CONFIG_INVALID").Wrap(err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		//nolint:errcheck // already failing
		client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return client, nil
}

func blockKey(key string) string { return key + ":blocked" }

// Blocked reports whether key is inside a block period.
func (s *RedisRateLimitStore) Blocked(ctx context.Context, key string) (time.Duration, bool, error) {
	ttl, err := s.rdb.TTL(ctx, blockKey(key)).Result()
	if err != nil {
		return 0, false, oops.Code("RATELIMIT_READ_FAILED").Wrap(err)
	}
	// TTL is negative when the key is missing or has no expiry.
	if ttl <= 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

// Hit increments the window counter for key. INCR and EXPIRE NX run in one
// MULTI, so a counter never outlives its window; a key left without a TTL
// gets one on the next hit.
func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, oops.Code("RATELIMIT_INCR_FAILED").With("key", key).Wrap(err)
	}
	return incr.Val(), nil
}

// Block marks key as blocked for d.
func (s *RedisRateLimitStore) Block(ctx context.Context, key string, d time.Duration) error {
	if err := s.rdb.Set(ctx, blockKey(key), "1", d).Err(); err != nil {
		return oops.Code("RATELIMIT_BLOCK_FAILED").Wrap(err)
	}
	return nil
}

// RateLimit limits requests per client IP. Store errors let the request
// through.
func RateLimit(store RateLimitStore, cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := cfg.Prefix + ":ip:" + clientIP(r)

			remaining, blocked, err := store.Blocked(ctx, key)
			if err != nil {
				logger.WarnContext(ctx, "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if blocked {
				tooManyRequests(w, remaining)
				return
			}

			count, err := store.Hit(ctx, key, cfg.Window)
			if err != nil {
				logger.WarnContext(ctx, "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(cfg.Requests) {
				if err := store.Block(ctx, key, cfg.Block); err != nil {
					logger.WarnContext(ctx, "rate limiter block failed", "error", err)
				}
				logger.InfoContext(ctx, "client rate limited", "key", key, "count", count)
				tooManyRequests(w, cfg.Block)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(cfg.Requests)-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests, retry in "+retryAfter.Round(time.Second).String())
}

// clientIP strips the port from RemoteAddr, which RealIP has already
// rewritten for requests from trusted proxies.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
