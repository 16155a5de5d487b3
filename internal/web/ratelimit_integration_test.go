//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package web_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tasklist/tasklist/internal/web"
)

func TestRedisRateLimitStore(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := web.OpenRedis(ctx, fmt.Sprintf("redis://%s/0", endpoint))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := web.NewRedisRateLimitStore(client)

	t.Run("counts hits and expires the window", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := store.Hit(ctx, "it:window", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		ttl, err := client.TTL(ctx, "it:window").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("later hits do not extend the window", func(t *testing.T) {
		_, err := store.Hit(ctx, "it:fixed", time.Minute)
		require.NoError(t, err)
		_, err = store.Hit(ctx, "it:fixed", time.Hour)
		require.NoError(t, err)

		ttl, err := client.TTL(ctx, "it:fixed").Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("counter without ttl gets one on the next hit", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "it:orphan", 5, 0).Err())

		got, err := store.Hit(ctx, "it:orphan", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(6), got)

		ttl, err := client.TTL(ctx, "it:orphan").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("block and blocked", func(t *testing.T) {
		_, blocked, err := store.Blocked(ctx, "it:block")
		require.NoError(t, err)
		assert.False(t, blocked)

		require.NoError(t, store.Block(ctx, "it:block", time.Minute))

		remaining, blocked, err := store.Blocked(ctx, "it:block")
		require.NoError(t, err)
		assert.True(t, blocked)
		assert.Greater(t, remaining, time.Duration(0))
	})

	t.Run("middleware over redis", func(t *testing.T) {
		h := limitedHandler(store, 1)
		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.1:1").Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.1:2").Code)
	})
}

func TestOpenRedis_BadURL(t *testing.T) {
	_, err := web.OpenRedis(context.Background(), "not-a-url://")
	require.Error(t, err)
}
