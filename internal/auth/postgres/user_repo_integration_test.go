// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklist/tasklist/internal/auth"
	"github.com/tasklist/tasklist/internal/auth/postgres"
)

func createUser(ctx context.Context, t *testing.T, email string) *auth.User {
	t.Helper()
	repo := postgres.NewUserRepository(testPool)
	user, err := auth.NewUser(email, "hash")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, user))
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, user.ID)
	})
	return user
}

func TestUserRepository_Integration_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	user := createUser(ctx, t, "lookup@x.com")
	require.NotZero(t, user.ID)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "lookup@x.com", byID.Email)

	byEmail, err := repo.GetByEmail(ctx, "LOOKUP@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Nil(t, byEmail.ResetTokenHash)

	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUserRepository_Integration_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	createUser(ctx, t, "dupe@x.com")

	other, err := auth.NewUser("DUPE@x.com", "hash")
	require.NoError(t, err)
	other.Email = "DUPE@x.com" // bypass normalization to exercise the LOWER() index
	err = repo.Create(ctx, other)
	assert.ErrorIs(t, err, auth.ErrDuplicate)
}

func TestUserRepository_Integration_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE email = 'race@x.com'`)
	})

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := auth.NewUser("race@x.com", "hash")
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = repo.Create(ctx, u)
		}()
	}
	wg.Wait()

	var ok, dupes int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, auth.ErrDuplicate):
			dupes++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dupes)
}

func TestUserRepository_Integration_ResetLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	user := createUser(ctx, t, "reset@x.com")

	hash := auth.HashResetToken("plain")
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.SetResetToken(ctx, user.ID, hash, expires))

	pending, err := repo.GetByResetTokenHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, user.ID, pending.ID)
	assert.Equal(t, "hash", pending.PasswordHash, "setting a reset leaves the password alone")
	require.NotNil(t, pending.ResetExpiresAt)
	assert.True(t, expires.Equal(*pending.ResetExpiresAt))

	id, err := repo.ConsumeResetToken(ctx, hash, "new-hash", time.Now())
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = repo.ConsumeResetToken(ctx, hash, "other-hash", time.Now())
	assert.ErrorIs(t, err, auth.ErrNotFound, "a consumed token matches nothing")

	_, err = repo.GetByResetTokenHash(ctx, hash)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
	assert.Nil(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetExpiresAt)
}

func TestUserRepository_Integration_ConsumeExpired(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	user := createUser(ctx, t, "expired@x.com")

	hash := auth.HashResetToken("stale")
	expires := time.Now().Add(-time.Minute)
	require.NoError(t, repo.SetResetToken(ctx, user.ID, hash, expires))

	_, err := repo.ConsumeResetToken(ctx, hash, "new-hash", time.Now())
	assert.ErrorIs(t, err, auth.ErrNotFound)

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", stored.PasswordHash)
}

func TestUserRepository_Integration_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	user := createUser(ctx, t, "race@x.com")

	hash := auth.HashResetToken("once")
	require.NoError(t, repo.SetResetToken(ctx, user.ID, hash, time.Now().Add(time.Hour)))

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ConsumeResetToken(ctx, hash, "hash-"+string(rune('a'+i)), time.Now())
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			if !errors.Is(err, auth.ErrNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestUserRepository_Integration_UpdatePasswordHash(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)
	user := createUser(ctx, t, "upgrade@x.com")

	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "hash", "upgraded"))

	err := repo.UpdatePasswordHash(ctx, user.ID, "hash", "again")
	assert.ErrorIs(t, err, auth.ErrNotFound, "stale expected hash is rejected")

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "upgraded", stored.PasswordHash)
}

func TestUserRepository_Integration_SetResetMissing(t *testing.T) {
	repo := postgres.NewUserRepository(testPool)
	err := repo.SetResetToken(context.Background(), 1<<40, "x", time.Now())
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
