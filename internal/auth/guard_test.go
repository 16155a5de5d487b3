// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklist/tasklist/internal/auth"
	"github.com/tasklist/tasklist/internal/auth/mocks"
	"github.com/tasklist/tasklist/pkg/errutil"
)

func TestNewGuard_RequiresIssuer(t *testing.T) {
	guard, err := auth.NewGuard(nil)
	require.Error(t, err)
	assert.Nil(t, guard)
}

func TestGuard_Authenticate(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)
	guard, err := auth.NewGuard(issuer)
	require.NoError(t, err)

	token, _, err := issuer.Issue(auth.Identity{UserID: 3, Email: "c@x.com"}, time.Hour)
	require.NoError(t, err)

	t.Run("accepts bearer token", func(t *testing.T) {
		identity, err := guard.Authenticate("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, int64(3), identity.UserID)
		assert.Equal(t, "c@x.com", identity.Email)
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		_, err := guard.Authenticate("bearer " + token)
		assert.NoError(t, err)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"scheme only", "Bearer"},
		{"empty token", "Bearer   "},
		{"garbage token", "Bearer not-a-token"},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			identity, err := guard.Authenticate(tt.header)
			require.Error(t, err)
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		})
	}
}

func TestGuard_Authenticate_MissingHeaderCode(t *testing.T) {
	guard, err := auth.NewGuard(mocks.NewMockTokenIssuer(t))
	require.NoError(t, err)

	_, err = guard.Authenticate("")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, auth.CodeUnauthenticated)
	errutil.AssertErrorContext(t, err, "reason", "missing authorization header")
}

func TestGuard_Authenticate_ExpiredToken(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)
	guard, err := auth.NewGuard(issuer)
	require.NoError(t, err)

	token, _, err := issuer.Issue(auth.Identity{UserID: 3, Email: "c@x.com"}, time.Hour)
	require.NoError(t, err)

	_, err = guard.Authenticate("Bearer " + token)
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)

	_, err = guard.Authenticate("Bearer " + token)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestGuard_Authenticate_DoesNotTouchStore(t *testing.T) {
	tokens := mocks.NewMockTokenIssuer(t)
	guard, err := auth.NewGuard(tokens)
	require.NoError(t, err)

	want := &auth.Identity{UserID: 9, Email: "gone@x.com"}
	tokens.On("Verify", "tok").Return(want, nil).Once()

	got, err := guard.Authenticate("Bearer tok")
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.IdentityFromContext(ctx)
	assert.False(t, ok)

	identity := &auth.Identity{UserID: 1, Email: "a@x.com"}
	got, ok := auth.IdentityFromContext(auth.WithIdentity(ctx, identity))
	require.True(t, ok)
	assert.Same(t, identity, got)

	_, ok = auth.IdentityFromContext(auth.WithIdentity(ctx, nil))
	assert.False(t, ok)
}
