// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklist/tasklist/internal/auth"
	"github.com/tasklist/tasklist/pkg/errutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a settable time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestIssuer(t *testing.T, clock *fakeClock) *auth.JWTIssuer {
	t.Helper()
	issuer, err := auth.NewJWTIssuer(testSecret, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return issuer
}

func TestNewJWTIssuer(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		issuer, err := auth.NewJWTIssuer([]byte("short"))
		require.Error(t, err)
		assert.Nil(t, issuer)
		errutil.AssertErrorCode(t, err, "AUTH_SECRET_TOO_SHORT")
	})

	t.Run("copies the secret", func(t *testing.T) {
		secret := append([]byte(nil), testSecret...)
		issuer, err := auth.NewJWTIssuer(secret)
		require.NoError(t, err)

		token, _, err := issuer.Issue(auth.Identity{UserID: 1, Email: "a@x.com"}, time.Hour)
		require.NoError(t, err)

		secret[0] = 'X'
		_, err = issuer.Verify(token)
		assert.NoError(t, err)
	})
}

func TestJWTIssuer_IssueAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	token, expiresAt, err := issuer.Issue(auth.Identity{UserID: 42, Email: "a@x.com"}, time.Hour)
	require.NoError(t, err)
	assert.True(t, clock.now.Add(time.Hour).Equal(expiresAt))

	t.Run("verifies before expiry", func(t *testing.T) {
		identity, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), identity.UserID)
		assert.Equal(t, "a@x.com", identity.Email)
		assert.True(t, expiresAt.Equal(identity.ExpiresAt))
	})

	t.Run("claims carry id and email", func(t *testing.T) {
		claims := jwt.MapClaims{}
		_, _, err := jwt.NewParser().ParseUnverified(token, claims)
		require.NoError(t, err)
		assert.InDelta(t, 42, claims["id"], 0)
		assert.Equal(t, "a@x.com", claims["email"])
		assert.Equal(t, "tasklist", claims["iss"])
	})

	t.Run("fails after expiry", func(t *testing.T) {
		later := &fakeClock{now: clock.now.Add(time.Hour + time.Second)}
		expiredIssuer := newTestIssuer(t, later)

		_, err := expiredIssuer.Verify(token)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
}

func TestJWTIssuer_Verify_Rejects(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)

	valid, _, err := issuer.Issue(auth.Identity{UserID: 7, Email: "b@x.com"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := auth.NewJWTIssuer([]byte("ffffffffffffffffffffffffffffffff"), auth.WithClock(clock.Now))
	require.NoError(t, err)
	foreign, _, err := otherIssuer.Issue(auth.Identity{UserID: 7, Email: "b@x.com"}, time.Hour)
	require.NoError(t, err)

	wrongIss, err := auth.NewJWTIssuer(testSecret, auth.WithClock(clock.Now), auth.WithIssuer("someone-else"))
	require.NoError(t, err)
	wrongIssToken, _, err := wrongIss.Issue(auth.Identity{UserID: 7, Email: "b@x.com"}, time.Hour)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  7,
		"iss": "tasklist",
		"exp": clock.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  7,
		"iss": "tasklist",
	}).SignedString(testSecret)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"signed with another secret", foreign},
		{"wrong issuer", wrongIssToken},
		{"alg none", noneToken},
		{"missing expiry", noExpiry},
		{"tampered payload", tampered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := issuer.Verify(tt.token)
			require.Error(t, err)
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTIssuer_Issue_RejectsNonPositiveTTL(t *testing.T) {
	issuer := newTestIssuer(t, &fakeClock{now: time.Now()})

	_, _, err := issuer.Issue(auth.Identity{UserID: 1}, 0)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_TOKEN_TTL_INVALID")
}
