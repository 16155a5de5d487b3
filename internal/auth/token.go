// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	DefaultSessionTokenExpiry = time.Hour
	DefaultTokenIssuer        = "tasklist"
	MinSigningSecretLength    = 32
)

// Identity is the set of claims carried by a session token.
type Identity struct {
	UserID    int64
	Email     string
	ExpiresAt time.Time
}

// TokenIssuer issues and verifies signed session tokens.
type TokenIssuer interface {
	// Issue signs a token for identity that expires ttl from now.
	Issue(identity Identity, ttl time.Duration) (token string, expiresAt time.Time, err error)

	// Verify checks signature, structure and expiry and returns the embedded identity.
	Verify(token string) (*Identity, error)
}

// sessionClaims is the JWT payload. The id/email names match what clients
// already decode from the token.
type sessionClaims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTIssuer implements TokenIssuer with HS256 JWTs.
type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTOption configures a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) JWTOption {
	return func(i *JWTIssuer) {
		i.now = now
	}
}

// WithIssuer sets the iss claim written and required on verification.
func WithIssuer(issuer string) JWTOption {
	return func(i *JWTIssuer) {
		i.issuer = issuer
	}
}

// NewJWTIssuer creates a JWTIssuer. The secret is copied; it must be at least
// MinSigningSecretLength bytes.
func NewJWTIssuer(secret []byte, opts ...JWTOption) (*JWTIssuer, error) {
	if len(secret) < MinSigningSecretLength {
		return nil, oops.Code("AUTH_SECRET_TOO_SHORT").
			With("min", MinSigningSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSigningSecretLength)
	}

	i := &JWTIssuer{
		secret: append([]byte(nil), secret...),
		issuer: DefaultTokenIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token for identity that expires ttl from now.
func (i *JWTIssuer) Issue(identity Identity, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_TTL_INVALID").With("ttl", ttl).Errorf("token ttl must be positive")
	}

	now := i.now()
	expiresAt := now.Add(ttl)
	claims := sessionClaims{
		UserID: identity.UserID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(identity.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").
			With("user_id", identity.UserID).
			Wrap(err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, structure and expiry and returns the embedded identity.
func (i *JWTIssuer) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, kindError(CodeInvalidToken, ErrInvalidToken, nil, "reason", "empty token")
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, kindError(CodeInvalidToken, ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == 0 {
		return nil, kindError(CodeInvalidToken, ErrInvalidToken, nil, "reason", "missing identity claims")
	}

	return &Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Compile-time interface check.
var _ TokenIssuer = (*JWTIssuer)(nil)
