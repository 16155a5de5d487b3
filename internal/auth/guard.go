// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package auth

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

const bearerScheme = "Bearer"

// Guard resolves the identity behind an Authorization header.
// It never consults the user store: claims are trusted until the token expires.
type Guard struct {
	tokens TokenIssuer
}

// NewGuard creates a Guard that verifies tokens with tokens.
func NewGuard(tokens TokenIssuer) (*Guard, error) {
	if tokens == nil {
		return nil, oops.Code("GUARD_INVALID_CONFIG").Errorf("token issuer is required")
	}
	return &Guard{tokens: tokens}, nil
}

// Authenticate parses "Bearer <token>" and verifies the token.
// Every failure is reported as ErrUnauthenticated.
func (g *Guard) Authenticate(header string) (*Identity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, kindError(CodeUnauthenticated, ErrUnauthenticated, nil, "reason", "missing authorization header")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return nil, kindError(CodeUnauthenticated, ErrUnauthenticated, nil, "reason", "unsupported authorization scheme")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, kindError(CodeUnauthenticated, ErrUnauthenticated, nil, "reason", "empty bearer token")
	}

	identity, err := g.tokens.Verify(token)
	if err != nil {
		return nil, kindError(CodeUnauthenticated, ErrUnauthenticated, err)
	}
	return identity, nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity attached by the guard, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
