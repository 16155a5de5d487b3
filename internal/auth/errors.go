// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Repository sentinels. Store implementations wrap these so callers can
// distinguish a missing or conflicting record from a transport failure.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)

// Error kinds surfaced by the service and the guard. Match with errors.Is.
var (
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotificationFailed = errors.New("notification delivery failed")
	ErrStoreUnavailable   = errors.New("credential store unavailable")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrHashingFailed      = errors.New("password hashing failed")
)

// Error codes attached to the kinds above.
const (
	CodeDuplicateIdentity  = "AUTH_DUPLICATE_IDENTITY"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeNotificationFailed = "AUTH_NOTIFICATION_FAILED"
	CodeStoreUnavailable   = "AUTH_STORE_UNAVAILABLE"
	CodeInvalidToken       = "AUTH_INVALID_TOKEN"
	CodeUnauthenticated    = "AUTH_UNAUTHENTICATED"
	CodeHashFailed         = "AUTH_HASH_FAILED"
)

// kindError builds an oops error carrying code that matches kind with errors.Is.
// cause may be nil; when present it stays reachable through errors.Is/As.
func kindError(code string, kind error, cause error, kv ...any) error {
	builder := oops.Code(code)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		builder = builder.With(key, kv[i+1])
	}
	if cause == nil {
		return builder.Wrap(kind)
	}
	return builder.Wrap(fmt.Errorf("%w: %w", kind, cause))
}

func invalidCredentials(reason string) error {
	return kindError(CodeInvalidCredentials, ErrInvalidCredentials, nil, "reason", reason)
}

func storeUnavailable(operation string, cause error) error {
	return kindError(CodeStoreUnavailable, ErrStoreUnavailable, cause, "operation", operation)
}
