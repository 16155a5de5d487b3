// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// User is a stored identity. ID is assigned by the store on Create.
type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	ResetTokenHash *string
	ResetExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User ready for insertion.
// The email is normalized with NormalizeEmail.
func NewUser(email, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPendingReset returns true if a reset token is outstanding and not yet expired.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetExpiresAt != nil && now.Before(*u.ResetExpiresAt)
}

// StartReset records a new outstanding reset, replacing any previous one.
func (u *User) StartReset(tokenHash string, expiresAt time.Time) {
	u.ResetTokenHash = &tokenHash
	u.ResetExpiresAt = &expiresAt
	u.UpdatedAt = time.Now()
}

// CompleteReset installs the new password hash and clears the outstanding reset.
func (u *User) CompleteReset(passwordHash string) {
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.ResetExpiresAt = nil
	u.UpdatedAt = time.Now()
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and sets user.ID.
	// Returns an error wrapping ErrDuplicate if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetTokenHash retrieves the user whose outstanding reset matches tokenHash.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)

	// SetResetToken replaces the outstanding reset of user id. The password
	// hash is left untouched. Returns ErrNotFound if the user is gone.
	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken installs passwordHash and clears the reset, but only
	// while tokenHash is still outstanding and unexpired at now. Exactly one
	// caller can consume a token; the rest get ErrNotFound.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error)

	// UpdatePasswordHash swaps oldHash for newHash. Returns ErrNotFound if the
	// stored hash is no longer oldHash.
	UpdatePasswordHash(ctx context.Context, id int64, oldHash, newHash string) error
}
