// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/tasklist/tasklist/internal/auth"
	"github.com/tasklist/tasklist/internal/store"
)

const userColumns = `id, email, password_hash, reset_token_hash, reset_expires_at, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.DBTX
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user and sets user.ID from the generated key.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_DUPLICATE").
				With("email", user.Email).
				Wrap(auth.ErrDuplicate)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").With("id", id).Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").With("email", email).Wrap(err)
	}
	return user, nil
}

// GetByResetTokenHash retrieves the user whose outstanding reset matches tokenHash.
// Expiry is checked by the caller.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token_hash = $1`, tokenHash)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_TOKEN_FAILED").Wrap(err)
	}
	return user, nil
}

// SetResetToken replaces the outstanding reset without touching the password hash.
func (r *UserRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			reset_token_hash = $2,
			reset_expires_at = $3,
			updated_at = now()
		WHERE id = $1
	`, id, tokenHash, expiresAt)
	if err != nil {
		return oops.Code("USER_SET_RESET_FAILED").
			With("operation", "set reset token").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken installs passwordHash and clears the reset in one
// conditional statement. A token that is unknown, expired or already consumed
// matches no row.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		UPDATE users SET
			password_hash = $2,
			reset_token_hash = NULL,
			reset_expires_at = NULL,
			updated_at = $3
		WHERE reset_token_hash = $1 AND reset_expires_at > $3
		RETURNING id
	`, tokenHash, passwordHash, now).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("USER_CONSUME_RESET_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	return id, nil
}

// UpdatePasswordHash swaps oldHash for newHash if the stored hash is still oldHash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id int64, oldHash, newHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET
			password_hash = $3,
			updated_at = now()
		WHERE id = $1 AND password_hash = $2
	`, id, oldHash, newHash)
	if err != nil {
		return oops.Code("USER_UPDATE_HASH_FAILED").
			With("operation", "update password hash").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_HASH_CHANGED").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// pgx.ErrNoRows is returned unchanged.
func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.ResetTokenHash,
		&u.ResetExpiresAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("USER_SCAN_FAILED").Wrap(err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
