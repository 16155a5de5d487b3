// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package authtest provides in-memory collaborators for exercising the auth service.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/tasklist/tasklist/internal/auth"
)

// MemoryUserRepository is a concurrency-safe auth.UserRepository backed by a map.
// Email uniqueness is enforced the same way the database enforces it.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]auth.User
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]auth.User)}
}

// Create stores a new user and assigns its ID.
func (r *MemoryUserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == auth.NormalizeEmail(user.Email) {
			return oops.Code("USER_DUPLICATE").With("email", user.Email).Wrap(auth.ErrDuplicate)
		}
	}

	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = cloneUser(*user)
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	out := cloneUser(user)
	return &out, nil
}

// GetByEmail retrieves a user by email.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = auth.NormalizeEmail(email)
	for _, user := range r.users {
		if user.Email == email {
			out := cloneUser(user)
			return &out, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
}

// GetByResetTokenHash retrieves the user with a matching outstanding reset.
func (r *MemoryUserRepository) GetByResetTokenHash(_ context.Context, tokenHash string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.ResetTokenHash != nil && *user.ResetTokenHash == tokenHash {
			out := cloneUser(user)
			return &out, nil
		}
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// SetResetToken replaces the outstanding reset of user id.
func (r *MemoryUserRepository) SetResetToken(_ context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	user.StartReset(tokenHash, expiresAt)
	r.users[id] = user
	return nil
}

// ConsumeResetToken installs passwordHash for the user holding an unexpired
// tokenHash and clears the reset.
func (r *MemoryUserRepository) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, user := range r.users {
		if user.ResetTokenHash == nil || *user.ResetTokenHash != tokenHash || !user.HasPendingReset(now) {
			continue
		}
		user.CompleteReset(passwordHash)
		user.UpdatedAt = now
		r.users[id] = user
		return id, nil
	}
	return 0, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// UpdatePasswordHash swaps oldHash for newHash.
func (r *MemoryUserRepository) UpdatePasswordHash(_ context.Context, id int64, oldHash, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.PasswordHash != oldHash {
		return oops.Code("USER_HASH_CHANGED").With("id", id).Wrap(auth.ErrNotFound)
	}
	user.PasswordHash = newHash
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}

// cloneUser deep-copies pointer fields so callers cannot mutate stored state.
func cloneUser(u auth.User) auth.User {
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		u.ResetTokenHash = &h
	}
	if u.ResetExpiresAt != nil {
		t := *u.ResetExpiresAt
		u.ResetExpiresAt = &t
	}
	return u
}

// Sent is one message captured by a RecordingNotifier.
type Sent struct {
	Email string
	Token string
}

// RecordingNotifier captures reset tokens instead of delivering them.
// Set Err to make delivery fail.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// SendPasswordReset records the message, or returns Err if set.
func (n *RecordingNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, Sent{Email: email, Token: token})
	return nil
}

// Sent returns a copy of everything delivered so far.
func (n *RecordingNotifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

// LastToken returns the most recently delivered token, or "".
func (n *RecordingNotifier) LastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return ""
	}
	return n.sent[len(n.sent)-1].Token
}

// Compile-time interface checks.
var (
	_ auth.UserRepository = (*MemoryUserRepository)(nil)
	_ auth.Notifier       = (*RecordingNotifier)(nil)
)
