// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"
)

// Notifier delivers the password-reset link to the account owner.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// OperationRecorder receives the outcome of every service operation.
type OperationRecorder interface {
	RecordAuthOperation(operation, result string)
}

// Operation names reported to the OperationRecorder.
const (
	OpSignUp        = "signup"
	OpSignIn        = "signin"
	OpRequestReset  = "request_reset"
	OpResetPassword = "reset_password"
)

// dummyPasswordHash is verified when a user doesn't exist so the not-found
// path costs the same as a wrong password. It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SignInResult is returned by a successful SignIn.
type SignInResult struct {
	AccessToken string
	UserID      int64
	ExpiresAt   time.Time
}

// Service orchestrates sign-up, sign-in and the password-reset lifecycle.
// It holds no mutable state between calls.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier Notifier

	sessionTTL time.Duration
	resetTTL   time.Duration
	hashSlots  *semaphore.Weighted
	recorder   OperationRecorder
	logger     *slog.Logger
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSessionTTL sets the lifetime of issued session tokens.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithResetTTL sets how long a password-reset token stays valid.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithHashConcurrency bounds concurrent hash and verify calls. n <= 0 means GOMAXPROCS.
func WithHashConcurrency(n int) ServiceOption {
	return func(s *Service) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		s.hashSlots = semaphore.NewWeighted(int64(n))
	}
}

// WithRecorder reports operation outcomes to r.
func WithRecorder(r OperationRecorder) ServiceOption {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceClock overrides the time source used for reset expiry.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. All four collaborators are required.
func NewService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, notifier Notifier, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token issuer is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("notifier is required")
	}

	s := &Service{
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		notifier:   notifier,
		sessionTTL: DefaultSessionTokenExpiry,
		resetTTL:   DefaultResetTokenExpiry,
		hashSlots:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignUp creates a new identity. It does not sign the user in.
func (s *Service) SignUp(ctx context.Context, email, password string) (err error) {
	defer s.record(OpSignUp, &err)

	hash, err := s.hash(ctx, password)
	if err != nil {
		return err
	}

	user, err := NewUser(email, hash)
	if err != nil {
		return err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return kindError(CodeDuplicateIdentity, ErrDuplicateIdentity, nil, "email", user.Email)
		}
		return storeUnavailable("create user", err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return nil
}

// SignIn authenticates email/password and issues a session token.
// Unknown email and wrong password fail identically.
func (s *Service) SignIn(ctx context.Context, email, password string) (_ *SignInResult, err error) {
	defer s.record(OpSignIn, &err)

	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, storeUnavailable("get user by email", lookupErr)
	}
	userExists := lookupErr == nil

	targetHash := dummyPasswordHash
	if userExists {
		targetHash = user.PasswordHash
	}

	// Always verify, even for unknown users, to keep timing uniform.
	valid, verifyErr := s.verify(ctx, password, targetHash)
	if verifyErr != nil {
		if errors.Is(verifyErr, context.Canceled) || errors.Is(verifyErr, context.DeadlineExceeded) {
			return nil, verifyErr
		}
		if userExists {
			s.logger.WarnContext(ctx, "stored password hash is unreadable", "user_id", user.ID, "error", verifyErr)
		}
		return nil, invalidCredentials("verify failed")
	}
	if !userExists {
		return nil, invalidCredentials("user not found")
	}
	if !valid {
		return nil, invalidCredentials("wrong password")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, expiresAt, err := s.tokens.Issue(Identity{UserID: user.ID, Email: user.Email}, s.sessionTTL)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "issue token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return &SignInResult{AccessToken: token, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// RequestPasswordReset issues a fresh reset token for email and hands it to the notifier.
// A notifier failure leaves the new token persisted; a retry overwrites it.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer s.record(OpRequestReset, &err)

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidCredentials("user not found")
		}
		return storeUnavailable("get user by email", err)
	}

	token, tokenHash, err := GenerateResetToken()
	if err != nil {
		return oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, s.now().Add(s.resetTTL)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidCredentials("user not found")
		}
		return storeUnavailable("store reset token", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		return kindError(CodeNotificationFailed, ErrNotificationFailed, err, "user_id", user.ID)
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword consumes a reset token and installs newPassword.
// The token is single-use: the store clears it in the same conditional update
// that writes the hash, so concurrent resets with one token cannot both win.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer s.record(OpResetPassword, &err)

	if token == "" {
		return invalidCredentials("empty token")
	}

	user, err := s.users.GetByResetTokenHash(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidCredentials("invalid token")
		}
		return storeUnavailable("get user by reset token", err)
	}

	if !user.HasPendingReset(s.now()) || !VerifyResetToken(token, *user.ResetTokenHash) {
		return invalidCredentials("invalid token")
	}

	hash, err := s.hash(ctx, newPassword)
	if err != nil {
		return err
	}

	userID, err := s.users.ConsumeResetToken(ctx, HashResetToken(token), hash, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidCredentials("invalid token")
		}
		return storeUnavailable("update password", err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", userID)
	return nil
}

// hash runs the hasher inside a concurrency slot.
func (s *Service) hash(ctx context.Context, password string) (string, error) {
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		return "", oops.Code("AUTH_HASH_CANCELED").Wrap(err)
	}
	defer s.hashSlots.Release(1)

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrHashingFailed) {
			return "", err
		}
		return "", kindError(CodeHashFailed, ErrHashingFailed, err)
	}
	return hash, nil
}

// verify runs the hasher inside a concurrency slot.
func (s *Service) verify(ctx context.Context, password, hash string) (bool, error) {
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		return false, oops.Code("AUTH_HASH_CANCELED").Wrap(err)
	}
	defer s.hashSlots.Release(1)

	//nolint:wrapcheck // callers decide how to classify verify failures
	return s.hasher.Verify(password, hash)
}

// upgradeHash rewrites a legacy hash. Failures are logged; sign-in proceeds.
// A password changed since the read wins over the upgrade.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hash(ctx, password)
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, user.PasswordHash, newHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "password changed before upgrade, skipping", "user_id", user.ID)
			return
		}
		s.logger.WarnContext(ctx, "failed to persist upgraded password hash", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = newHash
}

func (s *Service) record(operation string, errp *error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordAuthOperation(operation, ResultLabel(*errp))
}

// ResultLabel maps an operation error to a low-cardinality label.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrNotificationFailed):
		return "notification_error"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrHashingFailed):
		return "hashing_error"
	default:
		return "error"
	}
}
