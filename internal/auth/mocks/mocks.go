// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package mocks provides testify mocks for the auth collaborator interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tasklist/tasklist/internal/auth"
)

// testingT is the subset of *testing.T the constructors need.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	args := m.Called(ctx, tokenHash)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUserRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, id, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	args := m.Called(ctx, tokenHash, passwordHash, now)
	id, _ := args.Get(0).(int64)
	return id, args.Error(1)
}

func (m *MockUserRepository) UpdatePasswordHash(ctx context.Context, id int64, oldHash, newHash string) error {
	args := m.Called(ctx, id, oldHash, newHash)
	return args.Error(0)
}

func userArg(args mock.Arguments, i int) *auth.User {
	if u, ok := args.Get(i).(*auth.User); ok {
		return u
	}
	return nil
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	args := m.Called(hash)
	return args.Bool(0)
}

// MockTokenIssuer mocks auth.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

// NewMockTokenIssuer creates a mock that asserts its expectations on cleanup.
func NewMockTokenIssuer(t testingT) *MockTokenIssuer {
	m := &MockTokenIssuer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenIssuer) Issue(identity auth.Identity, ttl time.Duration) (string, time.Time, error) {
	args := m.Called(identity, ttl)
	expiresAt, _ := args.Get(1).(time.Time)
	return args.String(0), expiresAt, args.Error(2)
}

func (m *MockTokenIssuer) Verify(token string) (*auth.Identity, error) {
	args := m.Called(token)
	identity, _ := args.Get(0).(*auth.Identity)
	return identity, args.Error(1)
}

// MockNotifier mocks auth.Notifier.
type MockNotifier struct {
	mock.Mock
}

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

// Compile-time interface checks.
var (
	_ auth.UserRepository = (*MockUserRepository)(nil)
	_ auth.PasswordHasher = (*MockPasswordHasher)(nil)
	_ auth.TokenIssuer    = (*MockTokenIssuer)(nil)
	_ auth.Notifier       = (*MockNotifier)(nil)
)
