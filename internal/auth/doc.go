// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package auth provides the authentication and session primitives for Tasklist.
//
// # Components
//
//   - Argon2idHasher - one-way password hashing (argon2id, bcrypt verify-only)
//   - JWTIssuer - signed, time-limited session tokens
//   - GenerateResetToken - single-use password-reset tokens
//   - Service - sign-up, sign-in and the password-reset lifecycle
//   - Guard - resolves the identity behind an Authorization header
//
// Users should be created with NewUser, which normalizes the email and
// rejects an empty password hash. Repository implementations receive
// pre-validated values.
//
// # Errors
//
// Failures carry an oops code and match one of the exported kinds with
// errors.Is: ErrDuplicateIdentity, ErrInvalidCredentials, ErrNotificationFailed,
// ErrStoreUnavailable, ErrInvalidToken, ErrUnauthenticated, ErrHashingFailed.
// Unknown email and wrong password both surface as ErrInvalidCredentials.
package auth
