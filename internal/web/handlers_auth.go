// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tasklist/tasklist/internal/auth"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// AuthService is the part of auth.Service the HTTP layer drives.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) (*auth.SignInResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler serves /auth.
type AuthHandler struct {
	svc    AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken string    `json:"accessToken"`
	UserID      int64     `json:"userId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "email and password are required")
		return
	}

	if err := h.svc.SignUp(r.Context(), req.Email, req.Password); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// SignIn handles POST /auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "email and password are required")
		return
	}

	result, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{
		AccessToken: result.AccessToken,
		UserID:      result.UserID,
		ExpiresAt:   result.ExpiresAt.UTC(),
	})
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "email is required")
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "token and newPassword are required")
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeJSON(w, r, h.logger, v)
}

// decodeJSON reads a bounded JSON body into v. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	message := "request body must be valid JSON"
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		message = "request body is empty"
	case errors.As(err, &maxErr):
		message = "request body is too large"
	}
	logger.DebugContext(r.Context(), "invalid request body", "error", err)
	writeError(w, http.StatusBadRequest, CodeInvalidRequest, message)
	return false
}
