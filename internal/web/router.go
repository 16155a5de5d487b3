// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package web exposes the auth and todo services over HTTP.
package web

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tasklist/tasklist/internal/auth"
)

// RouterConfig wires the handlers and middleware. A nil RateLimitStore
// disables rate limiting.
type RouterConfig struct {
	Auth           AuthService
	Todos          TodoService
	Guard          *auth.Guard
	Observer       RequestObserver
	RateLimitStore RateLimitStore
	RateLimit      RateLimitConfig
	CORSOrigins    []string
	// TrustedProxies are the peers allowed to report the client address in
	// X-Forwarded-For. Empty means the TCP peer is the client.
	TrustedProxies []netip.Prefix
	Logger         *slog.Logger
}

// NewRouter builds the API router.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	authHandler := NewAuthHandler(cfg.Auth, logger)
	todoHandler := NewTodoHandler(cfg.Todos, logger)

	r := chi.NewRouter()
	r.Use(RealIP(cfg.TrustedProxies))
	r.Use(RequestID)
	r.Use(Instrument(logger, cfg.Observer))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeRouteNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	// Group middleware runs after routing, so Instrument sees the matched
	// pattern even for rejected requests.
	r.Group(func(r chi.Router) {
		if cfg.RateLimitStore != nil {
			limit := cfg.RateLimit
			if limit.Prefix == "" {
				limit.Prefix = "auth"
			}
			r.Use(RateLimit(cfg.RateLimitStore, limit, logger))
		}
		r.Post("/auth/signup", authHandler.SignUp)
		r.Post("/auth/signin", authHandler.SignIn)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Guard, logger))
		r.Get("/todo/getItem", todoHandler.List)
		r.Get("/todo/getItemById/{id}", todoHandler.Get)
		r.Post("/todo/createItem", todoHandler.Create)
		r.Put("/todo/editItem/{id}", todoHandler.Update)
		r.Delete("/todo/deleteItem/{id}", todoHandler.Delete)
	})

	return r
}
