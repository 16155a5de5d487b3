// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tasklist/tasklist/internal/auth"
	"github.com/tasklist/tasklist/internal/todo"
)

// TodoService is the part of todo.Service the HTTP layer drives.
type TodoService interface {
	List(ctx context.Context, userID int64) ([]*todo.Todo, error)
	Get(ctx context.Context, userID, id int64) (*todo.Todo, error)
	Create(ctx context.Context, userID int64, t *todo.Todo) (*todo.Todo, error)
	Update(ctx context.Context, userID, id int64, patch todo.Patch) (*todo.Todo, error)
	Delete(ctx context.Context, userID, id int64) error
}

// TodoHandler serves /todo. Routes must sit behind RequireAuth.
type TodoHandler struct {
	svc    TodoService
	logger *slog.Logger
}

// NewTodoHandler creates a TodoHandler.
func NewTodoHandler(svc TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{svc: svc, logger: logger}
}

type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// List handles GET /todo/getItem.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	todos, err := h.svc.List(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

// Get handles GET /todo/getItemById/{id}.
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Create handles POST /todo/createItem.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createTodoRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	t, err := h.svc.Create(r.Context(), userID, &todo.Todo{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// Update handles PUT /todo/editItem/{id}.
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	var patch todo.Patch
	if !decodeJSON(w, r, h.logger, &patch) {
		return
	}
	t, err := h.svc.Update(r.Context(), userID, id, patch)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /todo/deleteItem/{id}.
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) caller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, auth.CodeUnauthenticated, "authentication required")
		return 0, false
	}
	return identity.UserID, true
}

// todoID parses the {id} path parameter. Malformed ids are reported as not
// found.
func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, CodeTodoNotFound, "todo not found")
		return 0, false
	}
	return id, true
}
