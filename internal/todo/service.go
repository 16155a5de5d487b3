// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package todo

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Service implements the todo operations for an authenticated user.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(repo Repository, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("TODO_INVALID_CONFIG").Errorf("todo repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}, nil
}

// List returns the user's todos ordered by id.
func (s *Service) List(ctx context.Context, userID int64) ([]*Todo, error) {
	todos, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, oops.With("operation", "list todos").With("user_id", userID).Wrap(err)
	}
	if todos == nil {
		todos = []*Todo{}
	}
	return todos, nil
}

// Get returns one of the user's todos.
func (s *Service) Get(ctx context.Context, userID, id int64) (*Todo, error) {
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, oops.With("operation", "get todo").With("user_id", userID).Wrap(err)
	}
	return t, nil
}

// Create validates and stores a new todo owned by userID.
func (s *Service) Create(ctx context.Context, userID int64, t *Todo) (*Todo, error) {
	t.ID = 0
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, oops.With("operation", "create todo").With("user_id", userID).Wrap(err)
	}

	s.logger.DebugContext(ctx, "todo created", "user_id", userID, "todo_id", t.ID)
	return t, nil
}

// Update applies patch to one of the user's todos.
func (s *Service) Update(ctx context.Context, userID, id int64, patch Patch) (*Todo, error) {
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, oops.With("operation", "update todo").With("user_id", userID).Wrap(err)
	}

	patch.Apply(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, oops.With("operation", "update todo").With("user_id", userID).Wrap(err)
	}
	return t, nil
}

// Delete removes one of the user's todos.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return oops.With("operation", "delete todo").With("user_id", userID).Wrap(err)
	}
	s.logger.DebugContext(ctx, "todo deleted", "user_id", userID, "todo_id", id)
	return nil
}
