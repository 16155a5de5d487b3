// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package todo implements per-user todo items.
package todo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
)

// MaxTitleLength bounds Todo.Title in runes.
const MaxTitleLength = 200

var (
	// ErrNotFound is returned when a todo does not exist or belongs to another user.
	ErrNotFound = errors.New("todo not found")

	// ErrInvalid is returned when a todo fails validation.
	ErrInvalid = errors.New("invalid todo")
)

// Todo is one item on a user's list.
type Todo struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// Apply copies the set fields of p onto t.
func (p Patch) Apply(t *Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

// Validate trims the title and checks it.
func (t *Todo) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	switch {
	case t.Title == "":
		return oops.Code("TODO_INVALID").With("field", "title").Wrapf(ErrInvalid, "title is required")
	case len([]rune(t.Title)) > MaxTitleLength:
		return oops.Code("TODO_INVALID").
			With("field", "title").
			With("max", MaxTitleLength).
			Wrapf(ErrInvalid, "title is too long")
	}
	return nil
}

// Repository persists todos. Every method is scoped to a user; a todo owned
// by someone else is reported as ErrNotFound.
type Repository interface {
	List(ctx context.Context, userID int64) ([]*Todo, error)
	Get(ctx context.Context, userID, id int64) (*Todo, error)
	// Create stores t and sets its ID and timestamps.
	Create(ctx context.Context, t *Todo) error
	Update(ctx context.Context, t *Todo) error
	Delete(ctx context.Context, userID, id int64) error
}
