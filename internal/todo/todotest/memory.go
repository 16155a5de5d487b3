// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package todotest provides an in-memory todo.Repository for tests.
package todotest

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/tasklist/tasklist/internal/todo"
)

// MemoryRepository is a goroutine-safe todo.Repository.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	todos  map[int64]todo.Todo

	// Err, when set, is returned by every method.
	Err error
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{todos: make(map[int64]todo.Todo)}
}

func (r *MemoryRepository) List(_ context.Context, userID int64) ([]*todo.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	out := []*todo.Todo{}
	for _, t := range r.todos {
		if t.UserID == userID {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, userID, id int64) (*todo.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return nil, notFound(id)
	}
	return &t, nil
}

func (r *MemoryRepository) Create(_ context.Context, t *todo.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	r.nextID++
	t.ID = r.nextID
	r.todos[t.ID] = *t
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, t *todo.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	existing, ok := r.todos[t.ID]
	if !ok || existing.UserID != t.UserID {
		return notFound(t.ID)
	}
	r.todos[t.ID] = *t
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, userID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	existing, ok := r.todos[id]
	if !ok || existing.UserID != userID {
		return notFound(id)
	}
	delete(r.todos, id)
	return nil
}

func notFound(id int64) error {
	return oops.Code("TODO_NOT_FOUND").With("todo_id", id).Wrap(todo.ErrNotFound)
}

// Compile-time interface check.
var _ todo.Repository = (*MemoryRepository)(nil)
