// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

// Package postgres implements todo.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/tasklist/tasklist/internal/store"
	"github.com/tasklist/tasklist/internal/todo"
)

const todoColumns = `id, user_id, title, description, completed, created_at, updated_at`

// TodoRepository implements todo.Repository.
type TodoRepository struct {
	db store.DBTX
}

// NewTodoRepository creates a TodoRepository.
func NewTodoRepository(db store.DBTX) *TodoRepository {
	return &TodoRepository{db: db}
}

// List returns every todo owned by userID, oldest first.
func (r *TodoRepository) List(ctx context.Context, userID int64) ([]*todo.Todo, error) {
	rows, err := r.db.Query(ctx, `SELECT `+todoColumns+` FROM todos WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, oops.Code("TODO_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	todos := []*todo.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TODO_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return todos, nil
}

// Get returns todo id if userID owns it.
func (r *TodoRepository) Get(ctx context.Context, userID, id int64) (*todo.Todo, error) {
	row := r.db.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`, id, userID)

	t, err := scanTodo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, oops.Code("TODO_GET_FAILED").With("todo_id", id).Wrap(err)
	}
	return t, nil
}

// Create inserts t and sets t.ID.
func (r *TodoRepository) Create(ctx context.Context, t *todo.Todo) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO todos (user_id, title, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, t.UserID, t.Title, t.Description, t.Completed, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		return oops.Code("TODO_CREATE_FAILED").With("user_id", t.UserID).Wrap(err)
	}
	return nil
}

// Update writes the mutable columns of t.
func (r *TodoRepository) Update(ctx context.Context, t *todo.Todo) error {
	result, err := r.db.Exec(ctx, `
		UPDATE todos SET title = $3, description = $4, completed = $5, updated_at = $6
		WHERE id = $1 AND user_id = $2
	`, t.ID, t.UserID, t.Title, t.Description, t.Completed, t.UpdatedAt)
	if err != nil {
		return oops.Code("TODO_UPDATE_FAILED").With("todo_id", t.ID).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound(t.ID)
	}
	return nil
}

// Delete removes todo id if userID owns it.
func (r *TodoRepository) Delete(ctx context.Context, userID, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return oops.Code("TODO_DELETE_FAILED").With("todo_id", id).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func notFound(id int64) error {
	return oops.Code("TODO_NOT_FOUND").With("todo_id", id).Wrap(todo.ErrNotFound)
}

func scanTodo(row pgx.Row) (*todo.Todo, error) {
	var t todo.Todo
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers map to ErrNotFound
		}
		return nil, oops.Code("TODO_SCAN_FAILED").Wrap(err)
	}
	return &t, nil
}

// Compile-time interface check.
var _ todo.Repository = (*TodoRepository)(nil)
