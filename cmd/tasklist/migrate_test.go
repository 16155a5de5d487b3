// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasklist/tasklist/internal/store"
	"github.com/tasklist/tasklist/pkg/errutil"
)

type fakeMigrator struct {
	calls    []string
	steps    int
	forced   int
	status   *store.Status
	err      error
	closeErr error
}

func (f *fakeMigrator) Up() error   { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Down() error { f.calls = append(f.calls, "down"); return f.err }

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return f.err
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return f.err
}

func (f *fakeMigrator) Status() (*store.Status, error) {
	f.calls = append(f.calls, "status")
	return f.status, f.err
}

func (f *fakeMigrator) Close() error {
	f.calls = append(f.calls, "close")
	return f.closeErr
}

var dbEnv = testEnv(map[string]string{"DATABASE_URL": "postgres://localhost/tasklist"})

func runMigrateCmd(t *testing.T, m *fakeMigrator, getenv func(string) string, args ...string) (string, error) {
	t.Helper()
	resetGlobals(t)

	var openedWith string
	cmd := newMigrateCmd(func(url string) (migrator, error) {
		openedWith = url
		return m, nil
	}, getenv)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		assert.Equal(t, "postgres://localhost/tasklist", openedWith)
	}
	return out.String(), err
}

func TestMigrateCmd_Up(t *testing.T) {
	m := &fakeMigrator{}
	out, err := runMigrateCmd(t, m, dbEnv, "up")
	require.NoError(t, err)
	assert.Equal(t, []string{"up", "close"}, m.calls)
	assert.Contains(t, out, "Migrations completed successfully")
}

func TestMigrateCmd_Down(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		m := &fakeMigrator{}
		_, err := runMigrateCmd(t, m, dbEnv, "down")
		require.NoError(t, err)
		assert.Equal(t, []string{"down", "close"}, m.calls)
	})

	t.Run("steps", func(t *testing.T) {
		m := &fakeMigrator{}
		_, err := runMigrateCmd(t, m, dbEnv, "down", "--steps", "2")
		require.NoError(t, err)
		assert.Equal(t, []string{"steps", "close"}, m.calls)
		assert.Equal(t, -2, m.steps)
	})
}

func TestMigrateCmd_Status(t *testing.T) {
	m := &fakeMigrator{status: &store.Status{
		Current: 1,
		Applied: []store.Migration{{Version: 1, Name: "000001_create_users"}},
		Pending: []store.Migration{{Version: 2, Name: "000002_create_todos"}},
	}}
	out, err := runMigrateCmd(t, m, dbEnv, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1")
	assert.Contains(t, out, "[applied] 000001_create_users")
	assert.Contains(t, out, "[pending] 000002_create_todos")
}

func TestMigrateCmd_StatusDirtyAndEmpty(t *testing.T) {
	m := &fakeMigrator{status: &store.Status{Current: 2, Dirty: true}}
	out, err := runMigrateCmd(t, m, dbEnv, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 2 (dirty)")

	m = &fakeMigrator{status: &store.Status{}}
	out, err = runMigrateCmd(t, m, dbEnv, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: none")
}

func TestMigrateCmd_Force(t *testing.T) {
	m := &fakeMigrator{}
	out, err := runMigrateCmd(t, m, dbEnv, "force", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, m.forced)
	assert.Contains(t, out, "Forced migration version to 3")

	m = &fakeMigrator{}
	_, err = runMigrateCmd(t, m, dbEnv, "force", "abc")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Empty(t, m.calls, "migrator is not opened for a bad version")
}

func TestMigrateCmd_Errors(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		_, err := runMigrateCmd(t, &fakeMigrator{}, testEnv(nil), "up")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("migration failure still closes", func(t *testing.T) {
		m := &fakeMigrator{err: oops.Code("MIGRATION_UP_FAILED").Errorf("boom")}
		_, err := runMigrateCmd(t, m, dbEnv, "up")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
		assert.Equal(t, []string{"up", "close"}, m.calls)
	})

	t.Run("close failure is reported", func(t *testing.T) {
		m := &fakeMigrator{closeErr: errors.New("close failed")}
		_, err := runMigrateCmd(t, m, dbEnv, "up")
		require.Error(t, err)
	})

	t.Run("open failure", func(t *testing.T) {
		resetGlobals(t)
		cmd := newMigrateCmd(func(string) (migrator, error) {
			return nil, errors.New("bad url")
		}, dbEnv)
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"up"})

		err := cmd.Execute()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	})
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "negative parses", input: "-1", wantVersion: -1},
		{name: "leading whitespace", input: "  42", wantVersion: 42},
		{name: "non-numeric", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}
