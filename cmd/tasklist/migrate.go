// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tasklist/tasklist/internal/store"
)

// migrator is the part of store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (*store.Status, error)
	Close() error
}

// migratorFactory opens a migrator for a database URL.
type migratorFactory func(databaseURL string) (migrator, error)

func defaultMigratorFactory(databaseURL string) (migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		//nolint:wrapcheck // store errors carry their own codes
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigratorFactory, nil)
}

func newMigrateCmd(open migratorFactory, getenv func(string) string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL migrations.`,
	}

	run := func(action func(cmd *cobra.Command, m migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, open, getenv, action)
		}
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all by default)",
		RunE: run(func(cmd *cobra.Command, m migrator) error {
			if steps > 0 {
				cmd.Printf("Rolling back %d migration(s)...\n", steps)
				//nolint:wrapcheck // store errors carry their own codes
				return m.Steps(-steps)
			}
			cmd.Println("Rolling back all migrations...")
			//nolint:wrapcheck // store errors carry their own codes
			return m.Down()
		}),
	}
	down.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back (0 = all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(cmd *cobra.Command, m migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					//nolint:wrapcheck // store errors carry their own codes
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			}),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: run(func(cmd *cobra.Command, m migrator) error {
				status, err := m.Status()
				if err != nil {
					//nolint:wrapcheck // store errors carry their own codes
					return err
				}
				printStatus(cmd, status)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the migration version without running migrations (clears dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return withMigrator(cmd, open, getenv, func(cmd *cobra.Command, m migrator) error {
					if err := m.Force(version); err != nil {
						//nolint:wrapcheck // store errors carry their own codes
						return err
					}
					cmd.Printf("Forced migration version to %d\n", version)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, open migratorFactory, getenv func(string) string, action func(*cobra.Command, migrator) error) (err error) {
	cfg, err := loadConfig(cmd, getenv)
	if err != nil {
		return err
	}
	databaseURL, err := cfg.DatabaseURL()
	if err != nil {
		//nolint:wrapcheck // config errors carry their own codes
		return err
	}

	m, err := open(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return action(cmd, m)
}

// parseForceVersion parses the force argument. Negative versions are rejected
// by the migrator, not here.
func parseForceVersion(arg string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(arg), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Errorf("version must be an integer")
	}
	return version, nil
}

func printStatus(cmd *cobra.Command, status *store.Status) {
	switch {
	case status.Current == 0 && !status.Dirty:
		cmd.Println("Current version: none")
	case status.Dirty:
		cmd.Printf("Current version: %d (dirty)\n", status.Current)
	default:
		cmd.Printf("Current version: %d\n", status.Current)
	}
	for _, m := range status.Applied {
		cmd.Printf("  [applied] %s\n", m.Name)
	}
	for _, m := range status.Pending {
		cmd.Printf("  [pending] %s\n", m.Name)
	}
}
