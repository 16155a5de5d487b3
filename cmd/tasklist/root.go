// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tasklist/tasklist/internal/config"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

const defaultEnvFile = ".env"

// NewRootCmd creates the root command for the tasklist CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasklist",
		Short: "Tasklist - accounts, sessions and todo lists over HTTP",
		Long: `Tasklist serves account sign-up, sign-in and password reset with
signed session tokens, plus a per-user todo list, backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded into the environment if present")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig reads configuration for cmd using the global flags.
func loadConfig(cmd *cobra.Command, getenv func(string) string) (*config.Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	//nolint:wrapcheck // config errors carry their own codes
	return config.Load(config.LoadOptions{
		File:    configFile,
		Flags:   cmd.Flags(),
		EnvFile: envFile,
		Getenv:  getenv,
	})
}
