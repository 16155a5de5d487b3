// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tasklist Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tasklist/tasklist/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration serve would use, after applying defaults,
the config file and flags. Secrets are shown only as set or unset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runConfig(cmd *cobra.Command, getenv func(string) string) error {
	cfg, err := loadConfig(cmd, getenv)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return oops.Code("CONFIG_RENDER_FAILED").Wrap(err)
	}
	cmd.Print(string(out))

	if err := cfg.Validate(); err != nil {
		cmd.PrintErrln("configuration is invalid:", err)
		return err
	}
	return nil
}
