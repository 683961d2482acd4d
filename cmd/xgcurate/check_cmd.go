// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xgcurate/internal/config"
	"github.com/ManuGH/xgcurate/internal/version"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration without fetching anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Load applies strict YAML parsing and validation
			cfg, err := config.NewLoader(opts.configPath, version.Version).Load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			name := opts.configPath
			if name == "" {
				name = "environment configuration"
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "✓ %s is valid\n", name)
			_, _ = fmt.Fprintf(out, "  policy %s, %d guide source(s), output %s\n",
				cfg.Filter.Policy, len(cfg.Guides), cfg.Output.Dir)
			return nil
		},
	}
}
