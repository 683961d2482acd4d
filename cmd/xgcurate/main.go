// SPDX-License-Identifier: MIT

// xgcurate builds a curated M3U playlist and a matching XMLTV guide from
// provider feeds.
//
// Usage:
//
//	xgcurate run --config config.yaml
//	xgcurate check --config config.yaml
//	xgcurate version
//
// Exit codes:
//   - 0: success
//   - 1: configuration invalid, playlist unavailable or artifacts not written
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	xglog "github.com/ManuGH/xgcurate/internal/log"
	"github.com/ManuGH/xgcurate/internal/version"
)

const envConfigPath = "XGC_CONFIG"

func main() {
	// Configure logger with safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "xgcurate",
		Version: version.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "xgcurate",
		Short:         "Curate an IPTV playlist and its XMLTV guide",
		Long:          "xgcurate filters a provider playlist by policy, reconciles guide channel ids against it and writes a curated playlist plus a filtered guide.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(envConfigPath),
		"path to YAML configuration file (env "+envConfigPath+")")

	root.AddCommand(
		newRunCmd(opts),
		newCheckCmd(opts),
		newVersionCmd(),
	)
	return root
}
