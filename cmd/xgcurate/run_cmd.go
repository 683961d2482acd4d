// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ManuGH/xgcurate/internal/config"
	"github.com/ManuGH/xgcurate/internal/jobs"
	xglog "github.com/ManuGH/xgcurate/internal/log"
	"github.com/ManuGH/xgcurate/internal/metrics"
	"github.com/ManuGH/xgcurate/internal/telemetry"
	"github.com/ManuGH/xgcurate/internal/version"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch sources and write the curated playlist and guide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(opts.configPath, version.Version).Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return runOnce(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}

func runOnce(ctx context.Context, out io.Writer, cfg config.AppConfig) error {
	// Re-configure logger with loaded configuration
	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Service: "xgcurate",
		Version: cfg.Version,
	})
	logger := xglog.WithComponent("cli")

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "xgcurate",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		// The run context may be canceled already; spans still need flushing.
		if serr := provider.Shutdown(context.WithoutCancel(ctx)); serr != nil {
			logger.Warn().Err(serr).Str(xglog.FieldEvent, "telemetry.shutdown_failed").Msg("failed to flush traces")
		}
	}()

	rec := metrics.New()
	rec.SetBuildInfo(cfg.Version)
	defer func() {
		if werr := rec.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn().Err(werr).Str(xglog.FieldEvent, "metrics.write_failed").Str(xglog.FieldPath, cfg.Metrics.Textfile).Msg("failed to write metrics textfile")
		}
	}()

	res, err := jobs.Run(ctx, cfg, jobs.Options{Metrics: rec})
	if err != nil {
		return err
	}
	printSummary(out, res)
	return nil
}

func printSummary(out io.Writer, res *jobs.Result) {
	_, _ = fmt.Fprintf(out, "playlist: %s (%d channels, %d without guide)\n",
		res.PlaylistPath, res.Playlist.Kept, res.UnmatchedPlaylist)
	if res.GuideWritten {
		_, _ = fmt.Fprintf(out, "guide:    %s (%d channels, %d programmes, %d bytes)\n",
			res.GuidePath, res.GuideChannels, res.GuideProgrammes, res.GuideBytes)
	} else {
		_, _ = fmt.Fprintf(out, "guide:    %s (unchanged)\n", res.GuidePath)
	}
	for _, s := range res.Sources {
		if s.Err != nil {
			_, _ = fmt.Fprintf(out, "skipped:  %s: %v\n", s.Name, s.Err)
		}
	}
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(out, "warning:  %s\n", w)
	}
}
