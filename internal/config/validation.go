// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/xgcurate/internal/curate"
	"github.com/ManuGH/xgcurate/internal/platform/paths"
	"github.com/ManuGH/xgcurate/internal/validate"
)

// Validate checks a loaded configuration. All problems are reported at
// once as a validate.ValidationError wrapped in ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Location("playlist.url", cfg.Playlist.URL)

	if len(cfg.Guides) == 0 {
		v.AddError("guides", "at least one guide source is required", nil)
	}
	names := make(map[string]struct{}, len(cfg.Guides))
	for i, g := range cfg.Guides {
		field := fmt.Sprintf("guides[%d]", i)
		v.Location(field+".url", g.URL)
		if _, dup := names[g.Name]; dup {
			v.AddError(field+".name", "duplicate guide name", g.Name)
		}
		names[g.Name] = struct{}{}
	}

	v.NotEmpty("output.dir", cfg.Output.Dir)
	v.Custom("output.playlist", cfg.Output.Playlist, func(any) error {
		_, err := paths.PlaylistPath(cfg.Output.Dir, cfg.Output.Playlist)
		return err
	})
	v.Custom("output.guide", cfg.Output.Guide, func(any) error {
		_, err := paths.GuidePath(cfg.Output.Dir, cfg.Output.Guide)
		return err
	})
	v.OneOf("output.compress", cfg.Output.Compress, []string{CompressAuto, CompressAlways, CompressNever})
	if cfg.Output.GuideURL != "" {
		v.URL("output.guide_url", cfg.Output.GuideURL, []string{"http", "https"})
	}
	if cfg.Output.GeneratorURL != "" {
		v.URL("output.generator_url", cfg.Output.GeneratorURL, []string{"http", "https"})
	}

	v.PositiveDuration("fetch.timeout", cfg.Fetch.Timeout)
	v.PositiveDuration("fetch.playlist_timeout", cfg.Fetch.PlaylistTimeout)
	v.Range("fetch.retries", cfg.Fetch.Retries, 0, 10)
	if cfg.Fetch.Rate < 0 {
		v.AddError("fetch.rate", "rate cannot be negative", cfg.Fetch.Rate)
	}
	v.NonNegative("guide.parallelism", cfg.Guide.Parallelism)

	if cfg.Filter.Policy == "" {
		v.AddError("filter.policy", fmt.Sprintf("policy must be set explicitly to %q or %q", curate.PolicyInclude, curate.PolicyKeepAll), "")
	} else {
		v.Custom("filter", cfg.Filter, func(any) error {
			_, err := curate.NewFilter(cfg.Filter.Rules(), nil)
			return err
		})
	}

	v.NonNegative("match.min_contain_len", cfg.Match.MinContainLen)
	for legacy, target := range cfg.Match.Identifiers {
		if strings.TrimSpace(legacy) == "" || strings.TrimSpace(target) == "" {
			v.AddError("match.identifiers", "identifier map entries need a key and a target", legacy)
		}
	}

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}
	v.OneOf("log.format", cfg.Log.Format, []string{"json", "console"})

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.sampling_rate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
