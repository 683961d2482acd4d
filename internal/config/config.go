// SPDX-License-Identifier: MIT

// Package config loads the curation policy and run settings from YAML and
// the environment.
package config

import (
	"time"

	"github.com/ManuGH/xgcurate/internal/curate"
	"github.com/ManuGH/xgcurate/internal/normalize"
	"github.com/ManuGH/xgcurate/internal/platform/paths"
	"github.com/ManuGH/xgcurate/internal/reconcile"
)

// AppConfig is the complete run configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Playlist  PlaylistConfig  `yaml:"playlist"`
	Guides    []GuideSource   `yaml:"guides"`
	Output    OutputConfig    `yaml:"output"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Guide     GuideConfig     `yaml:"guide"`
	Filter    FilterConfig    `yaml:"filter"`
	Match     MatchConfig     `yaml:"match"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PlaylistConfig locates the source playlist.
type PlaylistConfig struct {
	URL string `yaml:"url"`
}

// GuideSource is one XMLTV feed. Order matters: earlier sources win when
// two of them describe the same channel.
type GuideSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Compression modes for the guide artifact.
const (
	CompressAuto   = "auto"
	CompressAlways = "always"
	CompressNever  = "never"
)

// OutputConfig names the artifacts.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Playlist string `yaml:"playlist"`
	Guide    string `yaml:"guide"`
	// Compress is auto (gzip when Guide ends in .gz), always or never.
	Compress string `yaml:"compress"`
	// GuideURL, when set, is written as x-tvg-url on the playlist header.
	GuideURL string `yaml:"guide_url"`
	// Generator and GeneratorURL are written as generator-info-name and
	// generator-info-url on the guide root.
	Generator    string `yaml:"generator"`
	GeneratorURL string `yaml:"generator_url"`
}

// FetchConfig controls downloads.
type FetchConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	PlaylistTimeout time.Duration `yaml:"playlist_timeout"`
	Retries         int           `yaml:"retries"`
	UserAgent       string        `yaml:"user_agent"`
	Rate            float64       `yaml:"rate"`
	SpoolDir        string        `yaml:"spool_dir"`
}

// GuideConfig controls the guide passes.
type GuideConfig struct {
	// Parallelism bounds concurrent source workers. Zero means one per source.
	Parallelism int `yaml:"parallelism"`
}

// FilterConfig is the playlist inclusion/exclusion policy.
type FilterConfig struct {
	Policy     string   `yaml:"policy"`
	Include    []string `yaml:"include"`
	Exclude    []string `yaml:"exclude"`
	IDSuffixes []string `yaml:"id_suffixes"`
	Scripts    []string `yaml:"scripts"`
}

// Rules converts the section for the playlist filter.
func (f FilterConfig) Rules() curate.Rules {
	return curate.Rules{
		Policy:     curate.Policy(f.Policy),
		Include:    f.Include,
		Exclude:    f.Exclude,
		IDSuffixes: f.IDSuffixes,
		Scripts:    f.Scripts,
	}
}

// MatchConfig tunes identifier normalization and resolution.
type MatchConfig struct {
	// Tokens replaces the built-in quality/technical tokens. Unset keeps the
	// defaults; an empty list strips none.
	Tokens             []string          `yaml:"tokens"`
	StripCountrySuffix bool              `yaml:"strip_country_suffix"`
	CountrySuffixes    []string          `yaml:"country_suffixes"`
	MinContainLen      int               `yaml:"min_contain_len"`
	Identifiers        map[string]string `yaml:"identifiers"`
}

// NormalizeOptions converts the section for the normalizer.
func (m MatchConfig) NormalizeOptions() normalize.Options {
	return normalize.Options{
		Tokens:             m.Tokens,
		StripCountrySuffix: m.StripCountrySuffix,
		CountrySuffixes:    m.CountrySuffixes,
	}
}

// ResolverOptions converts the section for the reconciler.
func (m MatchConfig) ResolverOptions(exclude *curate.Keywords) reconcile.Options {
	return reconcile.Options{
		Identifiers:   m.Identifiers,
		MinContainLen: m.MinContainLen,
		Exclude:       exclude,
	}
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// CompressGuide reports whether the guide artifact is gzip-compressed.
func (o OutputConfig) CompressGuide() bool {
	switch o.Compress {
	case CompressAlways:
		return true
	case CompressNever:
		return false
	default:
		return paths.IsGzip(o.Guide)
	}
}
