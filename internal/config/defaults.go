// SPDX-License-Identifier: MIT

package config

import (
	"time"

	"github.com/ManuGH/xgcurate/internal/reconcile"
)

const (
	defaultFetchTimeout    = 10 * time.Minute
	defaultPlaylistTimeout = 30 * time.Second
	defaultRetries         = 2
)

// Defaults returns the configuration used before the file and environment
// are applied. The filter policy has no default.
func Defaults() AppConfig {
	return AppConfig{
		Output: OutputConfig{
			Dir:      ".",
			Playlist: "curated.m3u",
			Guide:    "guide.xml.gz",
			Compress: CompressAuto,
		},
		Fetch: FetchConfig{
			Timeout:         defaultFetchTimeout,
			PlaylistTimeout: defaultPlaylistTimeout,
			Retries:         defaultRetries,
		},
		Match: MatchConfig{
			MinContainLen: reconcile.DefaultMinContainLen,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "http",
			SamplingRate: 1.0,
		},
	}
}
