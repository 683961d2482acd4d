// SPDX-License-Identifier: MIT

// Package jobs runs one curation pass: fetch the playlist and guides,
// filter and reconcile, then replace both artifacts.
package jobs

import (
	"errors"
	"time"

	"github.com/ManuGH/xgcurate/internal/curate"
	"github.com/ManuGH/xgcurate/internal/epg"
	"github.com/ManuGH/xgcurate/internal/source"
)

// ErrPlaylistUnavailable is returned when the playlist cannot be fetched
// or read. Nothing is written in that case.
var ErrPlaylistUnavailable = errors.New("playlist unavailable")

// MetricsRecorder receives run metrics. *metrics.Recorder implements it.
type MetricsRecorder interface {
	RecordPlaylist(examined, kept, excluded, unmatched int)
	RecordGuideChannels(source string, outcomes map[string]int)
	RecordMatch(source, tier string, n int)
	RecordProgrammes(source string, outcomes map[string]int)
	RecordFetch(kind, source string, size int64, d time.Duration, err error)
	ObserveStage(stage string, d time.Duration)
	IncFailure(stage string)
	RecordArtifact(artifact string, size int64)
	MarkSuccess(at time.Time)
}

// Options carries the collaborators of a run. The zero value is usable.
type Options struct {
	// Fetcher overrides the source fetcher built from the configuration.
	Fetcher *source.Fetcher
	// Metrics receives run metrics. Nil records nothing.
	Metrics MetricsRecorder
	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time
}

// SourceResult is the outcome of one guide source.
type SourceResult struct {
	Name       string
	Bytes      int64
	Channels   epg.ChannelStats
	Programmes epg.ProgrammeStats
	// Err is set when the source was skipped. A source that failed in
	// Pass 2 still contributed its channel records.
	Err error
}

// Result summarizes a run.
type Result struct {
	JobID        string
	PlaylistPath string
	GuidePath    string

	Playlist      curate.Stats
	PlaylistBytes int64
	// UnmatchedPlaylist counts kept playlist channels no guide channel
	// resolved to.
	UnmatchedPlaylist int

	Sources         []SourceResult
	GuideChannels   int
	GuideProgrammes int
	GuideBytes      int64
	// GuideWritten is false when every guide source failed and the previous
	// guide artifact was left in place.
	GuideWritten bool

	Warnings  []string
	StartTime time.Time
	Duration  time.Duration
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
