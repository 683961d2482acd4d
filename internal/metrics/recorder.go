// SPDX-License-Identifier: MIT

// Package metrics records curation run metrics on a private Prometheus
// registry, exported as a node_exporter textfile after each run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "xgcurate"

// Recorder holds the collectors of one run. A nil *Recorder records nothing.
type Recorder struct {
	reg *prometheus.Registry

	playlistChannels *prometheus.GaugeVec
	guideChannels    *prometheus.GaugeVec
	guideMatches     *prometheus.GaugeVec
	programmes       *prometheus.GaugeVec
	fetchTotal       *prometheus.CounterVec
	fetchBytes       *prometheus.GaugeVec
	fetchDuration    *prometheus.HistogramVec
	stageDuration    *prometheus.GaugeVec
	failures         *prometheus.CounterVec
	artifactBytes    *prometheus.GaugeVec
	lastSuccess      prometheus.Gauge
	buildInfo        *prometheus.GaugeVec
}

// New creates a Recorder on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,
		playlistChannels: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playlist_channels",
			Help:      "Playlist entries of the last run by outcome",
		}, []string{"outcome"}), // outcome=examined|kept|excluded|unmatched
		guideChannels: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guide_channels",
			Help:      "Guide channels of the last run per source by outcome",
		}, []string{"source", "outcome"}),
		guideMatches: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guide_matches",
			Help:      "Guide channels resolved per source by matching tier",
		}, []string{"source", "tier"}),
		programmes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guide_programmes",
			Help:      "Programmes of the last run per source by outcome",
		}, []string{"source", "outcome"}),
		fetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Source fetches by kind and outcome",
		}, []string{"kind", "outcome"}), // kind=playlist|guide outcome=success|error
		fetchBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_bytes",
			Help:      "Size of the spooled source body",
		}, []string{"source"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Source fetch duration",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		stageDuration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each run stage",
		}, []string{"stage"}), // stage=playlist|discover|extract|write|total
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failures by stage",
		}, []string{"stage"}),
		artifactBytes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Size of the written artifacts",
		}, []string{"artifact"}), // artifact=playlist|guide
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote both artifacts",
		}),
		buildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		}, []string{"version"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// SetBuildInfo records the running version.
func (r *Recorder) SetBuildInfo(version string) {
	if r == nil {
		return
	}
	r.buildInfo.WithLabelValues(version).Set(1)
}

// RecordPlaylist records the playlist filter outcome.
func (r *Recorder) RecordPlaylist(examined, kept, excluded, unmatched int) {
	if r == nil {
		return
	}
	r.playlistChannels.WithLabelValues("examined").Set(float64(examined))
	r.playlistChannels.WithLabelValues("kept").Set(float64(kept))
	r.playlistChannels.WithLabelValues("excluded").Set(float64(excluded))
	r.playlistChannels.WithLabelValues("unmatched").Set(float64(unmatched))
}

// RecordGuideChannels records one source's channel outcome counts.
func (r *Recorder) RecordGuideChannels(source string, outcomes map[string]int) {
	if r == nil {
		return
	}
	for outcome, n := range outcomes {
		r.guideChannels.WithLabelValues(source, outcome).Set(float64(n))
	}
}

// RecordMatch records how many guide channels of source resolved through tier.
func (r *Recorder) RecordMatch(source, tier string, n int) {
	if r == nil {
		return
	}
	r.guideMatches.WithLabelValues(source, tier).Set(float64(n))
}

// RecordProgrammes records one source's programme outcome counts.
func (r *Recorder) RecordProgrammes(source string, outcomes map[string]int) {
	if r == nil {
		return
	}
	for outcome, n := range outcomes {
		r.programmes.WithLabelValues(source, outcome).Set(float64(n))
	}
}

// RecordFetch records one fetch. size is ignored when err is non-nil.
func (r *Recorder) RecordFetch(kind, source string, size int64, d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.fetchTotal.WithLabelValues(kind, outcome).Inc()
	r.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err == nil {
		r.fetchBytes.WithLabelValues(source).Set(float64(size))
	}
}

// ObserveStage records the duration of a run stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// IncFailure counts a failure in stage.
func (r *Recorder) IncFailure(stage string) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(stage).Inc()
}

// RecordArtifact records the size of a written artifact.
func (r *Recorder) RecordArtifact(artifact string, size int64) {
	if r == nil {
		return
	}
	r.artifactBytes.WithLabelValues(artifact).Set(float64(size))
}

// MarkSuccess sets the last-success timestamp.
func (r *Recorder) MarkSuccess(at time.Time) {
	if r == nil {
		return
	}
	r.lastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
