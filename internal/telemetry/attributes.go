// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the pipeline.
const (
	// Job attributes
	JobIDKey     = "job.id"
	JobStatusKey = "job.status"

	// Source attributes
	SourceNameKey = "source.name"
	SourceKindKey = "source.kind"
	SourceURLKey  = "source.url"
	SourceSizeKey = "source.bytes"

	// Playlist attributes
	PlaylistExaminedKey = "playlist.examined"
	PlaylistKeptKey     = "playlist.kept"

	// Guide attributes
	GuideSourcesKey    = "guide.sources"
	GuideChannelsKey   = "guide.channels"
	GuideProgrammesKey = "guide.programmes"

	// Error attributes
	ErrorTypeKey = "error.type"
)

// SourceAttributes creates source-related span attributes. url must
// already be sanitized.
func SourceAttributes(name, kind, url string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if name != "" {
		attrs = append(attrs, attribute.String(SourceNameKey, name))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(SourceKindKey, kind))
	}
	if url != "" {
		attrs = append(attrs, attribute.String(SourceURLKey, url))
	}
	return attrs
}

// PlaylistAttributes creates playlist filter span attributes.
func PlaylistAttributes(examined, kept int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(PlaylistExaminedKey, examined),
		attribute.Int(PlaylistKeptKey, kept),
	}
}

// GuideAttributes creates guide merge span attributes.
func GuideAttributes(sources, channels int, programmes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(GuideSourcesKey, sources),
		attribute.Int(GuideChannelsKey, channels),
		attribute.Int64(GuideProgrammesKey, programmes),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(id, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, id),
		attribute.String(JobStatusKey, status),
	}
}
