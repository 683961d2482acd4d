// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldJobID     = "job_id"
	FieldComponent = "component"
	FieldEvent     = "event"

	// Source fields
	FieldSource = "source"
	FieldURL    = "url"
	FieldPath   = "path"
	FieldBytes  = "bytes"

	// Matching fields
	FieldGuideID     = "guide_id"
	FieldCanonicalID = "canonical_id"
	FieldTier        = "tier"

	// Counters
	FieldExamined   = "examined"
	FieldKept       = "kept"
	FieldChannels   = "channels"
	FieldProgrammes = "programmes"
)
