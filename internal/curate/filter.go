// SPDX-License-Identifier: MIT

// Package curate decides which playlist entries are in scope and attaches
// their canonical keys.
package curate

import (
	"context"
	"strings"
	"unicode"

	xglog "github.com/ManuGH/xgcurate/internal/log"
	"github.com/ManuGH/xgcurate/internal/m3u"
	"github.com/ManuGH/xgcurate/internal/normalize"
)

// Channel is an in-scope playlist entry. It is immutable after Apply returns.
type Channel struct {
	RawID string // tvg-id as found in the playlist, may be empty
	Name  string
	URL   string
	Key   string // canonical key of Name
	IDKey string // canonical key of RawID, empty when RawID is empty
	Entry m3u.Entry
}

// Stats counts the outcome of one Apply call.
type Stats struct {
	Examined  int
	Kept      int
	Excluded  int
	Unmatched int // not excluded, but no include rule matched
}

// Filter applies Rules to playlist entries.
type Filter struct {
	policy   Policy
	include  *Keywords
	exclude  *Keywords
	suffixes []string
	scripts  []*unicode.RangeTable
	norm     *normalize.Normalizer
}

// NewFilter compiles rules. norm may be nil to use the default normalizer.
func NewFilter(rules Rules, norm *normalize.Normalizer) (*Filter, error) {
	policy, err := ParsePolicy(string(rules.Policy))
	if err != nil {
		return nil, err
	}
	include, err := CompileKeywords(rules.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := CompileKeywords(rules.Exclude)
	if err != nil {
		return nil, err
	}
	scripts, err := compileScripts(rules.Scripts)
	if err != nil {
		return nil, err
	}
	if norm == nil {
		norm = normalize.New(normalize.Options{})
	}

	f := &Filter{
		policy:  policy,
		include: include,
		exclude: exclude,
		scripts: scripts,
		norm:    norm,
	}
	for _, s := range rules.IDSuffixes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			f.suffixes = append(f.suffixes, s)
		}
	}
	return f, nil
}

// Excluded reports whether any exclude keyword matches one of texts.
func (f *Filter) Excluded(texts ...string) bool {
	return f.exclude.Match(texts...)
}

// Apply returns the in-scope channels in input order. Exclusion is checked
// first and wins over every include rule. Duplicate keys are kept.
func (f *Filter) Apply(ctx context.Context, entries []m3u.Entry) ([]Channel, Stats) {
	logger := xglog.WithComponentFromContext(ctx, "curate")

	var stats Stats
	out := make([]Channel, 0, len(entries))
	for _, e := range entries {
		stats.Examined++

		if f.exclude.Match(e.Header) {
			stats.Excluded++
			continue
		}
		if f.policy == PolicyInclude && !f.included(e) {
			stats.Unmatched++
			continue
		}

		out = append(out, Channel{
			RawID: e.TvgID,
			Name:  e.Name,
			URL:   e.URL,
			Key:   f.norm.Key(e.Name),
			IDKey: f.norm.Key(e.TvgID),
			Entry: e,
		})
	}
	stats.Kept = len(out)

	logger.Info().
		Str(xglog.FieldEvent, "playlist.filtered").
		Str("policy", string(f.policy)).
		Int(xglog.FieldExamined, stats.Examined).
		Int(xglog.FieldKept, stats.Kept).
		Int("excluded", stats.Excluded).
		Int("unmatched", stats.Unmatched).
		Msg("playlist filtered")

	return out, stats
}

func (f *Filter) included(e m3u.Entry) bool {
	if f.include.Match(e.Header) {
		return true
	}
	if id := strings.ToLower(e.TvgID); id != "" {
		for _, s := range f.suffixes {
			if strings.HasSuffix(id, s) {
				return true
			}
		}
	}
	return containsScript(e.Name, f.scripts)
}
