// SPDX-License-Identifier: MIT

package epg

import (
	"context"
	"io"
	"strings"

	xglog "github.com/ManuGH/xgcurate/internal/log"
	"github.com/ManuGH/xgcurate/internal/reconcile"
)

// Resolver maps guide channels onto curated playlist channels.
type Resolver interface {
	Resolve(id string, names []string) (reconcile.Match, bool)
	CanonicalID(m reconcile.Match, guideID string) string
}

// Discovered is a guide channel that resolved to a playlist channel.
type Discovered struct {
	GuideID     string
	CanonicalID string
	Match       reconcile.Match
	Record      Channel
}

// ChannelStats counts Pass 1 outcomes for one source.
type ChannelStats struct {
	Examined   int
	Kept       int
	Malformed  int
	Duplicates int
	Excluded   int
	Unmatched  int
	Tiers      map[reconcile.Tier]int
}

// SourceChannels is the Pass 1 result for one guide source, in document
// order.
type SourceChannels struct {
	Source   string
	Header   Header
	Channels []Discovered
	Stats    ChannelStats
}

// DiscoverChannels is Pass 1: it scans every <channel> of r, skipping
// programmes, and keeps the ones res resolves. Channels without an id are
// counted as malformed. A guide id seen twice in one source keeps the first
// record.
func DiscoverChannels(ctx context.Context, r io.Reader, res Resolver) (*SourceChannels, error) {
	logger := xglog.WithComponentFromContext(ctx, "epg")

	out := &SourceChannels{Stats: ChannelStats{Tiers: make(map[reconcile.Tier]int)}}
	seen := make(map[string]struct{})

	hdr, err := Scan(ctx, r, Visitor{
		Channel: func(ch *Channel) error {
			out.Stats.Examined++

			id := strings.TrimSpace(ch.ID)
			if id == "" {
				out.Stats.Malformed++
				logger.Debug().Str(xglog.FieldEvent, "guide.channel.malformed").Strs("names", ch.Names()).Msg("channel without id")
				return nil
			}
			if _, dup := seen[id]; dup {
				out.Stats.Duplicates++
				return nil
			}
			seen[id] = struct{}{}

			m, ok := res.Resolve(id, ch.Names())
			if !ok {
				if m.Tier == reconcile.TierExcluded {
					out.Stats.Excluded++
				} else {
					out.Stats.Unmatched++
				}
				return nil
			}

			out.Stats.Tiers[m.Tier]++
			out.Channels = append(out.Channels, Discovered{
				GuideID:     id,
				CanonicalID: res.CanonicalID(m, id),
				Match:       m,
				Record:      *ch,
			})
			return nil
		},
	})
	out.Header = hdr
	out.Stats.Kept = len(out.Channels)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// KeptSet is the merged Pass 1 result: guide id to canonical output id,
// plus the channel records to emit. It is read-only once merging is done.
type KeptSet struct {
	ids      map[string]string
	byIndex  map[int]string
	emitted  map[string]struct{}
	channels []Channel
}

// NewKeptSet returns an empty set.
func NewKeptSet() *KeptSet {
	return &KeptSet{
		ids:     make(map[string]string),
		byIndex: make(map[int]string),
		emitted: make(map[string]struct{}),
	}
}

// Merge folds Pass 1 results into the set. Sources must be passed in
// configured order: the first source to claim a guide id or a playlist
// channel decides its canonical id, and a canonical id is emitted once.
// Nil sources (failed fetches) are skipped.
func (k *KeptSet) Merge(sources ...*SourceChannels) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, d := range src.Channels {
			if _, ok := k.ids[d.GuideID]; ok {
				continue
			}
			canon, ok := k.byIndex[d.Match.Index]
			if !ok {
				canon = d.CanonicalID
				k.byIndex[d.Match.Index] = canon
			}
			k.ids[d.GuideID] = canon

			if _, ok := k.emitted[canon]; ok {
				continue
			}
			k.emitted[canon] = struct{}{}
			rec := d.Record
			rec.ID = canon
			k.channels = append(k.channels, rec)
		}
	}
}

// Lookup returns the canonical id for a guide channel id.
func (k *KeptSet) Lookup(guideID string) (string, bool) {
	canon, ok := k.ids[strings.TrimSpace(guideID)]
	return canon, ok
}

// CanonicalFor returns the canonical id assigned to the playlist channel at
// index, if any guide channel matched it.
func (k *KeptSet) CanonicalFor(index int) (string, bool) {
	canon, ok := k.byIndex[index]
	return canon, ok
}

// Channels returns the channel records to emit, ids already rewritten.
func (k *KeptSet) Channels() []Channel {
	return k.channels
}

// Len returns the number of guide ids mapped.
func (k *KeptSet) Len() int {
	return len(k.ids)
}

// Lookup resolves guide channel ids during Pass 2.
type Lookup interface {
	Lookup(guideID string) (string, bool)
}

// ProgrammeStats counts Pass 2 outcomes for one source.
type ProgrammeStats struct {
	Examined  int
	Kept      int
	Dropped   int // channel not kept
	Untitled  int
	Malformed int
}

// ExtractProgrammes is Pass 2: it scans every <programme> of r, skipping
// channels, and emits the ones whose channel is in kept and that carry a
// non-blank title, with the channel attribute rewritten to the canonical id.
func ExtractProgrammes(ctx context.Context, r io.Reader, kept Lookup, emit func(*Programme) error) (ProgrammeStats, error) {
	var stats ProgrammeStats

	_, err := Scan(ctx, r, Visitor{
		Programme: func(p *Programme) error {
			stats.Examined++

			if strings.TrimSpace(p.Channel) == "" || strings.TrimSpace(p.Start) == "" {
				stats.Malformed++
				return nil
			}
			canon, ok := kept.Lookup(p.Channel)
			if !ok {
				stats.Dropped++
				return nil
			}
			if !p.HasTitle() {
				stats.Untitled++
				return nil
			}

			p.Channel = canon
			if err := emit(p); err != nil {
				return err
			}
			stats.Kept++
			return nil
		},
	})
	return stats, err
}
