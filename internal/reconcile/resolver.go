// SPDX-License-Identifier: MIT

// Package reconcile decides which in-scope playlist channel a guide channel
// represents.
package reconcile

import (
	"sort"
	"strings"

	"github.com/ManuGH/xgcurate/internal/curate"
	"github.com/ManuGH/xgcurate/internal/normalize"
)

// Tier names the rule that produced (or rejected) a match. Lower tiers win.
type Tier int

const (
	TierNone Tier = iota
	TierManual
	TierExact
	TierDisplayName
	TierContainment
	TierExcluded
)

func (t Tier) String() string {
	switch t {
	case TierManual:
		return "manual"
	case TierExact:
		return "exact"
	case TierDisplayName:
		return "display_name"
	case TierContainment:
		return "containment"
	case TierExcluded:
		return "excluded"
	default:
		return "none"
	}
}

// DefaultMinContainLen is the shortest key allowed to take part in
// containment matching.
const DefaultMinContainLen = 3

// Options configures a Resolver.
type Options struct {
	// Identifiers maps known-bad or legacy identifiers to their
	// authoritative replacement. Keys match raw and by canonical key.
	Identifiers map[string]string
	// MinContainLen guards containment matching against short keys
	// ("tv" is contained in everything). Zero selects DefaultMinContainLen.
	MinContainLen int
	// Exclude rejects guide channels whose id or display names match,
	// even when they would resolve.
	Exclude *curate.Keywords
}

// Match is a successful resolution.
type Match struct {
	Channel *curate.Channel
	Index   int // position in the filtered playlist
	Tier    Tier
}

// Resolver maps guide channels onto filtered playlist channels. It is
// read-only after New and safe for concurrent use.
type Resolver struct {
	channels []curate.Channel
	norm     *normalize.Normalizer

	byRawID map[string]int
	byKey   map[string]int
	byIDKey map[string]int

	manualRaw map[string]string
	manualKey map[string]string

	minContain int
	exclude    *curate.Keywords
}

// New indexes channels. Ties inside a tier always go to the channel that
// comes first in channels, so indexes keep the first writer.
func New(channels []curate.Channel, norm *normalize.Normalizer, opts Options) *Resolver {
	if norm == nil {
		norm = normalize.New(normalize.Options{})
	}
	r := &Resolver{
		channels:   channels,
		norm:       norm,
		byRawID:    make(map[string]int, len(channels)),
		byKey:      make(map[string]int, len(channels)),
		byIDKey:    make(map[string]int, len(channels)),
		manualRaw:  make(map[string]string, len(opts.Identifiers)),
		manualKey:  make(map[string]string, len(opts.Identifiers)),
		minContain: opts.MinContainLen,
		exclude:    opts.Exclude,
	}
	if r.minContain <= 0 {
		r.minContain = DefaultMinContainLen
	}

	for i, ch := range channels {
		if id := strings.TrimSpace(ch.RawID); id != "" {
			setFirst(r.byRawID, id, i)
		}
		setFirst(r.byKey, ch.Key, i)
		setFirst(r.byIDKey, ch.IDKey, i)
	}

	// Sorted so that two legacy ids normalizing to the same key resolve the
	// same way on every run.
	legacy := make([]string, 0, len(opts.Identifiers))
	for k := range opts.Identifiers {
		legacy = append(legacy, k)
	}
	sort.Strings(legacy)
	for _, k := range legacy {
		target := strings.TrimSpace(opts.Identifiers[k])
		k = strings.TrimSpace(k)
		if k == "" || target == "" {
			continue
		}
		if _, ok := r.manualRaw[k]; !ok {
			r.manualRaw[k] = target
		}
		if key := norm.Key(k); key != "" {
			if _, ok := r.manualKey[key]; !ok {
				r.manualKey[key] = target
			}
		}
	}
	return r
}

func setFirst(m map[string]int, key string, i int) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = i
	}
}

// Channels returns the indexed playlist channels.
func (r *Resolver) Channels() []curate.Channel {
	return r.channels
}

// Resolve returns the playlist channel that the guide channel id/names
// represents. Tiers are tried in order: manual override, exact canonical
// key, display name, containment. The returned Tier is TierExcluded when an
// exclude keyword rejected the guide channel and TierNone when nothing matched.
func (r *Resolver) Resolve(id string, names []string) (Match, bool) {
	if r.exclude.Match(id) || r.exclude.Match(names...) {
		return Match{Index: -1, Tier: TierExcluded}, false
	}

	key := r.norm.Key(id)

	if target, ok := r.Override(id); ok {
		if i, ok := r.lookupTarget(target); ok {
			return r.match(i, TierManual), true
		}
	}

	if key != "" {
		if i, ok := first(r.byKey, r.byIDKey, key); ok {
			return r.match(i, TierExact), true
		}
	}

	best := -1
	for _, name := range names {
		if i, ok := r.byKey[r.norm.Key(name)]; ok && (best < 0 || i < best) {
			best = i
		}
	}
	if best >= 0 {
		return r.match(best, TierDisplayName), true
	}

	if len([]rune(key)) >= r.minContain {
		for i := range r.channels {
			ck := r.channels[i].Key
			if len([]rune(ck)) < r.minContain {
				continue
			}
			if strings.Contains(key, ck) || strings.Contains(ck, key) {
				return r.match(i, TierContainment), true
			}
		}
	}

	return Match{Index: -1, Tier: TierNone}, false
}

// Override returns the configured replacement for id, matched raw first and
// then by canonical key.
func (r *Resolver) Override(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if target, ok := r.manualRaw[id]; ok {
		return target, true
	}
	if key := r.norm.Key(id); key != "" {
		if target, ok := r.manualKey[key]; ok {
			return target, true
		}
	}
	return "", false
}

// CanonicalID is the identifier written to both artifacts for a matched
// channel: the playlist's own tvg-id (after manual override) when it has
// one, otherwise the guide id it was matched through.
func (r *Resolver) CanonicalID(m Match, guideID string) string {
	if m.Channel == nil {
		return guideID
	}
	if raw := strings.TrimSpace(m.Channel.RawID); raw != "" {
		if target, ok := r.Override(raw); ok {
			return target
		}
		return raw
	}
	if target, ok := r.Override(guideID); ok {
		return target
	}
	return guideID
}

func (r *Resolver) lookupTarget(target string) (int, bool) {
	best := -1
	if i, ok := r.byRawID[target]; ok {
		best = i
	}
	if i, ok := first(r.byIDKey, r.byKey, r.norm.Key(target)); ok && (best < 0 || i < best) {
		best = i
	}
	return best, best >= 0
}

func first(a, b map[string]int, key string) (int, bool) {
	if key == "" {
		return 0, false
	}
	i, okA := a[key]
	j, okB := b[key]
	switch {
	case okA && okB:
		return min(i, j), true
	case okA:
		return i, true
	case okB:
		return j, true
	}
	return 0, false
}

func (r *Resolver) match(i int, tier Tier) Match {
	return Match{Channel: &r.channels[i], Index: i, Tier: tier}
}
