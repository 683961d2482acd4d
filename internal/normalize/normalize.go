// SPDX-License-Identifier: MIT

// Package normalize turns channel identifiers and display names into
// canonical comparison keys.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	unorm "golang.org/x/text/unicode/norm"
)

// DefaultTokens are the technical markers stripped when no token list is configured.
var DefaultTokens = []string{"hd", "fhd", "uhd", "sd", "4k", "8k", "hdr", "hevc", "h264", "h265"}

var (
	// "MBC1.ae@SD", "Rotana Cinema@HD" -> trailing variant annotation
	variant = regexp.MustCompile(`@[\p{L}\p{N}_\-]*$`)
	country = regexp.MustCompile(`^[a-z]{2}$`)
)

// Options controls which parts of an identifier are considered noise.
type Options struct {
	// Tokens are stripped when they appear as whole words (case-insensitive).
	Tokens []string
	// StripCountrySuffix removes a trailing ".<cc>" country code before
	// comparison ("mbc1.ae" -> "mbc1"). Off by default: the suffix is often
	// the only thing telling two same-named channels apart.
	StripCountrySuffix bool
	// CountrySuffixes restricts StripCountrySuffix to the listed codes.
	// Empty means any two-letter suffix.
	CountrySuffixes []string
}

// Normalizer computes canonical keys. It is immutable and safe for concurrent use.
type Normalizer struct {
	tokens        map[string]struct{}
	stripCountry  bool
	countryFilter map[string]struct{}
}

// New builds a Normalizer from opts. A nil Tokens slice selects DefaultTokens;
// an empty non-nil slice disables token stripping.
func New(opts Options) *Normalizer {
	tokens := opts.Tokens
	if tokens == nil {
		tokens = DefaultTokens
	}
	n := &Normalizer{
		tokens:       make(map[string]struct{}, len(tokens)),
		stripCountry: opts.StripCountrySuffix,
	}
	for _, t := range tokens {
		if t = Token(t); t != "" {
			n.tokens[t] = struct{}{}
		}
	}
	if len(opts.CountrySuffixes) > 0 {
		n.countryFilter = make(map[string]struct{}, len(opts.CountrySuffixes))
		for _, c := range opts.CountrySuffixes {
			c = strings.TrimPrefix(Token(c), ".")
			if c != "" {
				n.countryFilter[c] = struct{}{}
			}
		}
	}
	return n
}

var defaultNormalizer = New(Options{})

// Key normalizes s with the default options.
func Key(s string) string {
	return defaultNormalizer.Key(s)
}

// Key maps a raw identifier or display name to its canonical comparison key:
// lowercase, variant annotations and technical tokens removed, diacritics
// folded, and every rune that is not a letter or digit dropped.
//
// The empty string is returned for empty input and must never be used as a
// match key. Key is idempotent: Key(Key(x)) == Key(x).
func (n *Normalizer) Key(s string) string {
	s = Token(unorm.NFC.String(s))
	if s == "" {
		return ""
	}

	for {
		before := s
		s = strings.TrimSpace(variant.ReplaceAllString(s, ""))
		if s == before {
			break
		}
	}

	words := splitWords(foldDiacritics(s))
	kept := make([]word, 0, len(words))
	for _, w := range words {
		if _, noise := n.tokens[w.text]; !noise {
			kept = append(kept, w)
		}
	}
	// A name consisting only of tokens ("4K") is still a name.
	if len(kept) == 0 {
		kept = words
	}
	// The country code is judged after token removal so "MBC1.ae HD" and
	// "MBC1.ae@SD" strip the same way.
	if last := len(kept) - 1; n.stripCountry && last > 0 {
		if w := kept[last]; w.dotted && country.MatchString(w.text) && n.countryAllowed(w.text) {
			kept = kept[:last]
		}
	}

	var b strings.Builder
	for _, w := range kept {
		b.WriteString(w.text)
	}
	// Joining can create new compositions (Hangul jamo) at word boundaries.
	return unorm.NFC.String(b.String())
}

// word is a run of letters and digits. dotted is set when the rune right
// before it is a '.'.
type word struct {
	text   string
	dotted bool
}

func splitWords(s string) []word {
	var (
		out   []word
		start = -1
		prev  rune
		dot   bool
	)
	for i, r := range s {
		alnum := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case alnum && start < 0:
			start, dot = i, prev == '.'
		case !alnum && start >= 0:
			out = append(out, word{text: s[start:i], dotted: dot})
			start = -1
		}
		prev = r
	}
	if start >= 0 {
		out = append(out, word{text: s[start:], dotted: dot})
	}
	return out
}

func (n *Normalizer) countryAllowed(cc string) bool {
	if len(n.countryFilter) == 0 {
		return true
	}
	_, ok := n.countryFilter[cc]
	return ok
}

func foldDiacritics(s string) string {
	t := transform.Chain(unorm.NFD, runes.Remove(runes.In(unicode.Mn)), unorm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Token normalizes a string token for matching:
// - trims Unicode whitespace + invisible edge characters
// - lowercases for case-insensitive comparisons
func Token(s string) string {
	return strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) ||
			r == '\u200B' || // Zero Width Space
			r == '\u200C' || // Zero Width Non-Joiner
			r == '\u200D' || // Zero Width Joiner
			r == '\uFEFF' // Zero Width Non-Breaking Space (BOM)
	}))
}
