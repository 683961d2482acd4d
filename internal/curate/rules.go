// SPDX-License-Identifier: MIT

package curate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Policy decides what happens to a playlist entry that no include rule matched.
type Policy string

const (
	// PolicyInclude keeps only entries an include rule matched.
	PolicyInclude Policy = "include"
	// PolicyKeepAll keeps every entry that is not excluded. Meant for
	// fully-curated single-language sources.
	PolicyKeepAll Policy = "keep-all"
)

// ErrInvalidRules is returned by NewFilter for unusable rule sets.
var ErrInvalidRules = errors.New("invalid filter rules")

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyInclude, PolicyKeepAll:
		return p, nil
	case "":
		return "", fmt.Errorf("%w: policy must be set to %q or %q", ErrInvalidRules, PolicyInclude, PolicyKeepAll)
	default:
		return "", fmt.Errorf("%w: unknown policy %q", ErrInvalidRules, s)
	}
}

// Rules is the configured inclusion/exclusion policy.
type Rules struct {
	Policy     Policy
	Include    []string // keywords matched against the full header text
	Exclude    []string // keywords matched against the full header text; dominate Include
	IDSuffixes []string // tvg-id suffixes such as ".ae"
	Scripts    []string // Unicode script names such as "Arabic", matched against the display name
}

// Keywords is a compiled keyword list. Plain entries match as
// case-insensitive substrings; entries written as /expr/ are
// case-insensitive regular expressions.
type Keywords struct {
	plain []string
	exprs []*regexp.Regexp
}

// CompileKeywords compiles a keyword list. Blank entries are ignored.
func CompileKeywords(list []string) (*Keywords, error) {
	k := &Keywords{}
	for _, raw := range list {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			continue
		}
		if len(kw) > 2 && strings.HasPrefix(kw, "/") && strings.HasSuffix(kw, "/") {
			re, err := regexp.Compile("(?i)" + kw[1:len(kw)-1])
			if err != nil {
				return nil, fmt.Errorf("%w: keyword %q: %v", ErrInvalidRules, raw, err)
			}
			k.exprs = append(k.exprs, re)
			continue
		}
		k.plain = append(k.plain, strings.ToLower(kw))
	}
	return k, nil
}

// Empty reports whether the list has no usable entries.
func (k *Keywords) Empty() bool {
	return k == nil || (len(k.plain) == 0 && len(k.exprs) == 0)
}

// Match reports whether any keyword matches any of the texts.
func (k *Keywords) Match(texts ...string) bool {
	if k.Empty() {
		return false
	}
	for _, text := range texts {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, kw := range k.plain {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		for _, re := range k.exprs {
			if re.MatchString(text) {
				return true
			}
		}
	}
	return false
}

func compileScripts(names []string) ([]*unicode.RangeTable, error) {
	tables := make([]*unicode.RangeTable, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		table, ok := lookupScript(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown script %q", ErrInvalidRules, name)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func lookupScript(name string) (*unicode.RangeTable, bool) {
	if t, ok := unicode.Scripts[name]; ok {
		return t, true
	}
	for k, t := range unicode.Scripts {
		if strings.EqualFold(k, name) {
			return t, true
		}
	}
	return nil, false
}

func containsScript(s string, tables []*unicode.RangeTable) bool {
	if len(tables) == 0 {
		return false
	}
	for _, r := range s {
		if unicode.IsOneOf(tables, r) {
			return true
		}
	}
	return false
}
