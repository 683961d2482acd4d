// SPDX-License-Identifier: MIT

// Package net classifies and sanitizes source locations.
package net

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
// Playlist URLs commonly carry credentials in the query string.
func SanitizeURL(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		return rawURL
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	parsedURL.Fragment = ""
	return parsedURL.String()
}

// Kind tells how a location is read.
type Kind int

const (
	KindHTTP Kind = iota + 1
	KindFile
)

// Location is a parsed source location.
type Location struct {
	Kind Kind
	URL  *url.URL // set for KindHTTP
	Path string   // set for KindFile
}

// ParseLocation accepts http(s) URLs, file:// URLs and plain paths.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(s, "://") {
		return Location{Kind: KindFile, Path: filepath.Clean(s)}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return Location{}, fmt.Errorf("invalid location %q: %w", SanitizeURL(s), err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return Location{}, fmt.Errorf("location %q has no host", SanitizeURL(s))
		}
		return Location{Kind: KindHTTP, URL: u}, nil
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return Location{}, fmt.Errorf("location %q has no path", s)
		}
		return Location{Kind: KindFile, Path: filepath.FromSlash(p)}, nil
	default:
		return Location{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}
