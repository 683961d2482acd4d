// SPDX-License-Identifier: MIT

// Package playlist writes the curated M3U playlist.
package playlist

import (
	"bytes"
	"io"

	"github.com/ManuGH/xgcurate/internal/m3u"
)

// Item is one curated playlist entry.
type Item struct {
	Entry m3u.Entry
	// TvgID is the canonical id written into the header. Empty leaves the
	// original header untouched.
	TvgID string
}

// Options controls the playlist header.
type Options struct {
	// Header is the source #EXTM3U line, kept with its attributes.
	Header string
	// GuideURL replaces x-tvg-url on the header when set.
	GuideURL string
}

// WriteM3U writes items in order. Each entry keeps its original #EXTINF
// line, directive lines and URL; only tvg-id is rewritten.
func WriteM3U(w io.Writer, items []Item, opts Options) error {
	buf := &bytes.Buffer{}

	header := opts.Header
	if header == "" {
		header = "#EXTM3U"
	}
	if opts.GuideURL != "" {
		header = m3u.SetHeaderAttr(header, "x-tvg-url", opts.GuideURL)
	}
	buf.WriteString(header + "\n")

	for _, it := range items {
		line := it.Entry.Header
		if it.TvgID != "" {
			line = m3u.SetAttr(line, "tvg-id", it.TvgID)
		}
		buf.WriteString(line + "\n")
		for _, extra := range it.Entry.Extra {
			buf.WriteString(extra + "\n")
		}
		buf.WriteString(it.Entry.URL + "\n")
	}

	_, err := io.Copy(w, buf)
	return err
}
