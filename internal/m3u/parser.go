// SPDX-License-Identifier: MIT

// Package m3u reads extended M3U playlists.
package m3u

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

const (
	headerTag = "#EXTM3U"
	entryTag  = "#EXTINF:"
)

// attributeRegex matches M3U attributes in the format key="value"
var attributeRegex = regexp.MustCompile(`([a-zA-Z0-9_-]+)="([^"]*)"`)

// Entry represents a single channel from the M3U playlist: an #EXTINF
// header paired with the URL line that follows it.
type Entry struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	TvgID  string `json:"tvg_id"`
	Logo   string `json:"logo"`
	Group  string `json:"group"`
	URL    string `json:"url"`

	Header string   `json:"-"` // Raw EXTINF line
	Extra  []string `json:"-"` // Directive lines between header and URL (#EXTVLCOPT, #EXTGRP, ...)
	Line   int      `json:"-"` // 1-based line number of the header
}

// Attr returns the value of the named header attribute (case-insensitive key).
func (e Entry) Attr(key string) (string, bool) {
	for _, m := range attributeRegex.FindAllStringSubmatch(e.Header, -1) {
		if strings.EqualFold(m[1], key) {
			return m[2], true
		}
	}
	return "", false
}

// Playlist is a parsed playlist in wire order.
type Playlist struct {
	Header    string // the #EXTM3U line including its attributes, if present
	Entries   []Entry
	Malformed int // headers without URL and URLs without header
}

// Parse reads M3U content from r. A header with no following URL line is
// dropped and counted in Malformed; it is not an error.
func Parse(r io.Reader) (*Playlist, error) {
	pl := &Playlist{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		current *Entry
		lineNum int
	)
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, headerTag):
			if pl.Header == "" {
				pl.Header = line
			}
		case strings.HasPrefix(line, entryTag):
			if current != nil {
				pl.Malformed++
			}
			e := parseHeader(line)
			e.Line = lineNum
			current = &e
		case strings.HasPrefix(line, "#"):
			if current != nil {
				current.Extra = append(current.Extra, line)
			}
		default:
			if current == nil {
				pl.Malformed++
				continue
			}
			current.URL = line
			pl.Entries = append(pl.Entries, *current)
			current = nil
		}
	}
	if current != nil {
		pl.Malformed++
	}
	if err := sc.Err(); err != nil {
		return pl, err
	}
	return pl, nil
}

// ParseString parses M3U content held in memory.
func ParseString(content string) *Playlist {
	// Only a line longer than the scanner limit can fail here; the entries
	// read up to that point are kept.
	pl, _ := Parse(strings.NewReader(content))
	return pl
}

// parseHeader parses an EXTINF line:
// #EXTINF:-1 tvg-id="..." tvg-name="..." tvg-logo="..." group-title="..." tvg-chno="...",Display Name
func parseHeader(line string) Entry {
	e := Entry{Header: line}
	rest := line
	var tvgName string

	for _, m := range attributeRegex.FindAllStringSubmatch(line, -1) {
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "tvg-id":
			e.TvgID = value
		case "tvg-chno", "channel-number":
			e.Number = value
		case "tvg-name":
			tvgName = value
		case "tvg-logo":
			e.Logo = value
		case "group-title":
			e.Group = value
		}
		rest = strings.Replace(rest, m[0], "", 1)
	}

	// Name is after the first comma once attributes are removed, so commas
	// inside quoted attribute values do not split the name.
	if _, name, ok := strings.Cut(rest, ","); ok {
		e.Name = strings.TrimSpace(name)
	}
	if e.Name == "" {
		e.Name = tvgName
	}
	return e
}

// SetAttr returns header with attribute key set to value. An existing
// attribute is replaced in place; a missing one is inserted after the
// duration field.
func SetAttr(header, key, value string) string {
	value = strings.ReplaceAll(value, `"`, "")
	for _, loc := range attributeRegex.FindAllStringSubmatchIndex(header, -1) {
		if strings.EqualFold(header[loc[2]:loc[3]], key) {
			return header[:loc[4]] + value + header[loc[5]:]
		}
	}

	attr := key + `="` + value + `"`
	body := strings.TrimPrefix(header, entryTag)
	// Duration ends at the first space or comma.
	cut := strings.IndexAny(body, " ,")
	if cut < 0 {
		return entryTag + body + " " + attr + ","
	}
	return entryTag + body[:cut] + " " + attr + body[cut:]
}

// SetHeaderAttr returns the #EXTM3U line with attribute key set to value,
// replacing an existing one or appending it.
func SetHeaderAttr(line, key, value string) string {
	if line == "" {
		line = headerTag
	}
	value = strings.ReplaceAll(value, `"`, "")
	for _, loc := range attributeRegex.FindAllStringSubmatchIndex(line, -1) {
		if strings.EqualFold(line[loc[2]:loc[3]], key) {
			return line[:loc[4]] + value + line[loc[5]:]
		}
	}
	return strings.TrimRight(line, " ") + " " + key + `="` + value + `"`
}
