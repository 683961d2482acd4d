// SPDX-License-Identifier: MIT

// Package epg filters XMLTV guides down to the channels of a curated
// playlist without holding a whole guide in memory.
package epg

import (
	"encoding/xml"
	"strings"
)

// Header carries the attributes of a source guide's <tv> root element.
type Header struct {
	Attrs []xml.Attr
}

// Attr returns the value of the named root attribute.
func (h Header) Attr(name string) string {
	for _, a := range h.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Channel is one <channel> record.
type Channel struct {
	XMLName      xml.Name      `xml:"channel"`
	ID           string        `xml:"id,attr"`
	DisplayNames []DisplayName `xml:"display-name"`
	Icons        []Icon        `xml:"icon"`
	Extra        []Node        `xml:",any"`
}

// Names returns the display name texts in document order.
func (c *Channel) Names() []string {
	out := make([]string, 0, len(c.DisplayNames))
	for _, d := range c.DisplayNames {
		if v := strings.TrimSpace(d.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// DisplayName is a localized channel name.
type DisplayName struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Icon is a channel logo reference.
type Icon struct {
	Src    string `xml:"src,attr"`
	Width  string `xml:"width,attr,omitempty"`
	Height string `xml:"height,attr,omitempty"`
}

// Programme is one <programme> record. Children other than titles,
// sub-titles and descriptions are carried through untouched in Extra, in
// document order.
type Programme struct {
	XMLName   xml.Name   `xml:"programme"`
	Start     string     `xml:"start,attr"`
	Stop      string     `xml:"stop,attr,omitempty"`
	Channel   string     `xml:"channel,attr"`
	Attrs     []xml.Attr `xml:",any,attr"`
	Titles    []Title    `xml:"title"`
	SubTitles []Title    `xml:"sub-title"`
	Descs     []Title    `xml:"desc"`
	Extra     []Node     `xml:",any"`
}

// HasTitle reports whether at least one title carries non-whitespace text.
func (p *Programme) HasTitle() bool {
	for _, t := range p.Titles {
		if strings.TrimSpace(t.Value) != "" {
			return true
		}
	}
	return false
}

// Title is a localized text element (title, sub-title, desc).
type Title struct {
	// Lang contains the language code for the title (optional).
	Lang string `xml:"lang,attr,omitempty"`
	// Value is the character data of the title element.
	Value string `xml:",chardata"`
}

// Node is a generic XML element used to carry XMLTV children this package
// does not model.
type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []Node     `xml:",any"`
}

// compact drops the indentation whitespace that surrounds child elements so
// re-encoding does not accumulate it.
func compact(nodes []Node) {
	for i := range nodes {
		n := &nodes[i]
		if len(n.Nodes) > 0 && strings.TrimSpace(n.Text) == "" {
			n.Text = ""
		}
		compact(n.Nodes)
	}
}
