// SPDX-License-Identifier: MIT

package epg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"

	"github.com/ManuGH/xgcurate/internal/source"
)

// ErrNotXMLTV is returned when a stream does not have a <tv> root element.
var ErrNotXMLTV = errors.New("not an XMLTV document")

// cancelCheckInterval is how many records Scan decodes between context checks.
const cancelCheckInterval = 1024

// Visitor receives decoded records. A nil callback skips that record kind
// without decoding it. A callback error aborts the scan and is returned as is.
type Visitor struct {
	Channel   func(*Channel) error
	Programme func(*Programme) error
}

// Scan streams an XMLTV document, gzip-compressed or not, decoding one
// record at a time. Only the current record is held in memory.
func Scan(ctx context.Context, r io.Reader, v Visitor) (Header, error) {
	var hdr Header

	rc, err := source.Decompress(r)
	if err != nil {
		return hdr, err
	}
	defer func() { _ = rc.Close() }()

	dec := newDecoder(rc)

	root := false
	seen := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if !root {
				return hdr, ErrNotXMLTV
			}
			return hdr, nil
		}
		if err != nil {
			return hdr, fmt.Errorf("decode xmltv: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !root {
			if se.Name.Local != "tv" {
				return hdr, fmt.Errorf("%w: root element <%s>", ErrNotXMLTV, se.Name.Local)
			}
			root = true
			hdr.Attrs = append([]xml.Attr(nil), se.Attr...)
			continue
		}

		seen++
		if seen%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return hdr, err
			}
		}

		switch {
		case se.Name.Local == "channel" && v.Channel != nil:
			var ch Channel
			if err := dec.DecodeElement(&ch, &se); err != nil {
				return hdr, fmt.Errorf("decode channel: %w", err)
			}
			compact(ch.Extra)
			if err := v.Channel(&ch); err != nil {
				return hdr, err
			}
		case se.Name.Local == "programme" && v.Programme != nil:
			var p Programme
			if err := dec.DecodeElement(&p, &se); err != nil {
				return hdr, fmt.Errorf("decode programme: %w", err)
			}
			compact(p.Extra)
			if err := v.Programme(&p); err != nil {
				return hdr, err
			}
		default:
			if err := dec.Skip(); err != nil {
				return hdr, fmt.Errorf("decode xmltv: %w", err)
			}
		}
	}
}

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	// Accept named HTML entities. DTD-declared entities are never expanded.
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}
