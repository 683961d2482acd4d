// SPDX-License-Identifier: MIT

package epg

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// DefaultGenerator is written as generator-info-name on the output root.
const DefaultGenerator = "xgcurate"

const (
	xmlProlog = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	doctype   = `<!DOCTYPE tv SYSTEM "xmltv.dtd">` + "\n"
)

var (
	// ErrChannelAfterProgramme is returned when a channel record is written
	// once programme records have started.
	ErrChannelAfterProgramme = errors.New("channel written after programmes")
	errWriterClosed          = errors.New("xmltv writer closed")
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	Compress     bool
	Generator    string
	GeneratorURL string
	// Source is the root of the guide the channels came from. Its
	// SourceAttrs are carried over to the output root.
	Source Header
}

// SourceAttrs are the <tv> attributes that describe where guide data comes
// from and survive filtering.
var SourceAttrs = []string{"source-info-name", "source-info-url", "source-data-url"}

// Writer streams an XMLTV document: channels first, then programmes.
// It does not close the underlying writer.
type Writer struct {
	bw         *bufio.Writer
	gz         *gzip.Writer
	programmes bool
	closed     bool
	channels   int
}

// NewWriter writes the document prolog and the opening <tv> element.
func NewWriter(w io.Writer, opts WriterOptions) (*Writer, error) {
	xw := &Writer{}
	if opts.Compress {
		xw.gz = gzip.NewWriter(w)
		w = xw.gz
	}
	xw.bw = bufio.NewWriterSize(w, 64*1024)

	gen := opts.Generator
	if gen == "" {
		gen = DefaultGenerator
	}
	attrs := []xml.Attr{{Name: xml.Name{Local: "generator-info-name"}, Value: gen}}
	if opts.GeneratorURL != "" {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "generator-info-url"}, Value: opts.GeneratorURL})
	}
	for _, name := range SourceAttrs {
		if v := opts.Source.Attr(name); v != "" {
			attrs = append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: v})
		}
	}

	if _, err := io.WriteString(xw.bw, xmlProlog+doctype+"<tv"); err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if _, err := io.WriteString(xw.bw, " "+a.Name.Local+`="`); err != nil {
			return nil, err
		}
		if err := xml.EscapeText(xw.bw, []byte(a.Value)); err != nil {
			return nil, err
		}
		if _, err := io.WriteString(xw.bw, `"`); err != nil {
			return nil, err
		}
	}
	if _, err := io.WriteString(xw.bw, ">\n"); err != nil {
		return nil, err
	}
	return xw, nil
}

// HasSourceInfo reports whether h carries any of SourceAttrs.
func (h Header) HasSourceInfo() bool {
	for _, name := range SourceAttrs {
		if h.Attr(name) != "" {
			return true
		}
	}
	return false
}

// WriteChannel appends a channel record.
func (w *Writer) WriteChannel(ch *Channel) error {
	if w.closed {
		return errWriterClosed
	}
	if w.programmes {
		return ErrChannelAfterProgramme
	}
	if err := encodeRecord(w.bw, ch); err != nil {
		return fmt.Errorf("encode channel %q: %w", ch.ID, err)
	}
	w.channels++
	return nil
}

// WriteProgramme appends a programme record.
func (w *Writer) WriteProgramme(p *Programme) error {
	if w.closed {
		return errWriterClosed
	}
	w.programmes = true
	return EncodeProgramme(w.bw, p)
}

// AppendProgrammes copies programme records previously encoded with
// EncodeProgramme.
func (w *Writer) AppendProgrammes(r io.Reader) (int64, error) {
	if w.closed {
		return 0, errWriterClosed
	}
	w.programmes = true
	return io.Copy(w.bw, r)
}

// Channels returns the number of channel records written.
func (w *Writer) Channels() int {
	return w.channels
}

// Close ends the document and flushes buffered and compressed data.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if _, err := io.WriteString(w.bw, "</tv>\n"); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

// EncodeProgramme writes one indented programme record followed by a
// newline, in the form the Writer emits.
func EncodeProgramme(w io.Writer, p *Programme) error {
	if err := encodeRecord(w, p); err != nil {
		return fmt.Errorf("encode programme for %q: %w", p.Channel, err)
	}
	return nil
}

func encodeRecord(w io.Writer, v any) error {
	b, err := xml.MarshalIndent(v, "  ", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
