// SPDX-License-Identifier: MIT

package source

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = [2]byte{0x1f, 0x8b}

// Decompress returns r unchanged unless it starts with the gzip magic
// bytes, in which case it returns a decompressing reader. Concatenated gzip
// members are read as one stream.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	head, err := br.Peek(2)
	if err != nil || head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		return io.NopCloser(br), nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	return gz, nil
}
