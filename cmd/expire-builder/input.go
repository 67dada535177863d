// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/osmgo/tileexpire/ewkb"
)

// NewDecompressingReader wraps r with the decompressor matching the
// stream's magic bytes. Plain text passes through untouched. Brotli has
// no magic, so it is tried last, only when the stream cannot be the
// start of a hex geometry dump.
func NewDecompressingReader(r io.Reader) (io.Reader, error) {
	buffered := bufio.NewReaderSize(r, 1<<16)
	magic, err := buffered.Peek(6)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		return gzip.NewReader(buffered)
	case len(magic) >= 3 && magic[0] == 'B' && magic[1] == 'Z' && magic[2] == 'h':
		return bzip2.NewReader(buffered, &bzip2.ReaderConfig{})
	case len(magic) >= 6 && string(magic) == "\xfd7zXZ\x00":
		return xz.NewReader(buffered)
	case len(magic) >= 4 && magic[0] == 0x28 && magic[1] == 0xb5 && magic[2] == 0x2f && magic[3] == 0xfd:
		zr, err := zstd.NewReader(buffered)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case len(magic) >= 1 && !isDumpStart(magic[0]):
		return brotli.NewReader(buffered), nil
	default:
		return buffered, nil
	}
}

// isDumpStart reports whether b can open a plain geometry dump: a line
// starting with a decimal OSM id (possibly negative for areas derived
// from relations), a "#" comment or an empty line.
func isDumpStart(b byte) bool {
	return b >= '0' && b <= '9' || b == '-' || b == '#' || b == '\n'
}

func newGeometryScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// EWKB multipolygons of large relations exceed bufio's default line
	// limit by far.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return scanner
}

// ParseGeometryLine splits one dump line into the OSM id and the decoded
// geometry. Empty lines and comments yield an error the caller logs and
// skips.
func ParseGeometryLine(line string) (int64, []byte, error) {
	if line == "" || strings.HasPrefix(line, "#") {
		return 0, nil, fmt.Errorf("not a geometry line: %q", line)
	}
	id, hexWKB, found := strings.Cut(line, "\t")
	if !found {
		return 0, nil, fmt.Errorf("no tab separator in line %q", truncateForLog(line))
	}
	osmID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("bad OSM id in line %q: %w", truncateForLog(line), err)
	}
	wkb, err := ewkb.FromHex(hexWKB)
	if err != nil {
		return 0, nil, fmt.Errorf("OSM id %d: %w", osmID, err)
	}
	return osmID, wkb, nil
}

func truncateForLog(line string) string {
	if len(line) > 40 {
		return line[:40] + "…"
	}
	return line
}
