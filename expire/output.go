// SPDX-License-Identifier: MIT

package expire

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// FileWriter appends dirty tiles to a file, one "z/x/y" line per tile.
// The file is opened for appending so that lists from earlier runs are
// preserved. When the file cannot be opened, a warning is printed to
// stderr once and all writes become no-ops: losing one run's expiry list
// is preferable to failing the import.
//
// The extension picks the compression: ".gz", ".zst" and ".br" write
// gzip, zstd and brotli streams, anything else plain text.
type FileWriter struct {
	file       *os.File
	compressor io.WriteCloser
	w          *bufio.Writer
	count      uint32
}

// NewFileWriter opens (or creates) the tile list at path.
func NewFileWriter(path string) *FileWriter {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"Failed to open expired tiles file (%v). Tile expiry list will not be written!\n",
			err)
		return &FileWriter{}
	}

	fw := &FileWriter{file: file}
	switch {
	case strings.HasSuffix(path, ".gz"):
		fw.compressor = gzip.NewWriter(file)
		fw.w = bufio.NewWriter(fw.compressor)
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			fmt.Fprintf(os.Stderr,
				"Failed to open expired tiles file (%v). Tile expiry list will not be written!\n",
				err)
			return &FileWriter{}
		}
		fw.compressor = zw
		fw.w = bufio.NewWriter(fw.compressor)
	case strings.HasSuffix(path, ".br"):
		fw.compressor = brotli.NewWriter(file)
		fw.w = bufio.NewWriter(fw.compressor)
	default:
		fw.w = bufio.NewWriter(file)
	}
	return fw
}

// WriteTile appends one tile to the list.
func (f *FileWriter) WriteTile(x, y, zoom uint32) error {
	if f.w == nil {
		return nil
	}
	if _, err := fmt.Fprintf(f.w, "%d/%d/%d\n", zoom, x, y); err != nil {
		return err
	}
	f.count++
	return nil
}

// Count returns how many tiles have been written.
func (f *FileWriter) Count() uint32 { return f.count }

// Close flushes buffers, finishes the compression stream and closes the
// file.
func (f *FileWriter) Close() error {
	if f.w == nil {
		return nil
	}
	if err := f.w.Flush(); err != nil {
		return err
	}
	if f.compressor != nil {
		if err := f.compressor.Close(); err != nil {
			return err
		}
	}
	return f.file.Close()
}

// Tile is one emitted tile, used by CollectingWriter.
type Tile struct {
	X    uint32
	Y    uint32
	Zoom uint32
}

// CollectingWriter gathers emitted tiles in memory. Tests use it in place
// of a FileWriter.
type CollectingWriter struct {
	Tiles []Tile
}

func (c *CollectingWriter) WriteTile(x, y, zoom uint32) error {
	c.Tiles = append(c.Tiles, Tile{X: x, Y: y, Zoom: zoom})
	return nil
}
