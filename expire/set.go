// SPDX-License-Identifier: MIT

// Package expire computes the set of slippy-map tiles that must be
// re-rendered after map features changed. Modified geometries are
// rasterized onto the tile grid at a maximum zoom level; at the end of a
// run the accumulated set is written out for every zoom level between a
// requested minimum and the maximum, with enclosing tiles derived on the
// fly from the quadkey encoding.
package expire

import (
	"fmt"
	"log"
	"slices"
)

// tileExpiryLeeway is how many tiles worth of space to leave on either
// side of a changed feature, as a fraction of one tile.
const tileExpiryLeeway = 0.1

var logger *log.Logger

// SetLogger directs the engine's warnings (unknown geometry types,
// unreadable geometries) to l. Warnings are dropped while no logger is
// set. FileWriter reports open failures on stderr, not through l.
func SetLogger(l *log.Logger) { logger = l }

func logf(format string, args ...interface{}) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// TileWriter receives the dirty tiles during output. The production
// implementation is FileWriter; tests collect into a CollectingWriter.
type TileWriter interface {
	WriteTile(x, y, zoom uint32) error
}

// Set accumulates the IDs of dirty tiles at the maximum zoom level.
// Lower-zoom tiles are not stored; they are derived during output.
//
// A Set is not safe for concurrent use. Build one Set per worker and
// combine them with MergeAndDestroy on the owning goroutine.
type Set struct {
	maxzoom   uint32
	mapWidth  uint32
	tileWidth float64
	maxBBox   float64
	proj      Projection

	// Tile most recently inserted, so that scan-line rasterization can
	// skip the hash lookup for runs of identical tiles.
	lastTileX uint32
	lastTileY uint32

	dirty map[Quadkey]struct{}
}

// New creates a Set expiring tiles at zoom level maxzoom. maxBBox is the
// bounding-box size (in units of proj's SRS) above which a polygon is
// considered broken and only its ring outlines are expired. A maxzoom of
// zero disables the engine; every operation becomes a no-op.
func New(maxzoom uint32, maxBBox float64, proj Projection) *Set {
	s := &Set{
		maxzoom: maxzoom,
		maxBBox: maxBBox,
		proj:    proj,
		dirty:   make(map[Quadkey]struct{}),
	}
	if maxzoom > 0 {
		s.mapWidth = 1 << maxzoom
		s.tileWidth = EarthCircumference / float64(s.mapWidth)
		s.lastTileX = s.mapWidth + 1
		s.lastTileY = s.mapWidth + 1
	}
	return s
}

// Len returns the number of dirty tiles at maxzoom.
func (s *Set) Len() int { return len(s.dirty) }

// expireTile marks a single tile at maxzoom as dirty. Coordinates outside
// the tile grid are dropped.
func (s *Set) expireTile(x, y uint32) {
	if x >= s.mapWidth || y >= s.mapWidth {
		return
	}
	// Skip the set insert if the last inserted tile was the same one.
	if s.lastTileX == x && s.lastTileY == y {
		return
	}
	s.dirty[MakeQuadkey(x, y, s.maxzoom)] = struct{}{}
	s.lastTileX = x
	s.lastTileY = y
}

// MergeAndDestroy moves the dirty tiles of other into s, leaving other
// empty. Both sets must have been created for the same zoom level.
func (s *Set) MergeAndDestroy(other *Set) error {
	if s.mapWidth != other.mapWidth {
		return fmt.Errorf(
			"expire: cannot merge tile expiry sets with different map widths: %d != %d",
			s.mapWidth, other.mapWidth)
	}
	if s.tileWidth != other.tileWidth {
		return fmt.Errorf(
			"expire: cannot merge tile expiry sets with different tile widths: %g != %g",
			s.tileWidth, other.tileWidth)
	}
	if len(s.dirty) == 0 {
		s.dirty, other.dirty = other.dirty, s.dirty
		return nil
	}
	for q := range other.dirty {
		s.dirty[q] = struct{}{}
	}
	clear(other.dirty)
	return nil
}

// OutputAndDestroy writes every dirty tile for all zoom levels from
// minzoom up to maxzoom and empties the set. Tiles are emitted in
// ascending quadkey order per zoom level, interleaved across levels;
// each tile appears at most once.
func (s *Set) OutputAndDestroy(w TileWriter, minzoom uint32) error {
	if minzoom > s.maxzoom {
		panic(fmt.Sprintf("expire: minzoom %d exceeds maxzoom %d", minzoom, s.maxzoom))
	}

	tiles := make([]Quadkey, 0, len(s.dirty))
	for q := range s.dirty {
		tiles = append(tiles, q)
	}
	slices.Sort(tiles)
	s.dirty = make(map[Quadkey]struct{})

	// Sorted quadkeys place all children of one coarser tile next to each
	// other, so comparing against the previously emitted quadkey's
	// ancestor is enough to emit every enclosing tile exactly once.
	// The initial value is larger than any valid quadkey at maxzoom.
	last := Quadkey(1) << (2 * s.maxzoom)
	for _, q := range tiles {
		for dz := uint32(0); dz <= s.maxzoom-minzoom; dz++ {
			current := q.Ancestor(dz)
			if current == last.Ancestor(dz) {
				continue
			}
			x, y := current.XY(s.maxzoom - dz)
			if err := w.WriteTile(x, y, s.maxzoom-dz); err != nil {
				return err
			}
		}
		last = q
	}
	return nil
}
