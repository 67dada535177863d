// SPDX-License-Identifier: MIT

package expire

import (
	"context"
	"errors"
	"io"

	"github.com/osmgo/tileexpire/ewkb"
)

// FromWKB expires all tiles covered by the geometry, given as PostGIS
// extended WKB. Unknown geometry types are logged with the OSM id and
// skipped. A no-op while the engine is disabled (maxzoom 0).
func (s *Set) FromWKB(wkb []byte, osmID int64) {
	if s.maxzoom == 0 {
		return
	}

	parse := ewkb.NewParser(wkb)
	switch header := parse.ReadHeader(); header {
	case ewkb.Point:
		s.fromWKBPoint(parse)
	case ewkb.LineString:
		s.fromWKBLine(parse)
	case ewkb.Polygon:
		s.fromWKBPolygon(parse, osmID)
	case ewkb.MultiLineString:
		num := parse.ReadLength()
		for i := uint32(0); i < num && parse.Err() == nil; i++ {
			parse.ReadHeader()
			s.fromWKBLine(parse)
		}
	case ewkb.MultiPolygon:
		num := parse.ReadLength()
		for i := uint32(0); i < num && parse.Err() == nil; i++ {
			parse.ReadHeader()
			s.fromWKBPolygon(parse, osmID)
		}
	default:
		logf("OSM id %d: unknown geometry type %d, cannot expire", osmID, header)
	}
	if err := parse.Err(); err != nil {
		logf("OSM id %d: %v", osmID, err)
	}
}

func (s *Set) fromWKBPoint(wkb *ewkb.Parser) {
	c := wkb.ReadPoint()
	s.FromPoint(c.X, c.Y)
}

func (s *Set) fromWKBLine(wkb *ewkb.Parser) {
	sz := wkb.ReadLength()
	if sz == 0 {
		return
	}
	if sz == 1 {
		s.fromWKBPoint(wkb)
		return
	}
	prev := wkb.ReadPoint()
	for i := uint32(1); i < sz; i++ {
		cur := wkb.ReadPoint()
		if wkb.Err() != nil {
			return
		}
		s.FromLineLonLat(prev.X, prev.Y, cur.X, cur.Y)
		prev = cur
	}
}

func (s *Set) fromWKBPolygon(wkb *ewkb.Parser, osmID int64) {
	numRings := wkb.ReadLength()
	if numRings == 0 {
		return
	}

	start := wkb.SavePos()

	// bounding box of the outer ring, in unprojected coordinates
	numPt := wkb.ReadLength()
	initPt := wkb.ReadPoint()
	min, max := initPt, initPt
	for i := uint32(1); i < numPt && wkb.Err() == nil; i++ {
		c := wkb.ReadPoint()
		if c.X < min.X {
			min.X = c.X
		}
		if c.Y < min.Y {
			min.Y = c.Y
		}
		if c.X > max.X {
			max.X = c.X
		}
		if c.Y > max.Y {
			max.Y = c.Y
		}
	}
	wkb.Rewind(start)
	if wkb.Err() != nil {
		return
	}
	if numPt <= 1 {
		// outer ring degenerate, ignore the whole polygon
		return
	}

	// Polygons wider than maxBBox are treated as broken (antimeridian
	// artifacts, import errors): filling them would expire half the
	// globe, so only the ring outlines are expired.
	if max.X-min.X > s.maxBBox || max.Y-min.Y > s.maxBBox {
		for ring := uint32(0); ring < numRings && wkb.Err() == nil; ring++ {
			s.fromWKBLine(wkb)
		}
		return
	}

	// Project the bounding box corners; min and max latitudes swap
	// because the tile y axis points the other way.
	minX, minY := s.proj.CoordsToTile(min.X, max.Y, s.mapWidth)
	maxX, maxY := s.proj.CoordsToTile(max.X, min.Y, s.mapWidth)

	// A polygon that stays within one tile column has its bounding box
	// expired directly. The scanline below still runs; whatever it emits is
	// a subset and the set deduplicates.
	if tileCoord(minX) == tileCoord(maxX) {
		s.FromBBox(minX, minY, maxX, maxY)
	}

	tiles := NewIntersectingTiles(minX, maxX, s.mapWidth, tileExpiryLeeway)
	for ring := uint32(0); ring < numRings && wkb.Err() == nil; ring++ {
		ringSize := wkb.ReadLength()
		if ringSize <= 1 && ring == 0 {
			// outer ring degenerate, ignore the whole polygon
			return
		} else if ringSize <= 3 {
			// Degenerate inner rings cannot reduce the number of expired
			// tiles. Consume their points and move on.
			for i := uint32(0); i < ringSize; i++ {
				wkb.ReadPoint()
			}
			continue
		}
		prev := wkb.ReadPoint()
		for i := uint32(1); i < ringSize; i++ {
			cur := wkb.ReadPoint()
			if wkb.Err() != nil {
				return
			}
			tileXA, tileYA := s.proj.CoordsToTile(prev.X, prev.Y, s.mapWidth)
			tileXB, tileYB := s.proj.CoordsToTile(cur.X, cur.Y, s.mapWidth)
			tiles.EvaluateSegment(tileXA, tileYA, tileXB, tileYB, ring == 0)
			prev = cur
		}
	}

	tiles.SortBounds()
	for {
		for tiles.ColumnHasIntervals() {
			minRow, maxRow, ok := tiles.NextPair()
			if !ok {
				continue
			}
			s.FromBBoxWithoutBuffer(tiles.CurrentX(), minRow, tiles.CurrentX(), maxRow)
		}
		if !tiles.MoveToNextColumn() {
			break
		}
	}
}

// WKBReader iterates the raw EWKB geometries stored for one OSM object.
// Next returns io.EOF after the last row.
type WKBReader interface {
	Next() ([]byte, error)
}

// Table provides the stored geometries of OSM objects, usually backed by
// one PostGIS feature table.
type Table interface {
	WKBReader(ctx context.Context, osmID int64) (WKBReader, error)
}

// FromDB expires the tiles of every geometry the table holds for osmID
// and returns how many rows were read. Returns -1 while the engine is
// disabled (maxzoom 0).
func (s *Set) FromDB(ctx context.Context, table Table, osmID int64) (int, error) {
	if s.maxzoom == 0 {
		return -1, nil
	}
	rows, err := table.WKBReader(ctx, osmID)
	if err != nil {
		return 0, err
	}
	count := 0
	for {
		wkb, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		s.FromWKB(wkb, osmID)
		count++
	}
}
