// SPDX-License-Identifier: MIT

package expire

import (
	"math"
)

// FromPoint expires the tile containing the point, plus the leeway buffer
// around it. Coordinates are in the units of the configured projection.
func (s *Set) FromPoint(lon, lat float64) {
	tileX, tileY := s.proj.CoordsToTile(lon, lat, s.mapWidth)
	s.FromBBox(tileX, tileY, tileX, tileY)
}

// FromBBoxLonLat expires all tiles intersecting the bounding box, given
// in the units of the configured projection. The y axis flips between
// projected coordinates and tile rows, so the minimum latitude becomes
// the maximum tile row.
func (s *Set) FromBBoxLonLat(minX, minY, maxX, maxY float64) {
	xMin, yMax := s.proj.CoordsToTile(minX, minY, s.mapWidth)
	xMax, yMin := s.proj.CoordsToTile(maxX, maxY, s.mapWidth)
	s.FromBBox(xMin, yMin, xMax, yMax)
}

// FromBBox expires all tiles intersecting the bounding box, given in
// fractional tile coordinates at maxzoom, inflated by the leeway buffer.
func (s *Set) FromBBox(minX, minY, maxX, maxY float64) {
	minX -= tileExpiryLeeway
	minY -= tileExpiryLeeway
	maxX += tileExpiryLeeway
	maxY += tileExpiryLeeway
	s.FromBBoxWithoutBuffer(tileCoord(minX), tileCoord(minY), tileCoord(maxX), tileCoord(maxY))
}

// FromBBoxWithoutBuffer expires the closed rectangle of tiles without
// adding any buffer.
func (s *Set) FromBBoxWithoutBuffer(minX, minY, maxX, maxY uint32) {
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			s.expireTile(x, y)
		}
	}
}

// FromLineLonLat expires all tiles a line segment intersects, including
// the leeway buffer. Coordinates are in the units of the configured
// projection. Segments crossing the 180th meridian are split at the
// meridian and rasterized as two pieces.
func (s *Set) FromLineLonLat(lonA, latA, lonB, latB float64) {
	tileXA, tileYA := s.proj.CoordsToTile(lonA, latA, s.mapWidth)
	tileXB, tileYB := s.proj.CoordsToTile(lonB, latB, s.mapWidth)
	// Make the segment run from west to east.
	if tileXA > tileXB {
		tileXA, tileXB = tileXB, tileXA
		tileYA, tileYB = tileYB, tileYA
	}
	mapWidth := float64(s.mapWidth)
	if tileXB-tileXA > mapWidth/2 {
		// The segment crosses the 180th meridian; split it there.
		if tileXB == mapWidth && tileXA == 0 {
			// The segment runs along the meridian itself. Without this
			// special case the intercept theorem below divides by zero.
			s.ExpireLineSegment(0, tileYA, 0, tileYB)
			return
		}
		// x distance between the western point and the meridian
		xDistance := mapWidth + tileXA - tileXB
		// intercept theorem: (y2-y1)/(ySplit-y1) = (x2-x1)/(xSplit-x1)
		ySplit := tileYA + (tileYB-tileYA)*(tileXA/xDistance)
		s.ExpireLineSegment(0, ySplit, tileXA, tileYA)
		s.ExpireLineSegment(tileXB, tileYB, mapWidth, ySplit)
	} else {
		s.ExpireLineSegment(tileXA, tileYA, tileXB, tileYB)
	}
}

// ExpireLineSegment expires all tiles a segment intersects, including the
// leeway buffer on all sides. Coordinates are fractional tile coordinates
// with x1 <= x2; the x extent must not exceed half the map width (split
// antimeridian crossings first).
func (s *Set) ExpireLineSegment(x1, y1, x2, y2 float64) {
	if x1 == x2 && y1 == y2 {
		// The segment is degenerate, only a point.
		return
	}
	// Nearly-vertical segments are rasterized as vertical lines: either
	// both ends share a tile column, or the x extent is so small that the
	// division in the buffer computation below would blow up.
	if x2-x1 < 1 && (tileCoord(x2) == tileCoord(x1) || x2-x1 < 0.00000001) {
		if y2 < y1 {
			y1, y2 = y2, y1
		}
		bufferWest := s.normalizeTileCoord(x1 - tileExpiryLeeway)
		s.ExpireVerticalLine(bufferWest, y1, y2)
		// Also expire the eastern parallel, unless it runs through the
		// same tile column anyway.
		bufferEast := s.normalizeTileCoord(x1 + tileExpiryLeeway)
		if uint32(bufferWest) != uint32(bufferEast) {
			s.ExpireVerticalLine(bufferEast, y1, y2)
		}
		return
	}
	segmentLength := math.Sqrt((y2-y1)*(y2-y1) + (x2-x1)*(x2-x1))
	xNorm := (x2 - x1) / segmentLength
	yNorm := (y2 - y1) / segmentLength
	xBuffer := tileExpiryLeeway * xNorm
	yBuffer := tileExpiryLeeway * yNorm
	// Two parallels displaced by the unit normal times the leeway
	// approximate a tube around the segment. Normal vector to the right:
	// (-y,x), to the left: (y,-x).
	s.ExpireLine(x1-xBuffer-yBuffer, y1-yBuffer+xBuffer, x2+xBuffer-yBuffer, y2+yBuffer+xBuffer)
	s.ExpireLine(x1-xBuffer+yBuffer, y1-yBuffer-xBuffer, x2+xBuffer+yBuffer, y2+yBuffer-xBuffer)
}

// ExpireLine expires all tiles a line from (x1,y1) to (x2,y2) enters,
// without any buffer. Coordinates are fractional tile coordinates with
// x1 < x2. The line is clamped to the tile grid; a line wholly outside
// is a no-op.
func (s *Set) ExpireLine(x1, y1, x2, y2 float64) {
	// y(x) = incline*x + yIntercept
	incline := (y2 - y1) / (x2 - x1)
	yIntercept := y2 - incline*x2

	// A horizontal line fully outside the grid expires nothing.
	if incline == 0 && (yIntercept < 0 || yIntercept > float64(s.mapWidth)) {
		return
	}
	// If x2 is not positive, the whole line lies west of the grid.
	if x2 <= 0 {
		return
	}
	if x1 < 0 {
		x1 = 0
		y1 = yIntercept
	}
	// If both ends lie north of the grid, so does the whole line.
	if y1 < 0 && y2 < 0 {
		return
	}
	// Values beyond mapWidth are harmless (expireTile drops them), but
	// negative values must be clamped before the unsigned conversions.
	if y1 < 0 {
		y1 = 0
		x1 = -yIntercept / incline
	}
	if y2 < 0 {
		y2 = 0
		x2 = -yIntercept / incline
	}

	// start tile
	s.expireTile(uint32(x1), uint32(y1))
	// tiles the line enters by crossing their western edge
	for x := uint32(x1 + 1); x <= uint32(x2); x++ {
		y := incline*float64(x) + yIntercept
		s.expireTile(x, uint32(y))
	}
	// tiles the line enters by crossing their northern or southern edge
	minY := math.Min(y1, y2)
	maxY := math.Max(y1, y2)
	for y := uint32(minY + 1); y <= uint32(maxY); y++ {
		x := (float64(y) - yIntercept) / incline
		if y2 > y1 {
			// line heading south on its way from (x1,y1) to (x2,y2)
			s.expireTile(uint32(x), y)
		} else {
			s.expireTile(uint32(x), y-1)
		}
	}
}

// ExpireVerticalLine expires the tiles of a south-north segment at tile
// column x from row y1 to row y2, with y1 <= y2. Both endpoints get the
// leeway buffer; the rows in between are expired without buffer.
func (s *Set) ExpireVerticalLine(x, y1, y2 float64) {
	// northern end, with buffer
	s.FromBBox(x, y1, x, y1)
	for y := tileCoord(y1 + 1); y < tileCoord(y2); y++ {
		s.expireTile(tileCoord(x), y)
	}
	// southern end, with buffer
	s.FromBBox(x, y2, x, y2)
}

// normalizeTileCoord clamps a fractional tile coordinate into the grid.
func (s *Set) normalizeTileCoord(coord float64) float64 {
	if coord > float64(s.mapWidth) {
		return float64(s.mapWidth) - 1
	} else if coord < 0 {
		return 0
	}
	return coord
}
