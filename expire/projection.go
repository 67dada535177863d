// SPDX-License-Identifier: MIT

package expire

import (
	"math"
)

// EarthCircumference is the circumference of the earth at the equator in
// meters, which is also the east-west extent of the EPSG:3857 plane.
const EarthCircumference = 40075016.68

const halfEarthCircumference = EarthCircumference / 2

// Projection converts coordinates from the importer's output SRS into
// fractional tile coordinates on the web-mercator tile grid. tileX grows
// eastward, tileY grows southward (slippy-map convention, y axis flipped
// against the projected plane).
type Projection interface {
	CoordsToTile(x, y float64, mapWidth uint32) (tileX, tileY float64)

	// EPSG returns the SRS id of the coordinates this projection accepts.
	EPSG() int
}

// SphereMercator accepts coordinates already projected to EPSG:3857
// (spherical web-mercator meters).
type SphereMercator struct{}

func (SphereMercator) CoordsToTile(x, y float64, mapWidth uint32) (float64, float64) {
	tileX := float64(mapWidth) * (x + halfEarthCircumference) / EarthCircumference
	tileY := float64(mapWidth) * (halfEarthCircumference - y) / EarthCircumference
	return tileX, tileY
}

func (SphereMercator) EPSG() int { return 3857 }

// LatLong accepts EPSG:4326 degrees and projects them through spherical
// mercator onto the tile grid.
type LatLong struct{}

func (LatLong) CoordsToTile(lon, lat float64, mapWidth uint32) (float64, float64) {
	const radius = EarthCircumference / (2 * math.Pi)
	mercX := lon * EarthCircumference / 360
	mercY := math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * radius
	return SphereMercator{}.CoordsToTile(mercX, mercY, mapWidth)
}

func (LatLong) EPSG() int { return 4326 }
