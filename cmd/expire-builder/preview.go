// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/fogleman/gg"

	"github.com/osmgo/tileexpire/expire"
)

// previewCollector passes tiles through to the real output sink and
// keeps a copy of one zoom level for rendering.
type previewCollector struct {
	expire.TileWriter
	zoom  uint32
	tiles []expire.Tile
}

func (p *previewCollector) WriteTile(x, y, zoom uint32) error {
	if zoom == p.zoom {
		p.tiles = append(p.tiles, expire.Tile{X: x, Y: y, Zoom: zoom})
	}
	return p.TileWriter.WriteTile(x, y, zoom)
}

const previewTilePixels = 4

// writePreview renders the dirty tiles of one zoom level to a PNG, a few
// pixels per tile, so a run's coverage can be eyeballed without loading
// the list into a GIS.
func writePreview(path string, tiles []expire.Tile, zoom uint32) error {
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles at zoom %d to preview", zoom)
	}

	minX, minY := tiles[0].X, tiles[0].Y
	maxX, maxY := minX, minY
	for _, tile := range tiles {
		minX = min(minX, tile.X)
		minY = min(minY, tile.Y)
		maxX = max(maxX, tile.X)
		maxY = max(maxY, tile.Y)
	}

	const margin = 2 * previewTilePixels
	width := int(maxX-minX+1)*previewTilePixels + 2*margin
	height := int(maxY-minY+1)*previewTilePixels + 2*margin

	dc := gg.NewContext(width, height)
	dc.SetRGB(0.98, 0.97, 0.94)
	dc.Clear()
	dc.SetRGB(0.75, 0.22, 0.17)
	for _, tile := range tiles {
		dc.DrawRectangle(
			float64(margin+int(tile.X-minX)*previewTilePixels),
			float64(margin+int(tile.Y-minY)*previewTilePixels),
			previewTilePixels, previewTilePixels)
	}
	dc.Fill()
	return dc.SavePNG(path)
}
