// SPDX-License-Identifier: MIT

package expire

import (
	"math/rand"
	"slices"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sortTiles(tiles []Tile) []Tile {
	sort.Slice(tiles, func(i, j int) bool {
		a, b := tiles[i], tiles[j]
		if a.Zoom != b.Zoom {
			return a.Zoom < b.Zoom
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return tiles
}

func outputTiles(t *testing.T, s *Set, minzoom uint32) []Tile {
	t.Helper()
	var w CollectingWriter
	if err := s.OutputAndDestroy(&w, minzoom); err != nil {
		t.Fatal(err)
	}
	return sortTiles(w.Tiles)
}

func TestExpireBBoxZoom1(t *testing.T) {
	// As big a bbox as possible at the origin, dirtying all four
	// quadrants of the world.
	s := New(1, 20000, SphereMercator{})
	s.FromBBoxLonLat(-10000, -10000, 10000, 10000)
	want := []Tile{{0, 0, 1}, {0, 1, 1}, {1, 0, 1}, {1, 1, 1}}
	if diff := cmp.Diff(want, outputTiles(t, s, 1)); diff != "" {
		t.Errorf("tiles mismatch (-want +got):\n%s", diff)
	}
}

func TestExpireBBoxZoom3(t *testing.T) {
	s := New(3, 20000, SphereMercator{})
	s.FromBBoxLonLat(-10000, -10000, 10000, 10000)
	want := []Tile{{3, 3, 3}, {3, 4, 3}, {4, 3, 3}, {4, 4, 3}}
	if diff := cmp.Diff(want, outputTiles(t, s, 3)); diff != "" {
		t.Errorf("tiles mismatch (-want +got):\n%s", diff)
	}
}

func TestExpireBBoxZoom18(t *testing.T) {
	// A smaller bbox this time; at z18 the tiles are pretty small.
	s := New(18, 20000, SphereMercator{})
	s.FromBBoxLonLat(-1, -1, 1, 1)
	want := []Tile{
		{131071, 131071, 18}, {131071, 131072, 18},
		{131072, 131071, 18}, {131072, 131072, 18},
	}
	if diff := cmp.Diff(want, outputTiles(t, s, 18)); diff != "" {
		t.Errorf("tiles mismatch (-want +got):\n%s", diff)
	}
}

func TestExpireBBoxTwoZoomLevels(t *testing.T) {
	s := New(18, 20000, SphereMercator{})
	s.FromBBoxLonLat(-1, -1, 1, 1)
	want := []Tile{
		{65535, 65535, 17}, {65535, 65536, 17},
		{65536, 65535, 17}, {65536, 65536, 17},
		{131071, 131071, 18}, {131071, 131072, 18},
		{131072, 131071, 18}, {131072, 131072, 18},
	}
	if diff := cmp.Diff(want, outputTiles(t, s, 17)); diff != "" {
		t.Errorf("tiles mismatch (-want +got):\n%s", diff)
	}
}

func TestExpireBBoxOneSuperiorTile(t *testing.T) {
	// All four z18 tiles share one z17 parent, which must be emitted
	// exactly once.
	s := New(18, 20000, SphereMercator{})
	s.FromBBoxLonLat(-163, 140, -140, 164)
	want := []Tile{
		{65535, 65535, 17},
		{131070, 131070, 18}, {131070, 131071, 18},
		{131071, 131070, 18}, {131071, 131071, 18},
	}
	if diff := cmp.Diff(want, outputTiles(t, s, 17)); diff != "" {
		t.Errorf("tiles mismatch (-want +got):\n%s", diff)
	}
}

// tileCentroid returns the web-mercator coordinates of a tile's center.
func tileCentroid(zoom, x, y uint32) (float64, float64) {
	datum := 0.5 * float64(uint32(1)<<zoom)
	scale := EarthCircumference / float64(uint32(1)<<zoom)
	return ((float64(x) + 0.5) - datum) * scale, (datum - (float64(y) + 0.5)) * scale
}

func randomTiles(zoom uint32, count int) map[Tile]struct{} {
	set := make(map[Tile]struct{}, count)
	for len(set) < count {
		set[Tile{
			X:    uint32(rand.Intn(1 << zoom)),
			Y:    uint32(rand.Intn(1 << zoom)),
			Zoom: zoom,
		}] = struct{}{}
	}
	return set
}

func expireCentroids(s *Set, tiles map[Tile]struct{}) {
	for tile := range tiles {
		cx, cy := tileCentroid(tile.Zoom, tile.X, tile.Y)
		s.FromBBoxLonLat(cx, cy, cx, cy)
	}
}

func tileSet(tiles []Tile) map[Tile]struct{} {
	set := make(map[Tile]struct{}, len(tiles))
	for _, tile := range tiles {
		set[tile] = struct{}{}
	}
	return set
}

// Expiring a set of tile centroids expires exactly those tiles, no
// matter how often each centroid is expired.
func TestExpireCentroids(t *testing.T) {
	const zoom = 18
	for i := 0; i < 20; i++ {
		s := New(zoom, 20000, SphereMercator{})
		want := randomTiles(zoom, 100)
		expireCentroids(s, want)
		expireCentroids(s, want) // idempotence
		if diff := cmp.Diff(want, tileSet(outputTiles(t, s, zoom))); diff != "" {
			t.Errorf("tiles mismatch (-want +got):\n%s", diff)
		}
	}
}

// Merging two sets must produce the union of what both would have
// produced on their own.
func TestMerge(t *testing.T) {
	const zoom = 18
	for i := 0; i < 20; i++ {
		s := New(zoom, 20000, SphereMercator{})
		s1 := New(zoom, 20000, SphereMercator{})
		s2 := New(zoom, 20000, SphereMercator{})

		set1 := randomTiles(zoom, 100)
		set2 := randomTiles(zoom, 100)
		shared := randomTiles(zoom, 100)
		expireCentroids(s1, set1)
		expireCentroids(s2, set2)
		expireCentroids(s1, shared)
		expireCentroids(s2, shared)

		if err := s.MergeAndDestroy(s1); err != nil {
			t.Fatal(err)
		}
		if err := s.MergeAndDestroy(s2); err != nil {
			t.Fatal(err)
		}
		if s1.Len() != 0 || s2.Len() != 0 {
			t.Errorf("merge left %d and %d tiles in the sources", s1.Len(), s2.Len())
		}

		want := make(map[Tile]struct{})
		for _, set := range []map[Tile]struct{}{set1, set2, shared} {
			for tile := range set {
				want[tile] = struct{}{}
			}
		}
		if diff := cmp.Diff(want, tileSet(outputTiles(t, s, zoom))); diff != "" {
			t.Errorf("tiles mismatch (-want +got):\n%s", diff)
		}
	}
}

// Merging two halves of a box must equal expiring the whole box at once.
func TestMergeComplete(t *testing.T) {
	const zoom = 18
	whole := New(zoom, 20000, SphereMercator{})
	left := New(zoom, 20000, SphereMercator{})
	right := New(zoom, 20000, SphereMercator{})
	merged := New(zoom, 20000, SphereMercator{})

	whole.FromBBoxLonLat(-10000, -10000, 10000, 10000)
	left.FromBBoxLonLat(-10000, -10000, 0, 10000)
	right.FromBBoxLonLat(0, -10000, 10000, 10000)

	if err := merged.MergeAndDestroy(left); err != nil {
		t.Fatal(err)
	}
	if err := merged.MergeAndDestroy(right); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(outputTiles(t, whole, zoom), outputTiles(t, merged, zoom)); diff != "" {
		t.Errorf("tiles mismatch (-whole +merged):\n%s", diff)
	}
}

func TestMergeConfigMismatch(t *testing.T) {
	a := New(14, 20000, SphereMercator{})
	b := New(15, 20000, SphereMercator{})
	if err := a.MergeAndDestroy(b); err == nil {
		t.Error("expected an error when merging sets with different zoom levels")
	}
}

// Emission must be in ascending quadkey order within each zoom level.
func TestOutputQuadkeyOrder(t *testing.T) {
	const zoom = 10
	s := New(zoom, 20000, SphereMercator{})
	expireCentroids(s, randomTiles(zoom, 200))

	var w CollectingWriter
	if err := s.OutputAndDestroy(&w, 7); err != nil {
		t.Fatal(err)
	}
	perZoom := make(map[uint32][]Quadkey)
	for _, tile := range w.Tiles {
		perZoom[tile.Zoom] = append(perZoom[tile.Zoom], MakeQuadkey(tile.X, tile.Y, tile.Zoom))
	}
	for z, keys := range perZoom {
		if !slices.IsSorted(keys) {
			t.Errorf("zoom %d emitted out of quadkey order", z)
		}
		seen := make(map[Quadkey]struct{}, len(keys))
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				t.Errorf("zoom %d emitted tile %#x twice", z, uint64(k))
			}
			seen[k] = struct{}{}
		}
	}
}

func TestOutputMinzoomAboveMaxzoomPanics(t *testing.T) {
	s := New(3, 20000, SphereMercator{})
	defer func() {
		if recover() == nil {
			t.Error("expected panic for minzoom > maxzoom")
		}
	}()
	var w CollectingWriter
	s.OutputAndDestroy(&w, 4)
}

func TestDisabledSetIsNoOp(t *testing.T) {
	s := New(0, 20000, SphereMercator{})
	s.FromPoint(0, 0)
	s.FromBBoxLonLat(-10000, -10000, 10000, 10000)
	s.FromWKB([]byte{1, 1, 0, 0, 0}, 42)
	if s.Len() != 0 {
		t.Errorf("disabled set accumulated %d tiles", s.Len())
	}
}
