// SPDX-License-Identifier: MIT

// Package ewkb reads the extended Well-Known Binary geometry encoding
// that PostGIS stores and emits. It is a cursor, not a document parser:
// callers drive it with the geometry structure they expect and may save
// and rewind positions, the way the tile expiry engine walks polygon
// rings twice.
package ewkb

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// Geometry type codes as found in WKB headers.
const (
	Point              = 1
	LineString         = 2
	Polygon            = 3
	MultiPoint         = 4
	MultiLineString    = 5
	MultiPolygon       = 6
	GeometryCollection = 7
)

// Flag bits PostGIS adds to the geometry type word.
const (
	sridFlag = 0x20000000
	mFlag    = 0x40000000
	zFlag    = 0x80000000
)

var (
	errTruncated = errors.New("ewkb: unexpected end of geometry")
	errBigEndian = errors.New("ewkb: big-endian geometry not supported")
)

// Coordinates is one WKB coordinate pair.
type Coordinates struct {
	X float64
	Y float64
}

// Parser is a cursor over one EWKB geometry. Read errors are sticky:
// after the first failure all further reads return zero values and Err
// reports the failure. This keeps the call sites free of error plumbing,
// matching how the geometry is consumed (a fixed walk driven by lengths
// read from the data itself).
type Parser struct {
	buf []byte
	pos int
	err error
}

// NewParser returns a cursor positioned at the start of wkb.
func NewParser(wkb []byte) *Parser {
	return &Parser{buf: wkb}
}

// FromHex decodes the hex form in which PostGIS returns geometry columns
// as text.
func FromHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("ewkb: %w", err)
	}
	return b, nil
}

// Err returns the first read failure, or nil.
func (p *Parser) Err() error { return p.err }

func (p *Parser) need(n int) bool {
	if p.err != nil {
		return false
	}
	if p.pos+n > len(p.buf) {
		p.err = errTruncated
		p.pos = len(p.buf)
		return false
	}
	return true
}

// ReadHeader consumes a geometry header: the byte-order mark, the type
// word, and the SRID if present. It returns the bare geometry type with
// the Z/M/SRID flags masked off.
func (p *Parser) ReadHeader() uint32 {
	if !p.need(5) {
		return 0
	}
	if p.buf[p.pos] != 1 { // NDR, little-endian
		p.err = errBigEndian
		p.pos = len(p.buf)
		return 0
	}
	p.pos++
	t := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	if t&sridFlag != 0 {
		if !p.need(4) {
			return 0
		}
		p.pos += 4
	}
	return t &^ (sridFlag | mFlag | zFlag)
}

// ReadLength consumes a uint32 count (number of rings, points or member
// geometries).
func (p *Parser) ReadLength() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

// ReadPoint consumes one coordinate pair.
func (p *Parser) ReadPoint() Coordinates {
	if !p.need(16) {
		return Coordinates{}
	}
	x := math.Float64frombits(binary.LittleEndian.Uint64(p.buf[p.pos:]))
	y := math.Float64frombits(binary.LittleEndian.Uint64(p.buf[p.pos+8:]))
	p.pos += 16
	return Coordinates{X: x, Y: y}
}

// SavePos returns the current cursor position for a later Rewind.
func (p *Parser) SavePos() int { return p.pos }

// Rewind moves the cursor back to a position obtained from SavePos.
func (p *Parser) Rewind(pos int) { p.pos = pos }
