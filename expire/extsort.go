// SPDX-License-Identifier: MIT

package expire

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"

	"github.com/lanrat/extsort"
)

// sortableQuadkey adapts Quadkey to extsort's serialization interface.
type sortableQuadkey Quadkey

func (q sortableQuadkey) ToBytes() []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(q))
	return buf[:n]
}

func sortableQuadkeyFromBytes(b []byte) extsort.SortType {
	v, _ := binary.Uvarint(b)
	return sortableQuadkey(v)
}

func sortableQuadkeyLess(a, b extsort.SortType) bool {
	return a.(sortableQuadkey) < b.(sortableQuadkey)
}

// OutputExternalAndDestroy behaves like OutputAndDestroy but sorts the
// quadkeys on disk through an external merge sort instead of in memory.
// Use it when a run has dirtied more tiles than comfortably fit in RAM
// next to the hash set, e.g. continent-wide reimports at high maxzoom.
func (s *Set) OutputExternalAndDestroy(ctx context.Context, w TileWriter, minzoom uint32) error {
	if minzoom > s.maxzoom {
		panic(fmt.Sprintf("expire: minzoom %d exceeds maxzoom %d", minzoom, s.maxzoom))
	}

	dirty := s.dirty
	s.dirty = make(map[Quadkey]struct{})

	inChan := make(chan extsort.SortType, 10000)
	config := extsort.DefaultConfig()
	config.NumWorkers = runtime.NumCPU()
	sorter, outChan, errChan := extsort.New(inChan, sortableQuadkeyFromBytes, sortableQuadkeyLess, config)
	go sorter.Sort(ctx)
	go func() {
		for q := range dirty {
			inChan <- sortableQuadkey(q)
		}
		close(inChan)
	}()

	// Same sibling deduplication as the in-memory path; the sorted stream
	// arrives through outChan instead of a sorted slice.
	var writeErr error
	last := Quadkey(1) << (2 * s.maxzoom)
	for item := range outChan {
		q := Quadkey(item.(sortableQuadkey))
		if writeErr != nil {
			continue // drain the sorter
		}
		for dz := uint32(0); dz <= s.maxzoom-minzoom; dz++ {
			current := q.Ancestor(dz)
			if current == last.Ancestor(dz) {
				continue
			}
			x, y := current.XY(s.maxzoom - dz)
			if err := w.WriteTile(x, y, s.maxzoom-dz); err != nil {
				writeErr = err
				break
			}
		}
		last = q
	}
	if err := <-errChan; err != nil {
		return err
	}
	return writeErr
}
