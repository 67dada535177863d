// SPDX-License-Identifier: MIT

// Command expire-builder computes the list of map tiles that need
// re-rendering from a dump of modified OSM geometries. The input is one
// feature per line, "osm_id<TAB>hex-ewkb", the shape produced by
//
//	\copy (SELECT osm_id, way FROM planet_osm_polygon …) TO 'geoms.tsv'
//
// and may be compressed (gzip, bzip2, xz, zstd or brotli). The output is
// a tile list with one "z/x/y" line per dirty tile.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/osmgo/tileexpire/expire"
)

var logger *log.Logger

func main() {
	input := flag.String("input", "", "geometry dump to read, - for stdin")
	output := flag.String("o", "expired.list", "tile list to append to (.gz/.zst/.br compress)")
	maxzoom := flag.Uint("maxzoom", 14, "zoom level to expire tiles at, 0 disables expiry")
	minzoom := flag.Uint("minzoom", 10, "lowest zoom level to write")
	maxBBox := flag.Float64("max-bbox", 20000,
		"bounding box size above which polygons are expired as outlines only")
	projection := flag.Int("projection", 3857, "SRS of the input coordinates (3857 or 4326)")
	workers := flag.Int("workers", runtime.NumCPU(), "number of parallel workers")
	external := flag.Bool("external", false, "sort the tile list on disk instead of in memory")
	preview := flag.String("preview", "", "write a PNG rendering of the dirty tiles")
	previewZoom := flag.Uint("preview-zoom", 10, "zoom level for -preview")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address while running")
	storagekey := flag.String("storage-key", "", "path to key with storage access credentials")
	bucket := flag.String("bucket", "osm-tiles", "storage bucket for -storage-key uploads")
	dest := flag.String("dest", "", "remote path for -storage-key uploads")
	flag.Parse()

	logfile, err := createLogFile()
	if err != nil {
		log.Fatal(err)
	}
	defer logfile.Close()
	logger = log.New(logfile, "", log.Ldate|log.Ltime|log.LUTC|log.Lshortfile)
	expire.SetLogger(logger)

	if *maxzoom == 0 {
		logger.Print("tile expiry disabled (-maxzoom 0), nothing to do")
		return
	}
	if *minzoom > *maxzoom {
		logger.Fatalf("-minzoom %d exceeds -maxzoom %d", *minzoom, *maxzoom)
	}

	ctx := context.Background()

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	proj, err := projectionForEPSG(*projection)
	if err != nil {
		logger.Fatal(err)
	}

	reader, closeInput, err := openInput(*input)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeInput()

	set, err := buildExpireSet(ctx, reader, *workers, uint32(*maxzoom), *maxBBox, proj)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Printf("expired %d tiles at zoom %d", set.Len(), *maxzoom)

	fileWriter := expire.NewFileWriter(*output)
	var w expire.TileWriter = fileWriter
	var collector *previewCollector
	if *preview != "" {
		zoom := uint32(*previewZoom)
		if zoom > uint32(*maxzoom) {
			zoom = uint32(*maxzoom)
		}
		if zoom < uint32(*minzoom) {
			zoom = uint32(*minzoom)
		}
		collector = &previewCollector{TileWriter: fileWriter, zoom: zoom}
		w = collector
	}

	if *external {
		err = set.OutputExternalAndDestroy(ctx, w, uint32(*minzoom))
	} else {
		err = set.OutputAndDestroy(w, uint32(*minzoom))
	}
	if err != nil {
		logger.Fatal(err)
	}
	if err := fileWriter.Close(); err != nil {
		logger.Fatal(err)
	}
	tilesWritten.Add(float64(fileWriter.Count()))
	logger.Printf("wrote %d tiles to %s", fileWriter.Count(), *output)

	if collector != nil {
		if err := writePreview(*preview, collector.tiles, collector.zoom); err != nil {
			logger.Fatal(err)
		}
	}

	if *storagekey != "" {
		storage, err := NewStorageClient(*storagekey)
		if err != nil {
			logger.Fatal(err)
		}
		remotepath := *dest
		if remotepath == "" {
			remotepath = filepath.Base(*output)
		}
		if err := PutInStorage(ctx, storage, *output, *bucket, remotepath); err != nil {
			logger.Fatal(err)
		}
		logger.Printf("uploaded %s to %s/%s", *output, *bucket, remotepath)
	}
}

func projectionForEPSG(epsg int) (expire.Projection, error) {
	switch epsg {
	case 3857:
		return expire.SphereMercator{}, nil
	case 4326:
		return expire.LatLong{}, nil
	default:
		return nil, fmt.Errorf("unsupported projection EPSG:%d", epsg)
	}
}

func openInput(path string) (*bufio.Scanner, func(), error) {
	if path == "" {
		return nil, nil, fmt.Errorf("missing -input")
	}
	if path == "-" {
		reader, err := NewDecompressingReader(os.Stdin)
		if err != nil {
			return nil, nil, err
		}
		return newGeometryScanner(reader), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	reader, err := NewDecompressingReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return newGeometryScanner(reader), func() { f.Close() }, nil
}

// buildExpireSet fans the input lines out to workers, each owning a
// private expire.Set, and merges the per-worker sets at the end. The
// engine itself is single-writer; this is the supported way to use more
// than one core.
func buildExpireSet(ctx context.Context, scanner *bufio.Scanner, workers int,
	maxzoom uint32, maxBBox float64, proj expire.Projection) (*expire.Set, error) {
	if workers < 1 {
		workers = 1
	}

	lines := make(chan string, 1000)
	sets := make([]*expire.Set, workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		i := i
		sets[i] = expire.New(maxzoom, maxBBox, proj)
		g.Go(func() error {
			for line := range lines {
				osmID, wkb, err := ParseGeometryLine(line)
				if err != nil {
					parseErrors.Inc()
					logger.Printf("skipping bad input line: %v", err)
					continue
				}
				sets[i].FromWKB(wkb, osmID)
				featuresRead.Inc()
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(lines)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case lines <- scanner.Text():
			}
		}
		return scanner.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := sets[0]
	for _, s := range sets[1:] {
		if err := merged.MergeAndDestroy(s); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// Create a file for keeping logs. If the file already exists, its
// present content is preserved, and new log entries will get appended
// after the existing ones.
func createLogFile() (*os.File, error) {
	logpath := filepath.Join("logs", "expire-builder.log")
	if err := os.MkdirAll("logs", os.ModePerm); err != nil {
		return nil, err
	}

	logfile, err := os.OpenFile(logpath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	return logfile, nil
}
