// SPDX-License-Identifier: MIT

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	featuresRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expire_builder_features_read_total",
		Help: "Number of geometries read from the input dump.",
	})
	parseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expire_builder_parse_errors_total",
		Help: "Number of input lines that could not be parsed.",
	})
	tilesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expire_builder_tiles_written_total",
		Help: "Number of tile IDs written to the expiry list.",
	})
)

func serveMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Printf("metrics server failed: %v", err)
	}
}
