package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TileReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilestore_tile_reads_total",
		Help: "Total number of tile point reads",
	})

	TileReadMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilestore_tile_read_misses_total",
		Help: "Total number of tile reads that found no tile",
	})

	TileWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilestore_tile_writes_total",
		Help: "Total number of tile writes (upserts and deletes)",
	})

	BatchFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilestore_batch_flushes_total",
		Help: "Total number of batch flushes submitted to the backend",
	})

	QueryRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tilestore_query_rows_total",
		Help: "Total number of rows streamed out of range queries",
	})

	StoreLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tilestore_operation_latency_seconds",
		Help:    "Latency of tile store round trips in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
