// Package metrics exposes prometheus collectors for the scan client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCsTotal counts batch-fetch protocol round trips by operation.
	RPCsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rangekv",
			Name:      "client_rpcs_total",
			Help:      "Total number of batch-fetch RPCs issued, by operation.",
		},
		[]string{"op"},
	)

	// RetriesTotal counts relocation retries across all scans.
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rangekv",
			Name:      "client_scan_retries_total",
			Help:      "Total number of scan retries after relocation or lease expiry.",
		},
	)

	// RowsReturned counts results delivered to callers.
	RowsReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rangekv",
			Name:      "client_rows_returned_total",
			Help:      "Total number of results returned to scan consumers.",
		},
	)

	// CachedResults tracks results sitting in scan caches awaiting consumption.
	CachedResults = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rangekv",
			Name:      "client_cached_results",
			Help:      "Results buffered in client scan caches.",
		},
	)
)
