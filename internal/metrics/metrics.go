package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog fetches issued to the backend, by result ("ok" | "error").
	CatalogFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsearch_catalog_fetch_total",
			Help: "Catalog fetches issued to the backend.",
		},
		[]string{"result"},
	)

	// Preload callers that attached to an already in-flight fetch.
	CatalogCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetsearch_catalog_coalesced_total",
			Help: "Preload calls served by an in-flight catalog fetch.",
		},
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetsearch_catalog_size",
			Help: "Number of records in the current catalog snapshot.",
		},
	)

	CatalogLastFetch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetsearch_catalog_last_fetch_timestamp",
			Help: "Unix time of the last successful catalog fetch.",
		},
	)

	FilterDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetsearch_filter_duration_seconds",
			Help:    "Time spent filtering the catalog snapshot.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs → ~2.6s
		},
	)

	// Quote fetches, by result ("ok" | "error").
	QuoteFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsearch_quote_fetch_total",
			Help: "Quote fetches issued for selected assets.",
		},
		[]string{"result"},
	)

	QuoteStaleDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetsearch_quote_stale_dropped_total",
			Help: "Quote results discarded because a newer selection superseded them.",
		},
	)

	// Development backend requests, by route and status.
	DevServerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetsearch_devserver_requests_total",
			Help: "Requests served by the development backend.",
		},
		[]string{"route", "status"},
	)
)

// Result maps an error to the "ok" | "error" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSince records the elapsed time since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
