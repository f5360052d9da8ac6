// Package metrics provides Prometheus metrics for topdeck-compare.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topdeck_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "topdeck_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Reference dataset metrics
	BulkDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topdeck_bulk_downloads_total",
			Help: "Scryfall bulk dataset downloads",
		},
		[]string{"result"}, // "success" or "failed"
	)

	OracleIndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topdeck_oracle_index_build_seconds",
			Help:    "Time taken to load the dataset and build the oracle index",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	OracleIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "topdeck_oracle_index_identities",
			Help: "Number of distinct oracle ids in the loaded index",
		},
	)

	// Resolver metrics
	OracleLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topdeck_oracle_lookups_total",
			Help: "Card name resolutions by mode and result",
		},
		[]string{"mode", "result"}, // result: "hit", "miss", "cached", "error"
	)

	ResolverRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topdeck_resolver_requests_total",
			Help: "Outbound remote resolver requests",
		},
		[]string{"endpoint", "result"}, // endpoint: "resolve", "batch"; result: "success", "failed", "malformed"
	)

	ResolverMisses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "topdeck_resolver_misses",
			Help: "Names left unresolved by the last priming pass",
		},
	)

	// Listing metrics
	ListingFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topdeck_listing_fetches_total",
			Help: "Listing page fetches",
		},
		[]string{"result"}, // "success", "failed", "cache_hit"
	)

	ListingEntriesParsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topdeck_listing_entries_parsed",
			Help:    "Number of entries parsed per listing page",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Comparison metrics
	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "topdeck_comparisons_total",
			Help: "Wishlist vs listing comparisons",
		},
		[]string{"result"}, // "success" or "failed"
	)

	ComparisonUnresolved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "topdeck_comparison_unresolved_cards",
			Help:    "Unresolved wishlist cards per comparison",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		},
	)
)
