package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts coordinator queries by kind and outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litetable_queries_total",
			Help: "Total number of queries",
		},
		[]string{"kind", "status"},
	)
	// QueryDuration is the end-to-end latency of a query across every shard.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "litetable_query_duration_seconds",
			Help:    "Query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	// PlansTotal counts shard evaluations by the path taken: exact reads the index cardinality,
	// scan filters index members row by row.
	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litetable_plans_total",
			Help: "Total number of shard evaluations by plan",
		},
		[]string{"plan"},
	)
	// RowsScanned counts rows loaded and re-evaluated on the scan path.
	RowsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "litetable_rows_scanned_total",
			Help: "Total number of rows loaded to verify a predicate",
		},
	)
	// DerivedIndexes counts derived index lifecycle events (persisted, reused, invalidated, expired).
	DerivedIndexes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litetable_derived_indexes_total",
			Help: "Derived index lifecycle events",
		},
		[]string{"event"},
	)
	// Promotions counts any_<column> indexes re-encoded from a set to an ordered set.
	Promotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "litetable_index_promotions_total",
			Help: "Total number of set indexes promoted to ordered sets",
		},
	)
	// WritesTotal counts row field writes and deletes.
	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litetable_writes_total",
			Help: "Total number of field writes",
		},
		[]string{"operation"},
	)
	// CDCEvents counts change events by outcome (queued, dropped, sent, failed).
	CDCEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litetable_cdc_events_total",
			Help: "Change data capture events by outcome",
		},
		[]string{"status"},
	)
)
