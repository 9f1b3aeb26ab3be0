package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch failures are never retried; the counters below keep them
// observable to the operator instead of silently disappearing.

var (
	metricClosuresDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "closures_detected_total",
			Help:      "Closure events detected, by detector strategy",
		},
		[]string{"detector"},
	)

	metricTradesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "trades_dispatched_total",
			Help:      "Closed-trade records successfully posted to the ledger",
		},
	)

	metricDrawdownsDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "drawdown_reports_dispatched_total",
			Help:      "Drawdown snapshots successfully posted to the ledger",
		},
	)

	metricDispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "dispatch_failures_total",
			Help:      "Ledger dispatches that failed and were not retried",
		},
		[]string{"endpoint"},
	)

	metricPendingLookups = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "deferred_record_lookups_total",
			Help:      "Closures whose historical record was not yet visible and were deferred a cycle",
		},
	)

	metricPendingExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "pending_lookups_expired_total",
			Help:      "Closure candidates dropped because their historical record never became visible",
		},
	)

	metricDegradedOpenTimes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "degraded_open_time_fallbacks_total",
			Help:      "Closures whose open time was unrecoverable from truncated history",
		},
	)

	metricCyclesAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "cycles_abandoned_total",
			Help:      "Observation cycles abandoned because the upstream source was unavailable",
		},
	)

	metricHistorySync = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradesentry",
			Subsystem: "engine",
			Name:      "history_sync_records_total",
			Help:      "History synchronizer outcomes per record",
		},
		[]string{"outcome"}, // sent, skipped, failed
	)
)
