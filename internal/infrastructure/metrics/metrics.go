package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cafeteria",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger operations by type and outcome.",
}, []string{"operation", "outcome"})

var LedgerBonusAwarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cafeteria",
	Subsystem: "ledger",
	Name:      "bonus_awarded_total",
	Help:      "Number of monthly deposit bonus tiers credited.",
})

var LedgerConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cafeteria",
	Subsystem: "ledger",
	Name:      "conflict_retries_total",
	Help:      "Optimistic version conflicts that caused a ledger operation to re-run.",
})

var LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cafeteria",
	Subsystem: "ledger",
	Name:      "operation_duration_seconds",
	Help:      "Latency of ledger operations including lock wait.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

var ReconcileMismatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cafeteria",
	Subsystem: "ledger",
	Name:      "reconcile_mismatches_total",
	Help:      "Accounts whose balance differed from the sum of their ledger records.",
})

var OutboxDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cafeteria",
	Subsystem: "outbox",
	Name:      "messages_total",
	Help:      "Outbox delivery attempts by outcome.",
}, []string{"outcome"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cafeteria",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route and status code.",
}, []string{"route", "status"})

// ObserveLedger 记录一次账本操作的结果与耗时
func ObserveLedger(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LedgerOperations.WithLabelValues(operation, outcome).Inc()
	LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
