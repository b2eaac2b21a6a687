package sql

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusLedgerUpdate      prometheus.Counter
	prometheusLedgerView        prometheus.Counter
	prometheusLedgerRollback    prometheus.Counter
	prometheusLedgerReservation *prometheus.CounterVec
	prometheusLedgerErrors      *prometheus.CounterVec

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusLedgerUpdate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sql_ledger_update",
			Help: "Number of read-write units of work run against sql",
		},
	)
	prometheusLedgerView = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sql_ledger_view",
			Help: "Number of read-only units of work run against sql",
		},
	)
	prometheusLedgerRollback = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sql_ledger_rollback",
			Help: "Number of units of work rolled back",
		},
	)
	prometheusLedgerReservation = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sql_ledger_reservation",
			Help: "Number of reservation calls done to sql",
		},
		[]string{
			"function",
		},
	)
	prometheusLedgerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sql_ledger_errors",
			Help: "Number of sql ledger errors",
		},
		[]string{
			"function", // function raising the error
			"error",    // error returned
		},
	)
}
