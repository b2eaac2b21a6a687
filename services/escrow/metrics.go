package escrow

import (
	"sync"

	"github.com/bsv-blockchain/escrowledger/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusEscrowReserve       prometheus.Counter
	prometheusEscrowExecute       prometheus.Counter
	prometheusEscrowReclaim       prometheus.Counter
	prometheusEscrowTransfer      prometheus.Counter
	prometheusEscrowCredit        prometheus.Counter
	prometheusEscrowRejections    *prometheus.CounterVec
	prometheusEscrowDuration      *prometheus.HistogramVec
	prometheusEscrowPublishErrors prometheus.Counter
	prometheusEscrowCache         *prometheus.CounterVec

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusEscrowReserve = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_reserve",
			Help: "Number of reservations admitted",
		},
	)
	prometheusEscrowExecute = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_execute",
			Help: "Number of reservations executed",
		},
	)
	prometheusEscrowReclaim = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_reclaim",
			Help: "Number of reservations reclaimed",
		},
	)
	prometheusEscrowTransfer = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_transfer",
			Help: "Number of transfers, plain and signed",
		},
	)
	prometheusEscrowCredit = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_credit",
			Help: "Number of direct credits, e.g. genesis allocations",
		},
	)
	prometheusEscrowRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_rejections",
			Help: "Number of rejected operations by error code",
		},
		[]string{
			"operation",
			"code",
		},
	)
	prometheusEscrowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escrow_operation_duration_seconds",
			Help:    "Duration of escrow operations",
			Buckets: util.MetricsBucketsMicroSeconds,
		},
		[]string{
			"operation",
		},
	)
	prometheusEscrowPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_publish_errors",
			Help: "Number of events that could not be published after commit",
		},
	)
	prometheusEscrowCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_reservation_cache",
			Help: "Closed reservation cache lookups",
		},
		[]string{
			"result",
		},
	)
}
