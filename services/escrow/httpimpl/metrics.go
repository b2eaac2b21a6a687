package httpimpl

import (
	"sync"

	"github.com/bsv-blockchain/escrowledger/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// prometheusEscrowHTTPRequests counts handled requests by handler and outcome
	prometheusEscrowHTTPRequests *prometheus.CounterVec

	prometheusEscrowHTTPDuration *prometheus.HistogramVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusEscrowHTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrowledger",
			Subsystem: "http",
			Name:      "requests",
			Help:      "Number of escrow API requests by handler and outcome",
		},
		[]string{
			"function",  // handler name
			"operation", // ok or the HTTP status class of the failure
		},
	)

	prometheusEscrowHTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrowledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of escrow API requests",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
		[]string{"function"},
	)
}
