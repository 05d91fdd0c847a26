package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassesTotal counts indexing passes by outcome.
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_indexer_passes_total",
			Help: "Total number of indexing passes by status",
		},
		[]string{"status"},
	)

	// PassDuration tracks wall time of completed passes.
	PassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "market_indexer_pass_duration_seconds",
			Help:    "Indexing pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EventsTotal counts processed logs per kind and result (inserted, duplicate, failed).
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_indexer_events_total",
			Help: "Processed contract events by kind and result",
		},
		[]string{"kind", "result"},
	)

	// CursorBlock is the last processed block.
	CursorBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_indexer_cursor_block",
			Help: "Last block fully processed by the indexer",
		},
	)

	// ChainHead is the latest block reported by the RPC endpoint.
	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_indexer_chain_head_block",
			Help: "Latest block number seen on chain",
		},
	)

	// PassPhase is 1 for the phase the runner is currently in, 0 for the others.
	PassPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "market_indexer_pass_phase",
			Help: "Current indexing pass phase (idle, fetching, committing)",
		},
		[]string{"phase"},
	)

	// StoreOpsTotal counts store operations issued by the indexer, by outcome.
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_indexer_store_ops_total",
			Help: "Total number of store operations",
		},
		[]string{"op", "outcome"},
	)

	// StoreLatency tracks store operation latency.
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_indexer_store_latency_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// HTTPRequestsTotal counts API requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_indexer_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "code"},
	)

	// HTTPLatency tracks API request latency.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_indexer_http_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// RPCCallsTotal tracks RPC calls per method and outcome.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_indexer_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"method", "outcome"},
	)

	// RPCLatency tracks RPC call latency.
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_indexer_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// SetPassPhase marks phase as the current pass phase.
func SetPassPhase(phase string, all []string) {
	for _, p := range all {
		value := 0.0
		if p == phase {
			value = 1
		}
		PassPhase.WithLabelValues(p).Set(value)
	}
}

// ObserveRPC records one RPC call.
func ObserveRPC(method string, start time.Time, err error) {
	RPCCallsTotal.WithLabelValues(method, outcome(err)).Inc()
	RPCLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// ObserveStore records one store operation.
func ObserveStore(op string, start time.Time, err error) {
	StoreOpsTotal.WithLabelValues(op, outcome(err)).Inc()
	StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveHTTP records one served request.
func ObserveHTTP(route string, code int, start time.Time) {
	HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
