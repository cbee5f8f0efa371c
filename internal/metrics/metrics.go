package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Ingestion metrics
	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_events_processed_total",
			Help: "Total number of contract events processed, by kind",
		},
		[]string{"kind"},
	)
	EventsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_events_skipped_total",
			Help: "Events dropped before reaching a handler",
		},
		[]string{"kind", "reason"},
	)
	HandlerSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_handler_skips_total",
			Help: "Lifecycle events that found no prior state for their key",
		},
		[]string{"kind", "reason"},
	)
	ChainHeadBlock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_chain_head_block",
			Help: "Latest block number reported by the RPC node",
		},
	)
	CheckpointBlock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexer_checkpoint_block",
			Help: "Last durably processed block number",
		},
	)

	// RPC client metrics
	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexer_rpc_requests_total",
			Help: "Total number of JSON-RPC requests",
		},
		[]string{"method", "status"},
	)
	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "indexer_rpc_request_duration_seconds",
			Help: "Duration of JSON-RPC requests in seconds",
		},
		[]string{"method"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsInFlight)

	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(EventsSkippedTotal)
	prometheus.MustRegister(HandlerSkipsTotal)
	prometheus.MustRegister(ChainHeadBlock)
	prometheus.MustRegister(CheckpointBlock)

	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)

	prometheus.MustRegister(prometheus.NewGoCollector())
	prometheus.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
