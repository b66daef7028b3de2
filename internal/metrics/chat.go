package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ChatRequestsTotal tracks chat requests by mode and outcome.
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asksite",
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests",
		},
		[]string{"mode", "status"},
	)

	// ChatRequestDuration tracks end-to-end chat request latency.
	ChatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asksite",
			Name:      "chat_request_duration_seconds",
			Help:      "Chat request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	// ProviderRequestsTotal tracks upstream LLM calls by provider and model.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asksite",
			Name:      "provider_requests_total",
			Help:      "Total number of upstream LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderTokensTotal tracks token usage reported by providers.
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asksite",
			Name:      "provider_tokens_total",
			Help:      "Total tokens consumed, split by direction",
		},
		[]string{"provider", "model", "direction"},
	)

	// ToolInvocationsTotal tracks tool calls made during chat rounds.
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asksite",
			Name:      "tool_invocations_total",
			Help:      "Total number of tool invocations",
		},
		[]string{"tool"},
	)

	// IndexRebuildsTotal tracks content index rebuilds by trigger and outcome.
	IndexRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asksite",
			Name:      "index_rebuilds_total",
			Help:      "Total number of content index rebuilds",
		},
		[]string{"trigger", "status"},
	)

	// IndexRebuildDuration tracks how long index rebuilds take.
	IndexRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "asksite",
			Name:      "index_rebuild_duration_seconds",
			Help:      "Content index rebuild duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// IndexDocuments reports the size of the current index snapshot.
	IndexDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "asksite",
			Name:      "index_documents",
			Help:      "Number of documents in the current index snapshot",
		},
	)

	// LiveFetchesTotal tracks outbound page fetches during rebuilds and tool calls.
	LiveFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asksite",
			Name:      "live_fetches_total",
			Help:      "Total number of outbound content fetches",
		},
		[]string{"status"},
	)
)

var chatMetricsRegistered bool

// RegisterChatMetrics registers chat pipeline metrics with the default
// registry. Safe to call once at startup.
func RegisterChatMetrics() {
	if chatMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		ChatRequestsTotal,
		ChatRequestDuration,
		ProviderRequestsTotal,
		ProviderTokensTotal,
		ToolInvocationsTotal,
		IndexRebuildsTotal,
		IndexRebuildDuration,
		IndexDocuments,
		LiveFetchesTotal,
	)
	chatMetricsRegistered = true
}

// ObserveChatRequest records a completed chat request.
func ObserveChatRequest(mode, status string, start time.Time) {
	ChatRequestsTotal.WithLabelValues(mode, status).Inc()
	ChatRequestDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
