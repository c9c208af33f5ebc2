package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasleuth_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datasleuth_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasleuth_tool_calls_total",
			Help: "Total number of MCP tool calls.",
		},
		[]string{"tool_name", "status"},
	)

	toolCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datasleuth_tool_call_duration_seconds",
			Help:    "Duration of MCP tool calls.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"tool_name"},
	)

	authFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasleuth_auth_failures_total",
			Help: "Total number of authentication failures.",
		},
		[]string{"reason"},
	)

	engineStatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasleuth_engine_statements_total",
			Help: "Total number of statements executed against the embedded engine.",
		},
		[]string{"status"},
	)

	engineStatementDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datasleuth_engine_statement_duration_seconds",
			Help:    "Duration of embedded engine statements.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	registeredSources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasleuth_registered_sources",
			Help: "Current count of registered data sources.",
		},
	)
)

func ObserveToolCall(toolName string, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	toolCallsTotal.WithLabelValues(toolName, status).Inc()
	toolCallDurationSeconds.WithLabelValues(toolName).Observe(elapsed.Seconds())
}

func ObserveEngineStatement(err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	engineStatementsTotal.WithLabelValues(status).Inc()
	engineStatementDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

func SetRegisteredSources(count int) {
	registeredSources.Set(float64(count))
}
