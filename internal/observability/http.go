package observability

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// traceHeader carries the request trace ID end to end. MCP clients that send
// one keep it; everyone else gets a fresh one.
const traceHeader = "X-Trace-ID"

func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set(traceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ContextWithTraceID(r.Context(), traceID)))
	})
}

// routeLabel collapses everything owned by the streamable MCP transport into
// one label. Session paths are client-chosen, and labeling them individually
// would blow up metric cardinality.
func routeLabel(path string) string {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return path
	default:
		return "/mcp"
	}
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meter := &responseMeter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(meter, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(meter.code)
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// LoggingMiddleware emits one record per request with the trace ID bound as a
// logger attr, so anything the handler logs underneath correlates by trace.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			meter := &responseMeter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(meter, r)

			logger.With(slog.String("trace_id", TraceIDFromContext(r.Context()))).InfoContext(
				r.Context(), "http_request",
				slog.String("method", r.Method),
				slog.String("route", routeLabel(r.URL.Path)),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", meter.code),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int("bytes", meter.written),
			)
		})
	}
}

// responseMeter records what the wrapped handler actually sent.
type responseMeter struct {
	http.ResponseWriter
	code    int
	written int
}

func (m *responseMeter) WriteHeader(code int) {
	m.code = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(body []byte) (int, error) {
	n, err := m.ResponseWriter.Write(body)
	m.written += n
	return n, err
}
