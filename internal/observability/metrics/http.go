package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics holds the API-side instruments: the generic HTTP
// request triple plus chat, context, and token counters. Everything
// lives on a private registry so /metrics exposes only what this
// service registered.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatStrategyTotal   *prometheus.CounterVec
	chatTurnsTotal      *prometheus.CounterVec
	chatToolCallsTotal  *prometheus.CounterVec
	contextHitTotal     *prometheus.CounterVec
	contextMissTotal    *prometheus.CounterVec
	contextSources      *prometheus.HistogramVec
	contextBundleTokens *prometheus.HistogramVec
	contextConfidence   *prometheus.HistogramVec
	contextDuration     *prometheus.HistogramVec
	llmTokensTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &HTTPServerMetrics{
		registry: registry,
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cma",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cma",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		requestInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "cma",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		chatStrategyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cma",
			Subsystem: "chat",
			Name:      "strategy_requests_total",
			Help:      "Total successful chat requests by effective context strategy.",
		}, []string{"service", "endpoint", "strategy"}),
		chatTurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cma",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total completed chat turns by finish reason.",
		}, []string{"service", "endpoint", "finish_reason"}),
		chatToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cma",
			Subsystem: "chat",
			Name:      "tool_calls_total",
			Help:      "Total tool calls performed during chat turns.",
		}, []string{"service", "tool", "status"}),
		contextHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cma",
			Subsystem: "context",
			Name:      "retrieval_hit_total",
			Help:      "Total requests whose assembled context contained at least one source.",
		}, []string{"service", "endpoint"}),
		contextMissTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cma",
			Subsystem: "context",
			Name:      "no_context_total",
			Help:      "Total requests answered without retrieved context.",
		}, []string{"service", "endpoint"}),
		contextSources: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cma",
			Subsystem: "context",
			Name:      "sources",
			Help:      "Distribution of sources per assembled context bundle.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}, []string{"service", "endpoint"}),
		contextBundleTokens: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cma",
			Subsystem: "context",
			Name:      "bundle_tokens",
			Help:      "Distribution of estimated tokens per assembled context bundle.",
			Buckets:   []float64{0, 100, 250, 500, 1000, 2000, 3000, 4000, 6000},
		}, []string{"service", "endpoint"}),
		contextConfidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cma",
			Subsystem: "context",
			Name:      "confidence",
			Help:      "Distribution of aggregate confidence per assembled context bundle.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}, []string{"service", "endpoint"}),
		contextDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cma",
			Subsystem: "context",
			Name:      "duration_seconds",
			Help:      "Context assembly and chat execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "endpoint"}),
		llmTokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cma",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Approximate token usage by direction.",
		}, []string{"service", "endpoint", "direction", "model"}),
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(sw, r)

		path := normalizePath(r.URL.Path)
		m.requestTotal.WithLabelValues(service, r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(started).Seconds())
	})
}

// normalizePath templates id-bearing paths so label cardinality stays
// bounded by the route table.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	case strings.HasPrefix(path, "/v1/patients/") && strings.HasSuffix(path, "/documents"):
		return "/v1/patients/{patient_id}/documents"
	case strings.HasPrefix(path, "/v1/patients/"):
		return "/v1/patients/{patient_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordStrategyRequest(service, endpoint, strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.chatStrategyTotal.WithLabelValues(service, endpoint, strategy).Inc()
}

func (m *HTTPServerMetrics) RecordContextObservation(service, endpoint string, sourceCount, tokenEstimate int, confidence float64, duration time.Duration) {
	m.contextSources.WithLabelValues(service, endpoint).Observe(float64(sourceCount))
	m.contextBundleTokens.WithLabelValues(service, endpoint).Observe(float64(tokenEstimate))
	m.contextConfidence.WithLabelValues(service, endpoint).Observe(confidence)
	m.contextDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if sourceCount > 0 {
		m.contextHitTotal.WithLabelValues(service, endpoint).Inc()
		return
	}
	m.contextMissTotal.WithLabelValues(service, endpoint).Inc()
}

func (m *HTTPServerMetrics) RecordTurn(service, endpoint, finishReason string) {
	if finishReason == "" {
		finishReason = "unknown"
	}
	m.chatTurnsTotal.WithLabelValues(service, endpoint, finishReason).Inc()
}

func (m *HTTPServerMetrics) RecordToolCall(service, tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.chatToolCallsTotal.WithLabelValues(service, tool, status).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, endpoint, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, endpoint, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, endpoint, "out", model).Add(float64(completionTokens))
	}
}

// statusWriter keeps the wrapped writer's optional interfaces reachable
// while capturing the status code for labeling.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
}

func (w *statusWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}
