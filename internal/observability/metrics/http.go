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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

// HTTPServerMetrics covers the api process: generic HTTP counters plus the
// retrieval-pipeline observations recorded per query.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal            *prometheus.CounterVec
	queryDuration         *prometheus.HistogramVec
	rankedSources         *prometheus.HistogramVec
	stageDuration         *prometheus.HistogramVec
	partialRetrievalTotal *prometheus.CounterVec
	rerankOutcomeTotal    *prometheus.CounterVec
	queryDomainTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kqa",
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Total completed pipeline queries by outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kqa",
			Subsystem: "pipeline",
			Name:      "query_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	rankedSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kqa",
			Subsystem: "pipeline",
			Name:      "ranked_sources",
			Help:      "Distribution of ranked sources returned per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kqa",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	partialRetrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kqa",
			Subsystem: "pipeline",
			Name:      "partial_retrieval_total",
			Help:      "Queries served with one retrieval source degraded.",
		},
		[]string{"service", "source"},
	)
	rerankOutcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kqa",
			Subsystem: "pipeline",
			Name:      "rerank_outcome_total",
			Help:      "Rerank stage outcomes for queries that requested it.",
		},
		[]string{"service", "outcome"},
	)
	queryDomainTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kqa",
			Subsystem: "pipeline",
			Name:      "domain_total",
			Help:      "Classified content domain per query.",
		},
		[]string{"service", "domain"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		rankedSources,
		stageDuration,
		partialRetrievalTotal,
		rerankOutcomeTotal,
		queryDomainTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		queryTotal:            queryTotal,
		queryDuration:         queryDuration,
		rankedSources:         rankedSources,
		stageDuration:         stageDuration,
		partialRetrievalTotal: partialRetrievalTotal,
		rerankOutcomeTotal:    rerankOutcomeTotal,
		queryDomainTotal:      queryDomainTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordPipelineResult translates one PipelineResult into counters so
// degradations show up on dashboards even though the request succeeded.
func (m *HTTPServerMetrics) RecordPipelineResult(
	service, endpoint string,
	result *domain.PipelineResult,
	rerankRequested bool,
	duration time.Duration,
) {
	m.queryTotal.WithLabelValues(service, endpoint, "success").Inc()
	m.queryDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.rankedSources.WithLabelValues(service, endpoint).Observe(float64(len(result.RankedSources)))

	m.stageDuration.WithLabelValues(service, "semantic").Observe(result.Timings.SemanticMs / 1000.0)
	m.stageDuration.WithLabelValues(service, "lexical").Observe(result.Timings.LexicalMs / 1000.0)
	if result.Timings.RerankMs > 0 {
		m.stageDuration.WithLabelValues(service, "rerank").Observe(result.Timings.RerankMs / 1000.0)
	}

	if result.DegradedSource != "" {
		m.partialRetrievalTotal.WithLabelValues(service, string(result.DegradedSource)).Inc()
	}
	if rerankRequested {
		outcome := "used"
		if !result.RerankerUsed {
			outcome = "degraded"
		}
		m.rerankOutcomeTotal.WithLabelValues(service, outcome).Inc()
	}
	m.queryDomainTotal.WithLabelValues(service, string(result.Domain.Domain)).Inc()
}

func (m *HTTPServerMetrics) RecordPipelineFailure(service, endpoint string) {
	m.queryTotal.WithLabelValues(service, endpoint, "error").Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
