package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/errors"
)

const namespace = "itunes_scraper"

// PrometheusHooks implements [HTTPHooks] and [OperationHooks] with
// Prometheus counters and histograms.
type PrometheusHooks struct {
	requests     *prometheus.CounterVec
	responses    *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
	operations   *prometheus.HistogramVec
	opErrors     *prometheus.CounterVec
	batchSkipped *prometheus.CounterVec
}

// NewPrometheusHooks creates the collectors and registers them with reg.
// A nil reg leaves the collectors unregistered, which is handy in tests.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	h := &PrometheusHooks{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outgoing storefront requests.",
		}, []string{"host"}),
		responses: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_seconds",
			Help:      "Storefront response latency by status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"host", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Storefront requests that failed before a response arrived.",
		}, []string{"host"}),
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_seconds",
			Help:      "Scraper operation latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed scraper operations by error code.",
		}, []string{"op", "code"}),
		batchSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_skipped_total",
			Help:      "Batch members omitted after a failed lookup.",
		}, []string{"country"}),
	}
	if reg != nil {
		reg.MustRegister(h.requests, h.responses, h.httpErrors, h.operations, h.opErrors, h.batchSkipped)
	}
	return h
}

func (h *PrometheusHooks) OnRequest(_ context.Context, _, host, _ string) {
	h.requests.WithLabelValues(host).Inc()
}

func (h *PrometheusHooks) OnResponse(_ context.Context, _, host, _ string, statusCode int, d time.Duration) {
	h.responses.WithLabelValues(host, statusLabel(statusCode)).Observe(d.Seconds())
}

func (h *PrometheusHooks) OnError(_ context.Context, _, host, _ string, _ error) {
	h.httpErrors.WithLabelValues(host).Inc()
}

func (h *PrometheusHooks) OnOperationComplete(_ context.Context, op string, d time.Duration, err error) {
	h.operations.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		h.opErrors.WithLabelValues(op, codeLabel(err)).Inc()
	}
}

func (h *PrometheusHooks) OnBatchItemSkipped(_ context.Context, country string, _ error) {
	h.batchSkipped.WithLabelValues(country).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func codeLabel(err error) string {
	if code := apperrors.GetCode(err); code != "" {
		return string(code)
	}
	return "UNKNOWN"
}

var (
	_ HTTPHooks      = (*PrometheusHooks)(nil)
	_ OperationHooks = (*PrometheusHooks)(nil)
)
