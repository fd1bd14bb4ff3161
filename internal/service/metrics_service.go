package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lms-submission-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	classifierFailures prometheus.Counter
	classifierLatency  prometheus.Observer
	flagsRecorded      prometheus.Counter
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Total submissions persisted, by resulting status",
	}, []string{"status"})

	classifierFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classifier_failures_total",
		Help: "Total classifier calls that failed and fell open",
	})

	classifierLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "classifier_request_seconds",
		Help:    "Latency of classifier calls",
		Buckets: prometheus.DefBuckets,
	})

	flagsRecorded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ai_flags_recorded_total",
		Help: "Total AI flags recorded in the ledger",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissionsTotal, classifierFailures, classifierLatency, flagsRecorded, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		submissionsTotal:   submissionsTotal,
		classifierFailures: classifierFailures,
		classifierLatency:  classifierLatency,
		flagsRecorded:      flagsRecorded,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records duration and count for a served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// SubmissionRecorded counts a persisted submission by its resulting status.
func (s *MetricsService) SubmissionRecorded(status models.SubmissionStatus) {
	s.submissionsTotal.WithLabelValues(string(status)).Inc()
}

// ClassifierFailed counts one fail-open classifier call.
func (s *MetricsService) ClassifierFailed() {
	s.classifierFailures.Inc()
}

// ObserveClassifier records the latency of a classifier call.
func (s *MetricsService) ObserveClassifier(duration time.Duration) {
	s.classifierLatency.Observe(duration.Seconds())
}

// FlagRecorded counts one ledger increment.
func (s *MetricsService) FlagRecorded() {
	s.flagsRecorded.Inc()
}
