package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes recorded by MetricsService.
const (
	BookingOutcomeBooked      = "booked"
	BookingOutcomeUnavailable = "unavailable"
	BookingOutcomeInvalid     = "invalid"
	BookingOutcomeBusy        = "busy"
	BookingOutcomeError       = "error"
)

// MetricsService encapsulates Prometheus instrumentation for the ledger.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	bookings        *prometheus.CounterVec
	bookingAttempts prometheus.Observer
	lockWait        prometheus.Observer
	availability    *prometheus.CounterVec
}

// NewMetricsService registers the ledger collectors on a private registry.
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meetings_cache_lookups_total",
		Help: "Meeting listing cache lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache reads",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_total",
		Help: "Booking requests by outcome",
	}, []string{"outcome"})

	bookingAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_attempts",
		Help:    "Check-then-act attempts needed per booking",
		Buckets: []float64{1, 2, 3, 5},
	})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_lock_wait_seconds",
		Help:    "Time spent waiting for the per-coach lock",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 3},
	})

	availability := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_changes_total",
		Help: "Availability mutations by operation and effect",
	}, []string{"op", "effect"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration,
		requestTotal,
		cacheLookups,
		cacheLatency,
		cacheWrite,
		bookings,
		bookingAttempts,
		lockWait,
		availability,
		goroutines,
		collectors.NewGoCollector(),
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		bookings:        bookings,
		bookingAttempts: bookingAttempts,
		lockWait:        lockWait,
		availability:    availability,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordBooking counts a booking outcome and the attempts it took.
func (m *MetricsService) RecordBooking(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.bookingAttempts.Observe(float64(attempts))
	}
}

// ObserveLockWait records time spent acquiring a coach lock.
func (m *MetricsService) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

// RecordAvailabilityChange counts add/remove calls and whether they changed state.
func (m *MetricsService) RecordAvailabilityChange(op string, changed bool) {
	if m == nil {
		return
	}
	effect := "noop"
	if changed {
		effect = "applied"
	}
	m.availability.WithLabelValues(op, effect).Inc()
}
