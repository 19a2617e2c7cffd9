// Package metrics собирает метрики Prometheus реконсилятора, контроля доступа и HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "premium_access"

// Collector реализует billing.Metrics, access.DenialRecorder и backlog.Gauge.
type Collector struct {
	events             *prometheus.CounterVec
	stateWriteFailures *prometheus.CounterVec
	accessDenied       *prometheus.CounterVec
	unprocessedEvents  prometheus.Gauge
	httpRequests       *prometheus.CounterVec
	httpLatency        *prometheus.HistogramVec
}

// NewCollector создаёт Collector и регистрирует метрики в reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_events_total",
			Help:      "Billing events handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		stateWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_write_failures_total",
			Help:      "Events recorded but not applied to subscription state.",
		}, []string{"kind"}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Row access denials, by table and operation.",
		}, []string{"table", "op"}),
		unprocessedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unprocessed_events",
			Help:      "Events waiting for manual replay.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.events,
		c.stateWriteFailures,
		c.accessDenied,
		c.unprocessedEvents,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

// RecordEvent учитывает обработанное событие.
func (c *Collector) RecordEvent(kind, outcome string) {
	c.events.WithLabelValues(kind, outcome).Inc()
}

// RecordStateWriteFailure учитывает событие, которое требует ручного повтора.
func (c *Collector) RecordStateWriteFailure(kind string) {
	c.stateWriteFailures.WithLabelValues(kind).Inc()
}

// RecordAccessDenied учитывает отказ в доступе.
func (c *Collector) RecordAccessDenied(table, op string) {
	c.accessDenied.WithLabelValues(table, op).Inc()
}

// SetUnprocessedEvents выставляет размер очереди на ручной повтор.
func (c *Collector) SetUnprocessedEvents(n int) {
	c.unprocessedEvents.Set(float64(n))
}

// Middleware считает HTTP-запросы и их длительность.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		c.httpLatency.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler возвращает обработчик для скрейпа Prometheus.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
