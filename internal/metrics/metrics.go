// Package metrics exposes Prometheus collectors for gameplay and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quiz"

// Metrics holds the service collectors on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	AnswersTotal     *prometheus.CounterVec
	PointsTotal      prometheus.Counter
	SessionsFinished prometheus.Counter
	BestPromotions   prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AnswersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Recorded answers by correctness.",
		}, []string{"correct"}),
		PointsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points awarded across all answers.",
		}),
		SessionsFinished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Sessions that transitioned to finished.",
		}),
		BestPromotions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_promotions_total",
			Help:      "Consolidations that promoted a new best session.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
	}
}

func (m *Metrics) AnswerRecorded(correct bool, points int) {
	m.AnswersTotal.WithLabelValues(strconv.FormatBool(correct)).Inc()
	m.PointsTotal.Add(float64(points))
}

func (m *Metrics) SessionFinished() {
	m.SessionsFinished.Inc()
}

func (m *Metrics) BestPromoted() {
	m.BestPromotions.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request duration labelled by the matched chi route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
