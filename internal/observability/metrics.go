package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics набор коллекторов сервиса. Методы безопасны для nil-получателя,
// чтобы компоненты можно было собирать в тестах без метрик.
type Metrics struct {
	reg prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	FallbackRepliesTotal    *prometheus.CounterVec
	CredentialOverloaded    prometheus.Gauge
	CredentialPoolSize      prometheus.Gauge
}

// NewMetrics создаёт и регистрирует коллекторы в собственном реестре.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"route", "method"},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_requests_total",
				Help: "Upstream generateContent attempts by outcome",
			},
			[]string{"outcome"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "Upstream generateContent attempt duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		FallbackRepliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fallback_replies_total",
				Help: "Canned replies returned instead of a model answer",
			},
			[]string{"reason"},
		),
		CredentialOverloaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "credential_overloaded",
			Help: "Number of credentials currently marked overloaded",
		}),
		CredentialPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "credential_pool_size",
			Help: "Number of configured credentials",
		}),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.FallbackRepliesTotal,
		m.CredentialOverloaded,
		m.CredentialPoolSize,
	)
	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveUpstream(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) Fallback(reason string) {
	if m == nil {
		return
	}
	m.FallbackRepliesTotal.WithLabelValues(reason).Inc()
}

// SetOverloaded подходит как наблюдатель пула ключей.
func (m *Metrics) SetOverloaded(n int) {
	if m == nil {
		return
	}
	m.CredentialOverloaded.Set(float64(n))
}

func (m *Metrics) SetPoolSize(n int) {
	if m == nil {
		return
	}
	m.CredentialPoolSize.Set(float64(n))
}

// HTTPMiddleware пишет счётчик и длительность по шаблону маршрута chi.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
