package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "contentserver"

// NewMetrics creates the server metrics on a registry of their own.
// One instance is shared by the workers of successive epochs.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		renderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Index page requests that failed to load content or render.",
		}),
		epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Workers started.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_state",
			Help:      "Current worker state: 0 starting, 1 running, 2 paused, 3 stopping, 4 stopped.",
		}),
	}
	m.reg.MustRegister(
		m.requests,
		m.renderErrors,
		m.epochs,
		m.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Metrics holds the prometheus collectors of the server
type Metrics struct {
	reg          *prometheus.Registry
	requests     *prometheus.CounterVec
	renderErrors prometheus.Counter
	epochs       prometheus.Counter
	state        prometheus.Gauge
}

// Handler returns the /metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// instrument counts the requests served by h under route
func (m *Metrics) instrument(route string, h http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(prometheus.Labels{"route": route}), h)
}
