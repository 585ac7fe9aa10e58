// Package metric provides Prometheus metrics for webpanel.
//
// It exposes metrics in Prometheus format for monitoring listener
// lifecycle transitions, port negotiation, TLS material loads, and
// request handling.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes all webpanel metrics.
const namespace = "webpanel"

// Registry holds all application metrics.
//
// Listener instances are labelled "http" or "https".
type Registry struct {
	reg *prometheus.Registry

	// Listener metrics
	ListenerUp       *prometheus.GaugeVec
	ListenerPort     *prometheus.GaugeVec
	ListenerRestarts *prometheus.CounterVec
	ListenerErrors   *prometheus.CounterVec

	// Port negotiation metrics
	PortAdjustments prometheus.Counter

	// TLS material metrics
	CertLoads          *prometheus.CounterVec
	CertsDiscarded     prometheus.Counter
	CertNotAfterOldest prometheus.Gauge

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a new metrics registry with all webpanel metrics
// registered, plus the standard Go and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg: reg,

		ListenerUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listener_up",
			Help:      "Whether the listener instance is currently bound and serving (1) or not (0).",
		}, []string{"instance"}),

		ListenerPort: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listener_port",
			Help:      "Effective port the listener instance is bound to (0 when stopped).",
		}, []string{"instance"}),

		ListenerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_restarts_total",
			Help:      "Number of stop/start cycles driven by configuration changes.",
		}, []string{"instance"}),

		ListenerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_errors_total",
			Help:      "Number of listener errors (bind failures, degraded TLS).",
		}, []string{"instance"}),

		PortAdjustments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_adjustments_total",
			Help:      "Times the requested port was occupied and a higher port was negotiated.",
		}),

		CertLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tls_material_loads_total",
			Help:      "TLS material load attempts by result (usable, degraded).",
		}, []string{"result"}),

		CertsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tls_certificates_discarded_total",
			Help:      "Certificates discarded during load for being invalid or expired.",
		}),

		CertNotAfterOldest: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tls_certificate_not_after_seconds",
			Help:      "Unix time at which the soonest-expiring installed certificate expires.",
		}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by instance and status code class.",
		}, []string{"instance", "code"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"instance"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
