package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ModuleMetrics tracks request outcomes per protocol module and method.
type ModuleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewModuleMetrics registers the module metric family on the given registerer.
// Pass nil to use the default registerer.
func NewModuleMetrics(reg prometheus.Registerer) *ModuleMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &ModuleMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credora",
			Subsystem: "module",
			Name:      "requests_total",
			Help:      "Total module requests by module and method.",
		}, []string{"module", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credora",
			Subsystem: "module",
			Name:      "errors_total",
			Help:      "Total module request failures by module, method and code.",
		}, []string{"module", "method", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "credora",
			Subsystem: "module",
			Name:      "request_duration_seconds",
			Help:      "Module request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"module", "method"}),
	}
}

// Observe records one completed request.
func (m *ModuleMetrics) Observe(module, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(module, method).Inc()
	m.latency.WithLabelValues(module, method).Observe(d.Seconds())
}

// ObserveError records one failed request with its error code.
func (m *ModuleMetrics) ObserveError(module, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(module, method, code).Inc()
}
