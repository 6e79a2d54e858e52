// Package metrics exports operation and deployment gauges to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zpdzap/drydock/internal/state"
)

const namespace = "drydock"

var histogramBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

// Recorder implements runtime.Recorder on top of Prometheus collectors.
type Recorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	timeouts   *prometheus.CounterVec
	running    *prometheus.GaugeVec
	healthy    *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered are reused, so New may be called more than once
// against the same registry.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Lifecycle operations per deployment by verb and outcome",
		}, []string{"verb", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of lifecycle operations",
			Buckets:   histogramBuckets,
		}, []string{"verb"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_timeouts_total",
			Help:      "Processes killed after the operation timeout",
		}, []string{"verb"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deployment_running",
			Help:      "1 if the deployment was last seen running",
		}, []string{"id"}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deployment_healthy",
			Help:      "1 if the deployment was last seen healthy",
		}, []string{"id"}),
	}
	if reg == nil {
		return r
	}

	r.operations = register(reg, r.operations)
	r.duration = register(reg, r.duration)
	r.timeouts = register(reg, r.timeouts)
	r.running = register(reg, r.running)
	r.healthy = register(reg, r.healthy)
	return r
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Recorder) ObserveOperation(verb, outcome string, d time.Duration) {
	r.operations.With(prometheus.Labels{"verb": verb, "outcome": outcome}).Inc()
	r.duration.With(prometheus.Labels{"verb": verb}).Observe(d.Seconds())
}

func (r *Recorder) ObserveTimeout(verb string) {
	r.timeouts.With(prometheus.Labels{"verb": verb}).Inc()
}

func (r *Recorder) ObserveState(s state.DeploymentState) {
	r.running.With(prometheus.Labels{"id": s.ID()}).Set(boolGauge(s.IsRunning()))
	r.healthy.With(prometheus.Labels{"id": s.ID()}).Set(boolGauge(s.IsRunning() && s.IsHealthy()))
}

// Forget drops the gauges of a deployment that is no longer registered.
func (r *Recorder) Forget(id string) {
	r.running.DeleteLabelValues(id)
	r.healthy.DeleteLabelValues(id)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves the metrics in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
