// Package metrics holds the Prometheus instruments of the control plane.
//
// All instruments live on a private registry so tests and the CLI can export
// exactly what one process recorded. A nil *Metrics records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hvplane"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics groups every instrument.
type Metrics struct {
	registry *prometheus.Registry

	backendCallsTotal *prometheus.CounterVec
	backendLatency    *prometheus.HistogramVec
	locateTotal       *prometheus.CounterVec
	scanFailures      *prometheus.CounterVec
	vmCreationsTotal  *prometheus.CounterVec
	planEstimate      *prometheus.GaugeVec
}

// New creates the instruments and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		backendCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "calls_total",
				Help:      "Total number of hypervisor API calls by backend, operation and result",
			},
			[]string{"backend", "operation", "result"},
		),

		backendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "latency_seconds",
				Help:      "Latency of hypervisor API calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"backend", "operation"},
		),

		locateTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "locator",
				Name:      "lookups_total",
				Help:      "Total number of VM lookups by outcome (found, not_found, cached)",
			},
			[]string{"outcome"},
		),

		scanFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "locator",
				Name:      "scan_failures_total",
				Help:      "Per-hypervisor check failures swallowed during a scan",
			},
			[]string{"hypervisor"},
		),

		vmCreationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "vm_creations_total",
				Help:      "Total number of VM creation attempts by mode and result",
			},
			[]string{"mode", "result"},
		),

		planEstimate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "capacity",
				Name:      "plan_estimate",
				Help:      "How many VMs of a plan fit on a node at the last aggregation",
			},
			[]string{"hypervisor", "node", "plan"},
		),
	}

	m.registry.MustRegister(
		m.backendCallsTotal,
		m.backendLatency,
		m.locateTotal,
		m.scanFailures,
		m.vmCreationsTotal,
		m.planEstimate,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBackendCall records one outbound hypervisor call.
func (m *Metrics) ObserveBackendCall(backend, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.backendCallsTotal.WithLabelValues(backend, operation, result(err)).Inc()
	m.backendLatency.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}

// RecordLocate records the outcome of a VM lookup.
func (m *Metrics) RecordLocate(outcome string) {
	if m == nil {
		return
	}
	m.locateTotal.WithLabelValues(outcome).Inc()
}

// RecordScanFailure records a swallowed per-hypervisor failure.
func (m *Metrics) RecordScanFailure(hypervisorID string) {
	if m == nil {
		return
	}
	m.scanFailures.WithLabelValues(hypervisorID).Inc()
}

// RecordCreation records a VM creation attempt.
func (m *Metrics) RecordCreation(mode string, err error) {
	if m == nil {
		return
	}
	m.vmCreationsTotal.WithLabelValues(mode, result(err)).Inc()
}

// SetPlanEstimate publishes the latest plan estimate for a node.
func (m *Metrics) SetPlanEstimate(hypervisorID, node, plan string, estimate int64) {
	if m == nil {
		return
	}
	m.planEstimate.WithLabelValues(hypervisorID, node, plan).Set(float64(estimate))
}

// WriteTextfile writes the registry in Prometheus text format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
