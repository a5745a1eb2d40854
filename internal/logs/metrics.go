package logs

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts fan-out outcomes per deployment. Each instance owns its
// registry so the CLI can dump it to a node-exporter textfile after a run.
type Metrics struct {
	registry *prometheus.Registry

	machinesTotal *prometheus.CounterVec
	hostKeyResets *prometheus.CounterVec
	duration      *prometheus.GaugeVec
}

// NewMetrics creates and registers the fan-out metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		machinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "testnet_deploy",
				Subsystem: "logs",
				Name:      "machines_total",
				Help:      "Machines processed by operation and result",
			},
			[]string{"deployment", "operation", "result"},
		),
		hostKeyResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "testnet_deploy",
				Subsystem: "logs",
				Name:      "host_key_resets_total",
				Help:      "Known-hosts entries removed before a retry",
			},
			[]string{"deployment"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "testnet_deploy",
				Subsystem: "logs",
				Name:      "last_run_duration_seconds",
				Help:      "Duration of the last fan-out in seconds",
			},
			[]string{"deployment", "operation"},
		),
	}
	m.registry.MustRegister(m.machinesTotal, m.hostKeyResets, m.duration)
	return m
}

// Results recorded by the fan-outs.
const (
	resultSynced     = "synced"
	resultRetried    = "retried"
	resultUnresolved = "unresolved"
	resultMatched    = "matched"
	resultNoMatches  = "no_matches"
	resultFailed     = "failed"
)

func (m *Metrics) record(deployment, operation, result string) {
	if m == nil {
		return
	}
	m.machinesTotal.WithLabelValues(deployment, operation, result).Inc()
}

func (m *Metrics) hostKeyReset(deployment string) {
	if m == nil {
		return
	}
	m.hostKeyResets.WithLabelValues(deployment).Inc()
}

func (m *Metrics) observe(deployment, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(deployment, operation).Set(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
