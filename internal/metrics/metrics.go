// Package metrics exports the outcome of a collection run as a Prometheus
// textfile, for node_exporter's textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danieljhkim/cargo-gc-target/internal/sweep"
)

const namespace = "cargo_gc_target"

// GCMetrics holds the gauges of one run on a private registry.
type GCMetrics struct {
	registry *prometheus.Registry

	entries     *prometheus.GaugeVec
	bytes       *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
	unparseable prometheus.Gauge
	anomalies   prometheus.Gauge
	dryRun      prometheus.Gauge
}

// New registers the run gauges on a fresh registry.
func New() *GCMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &GCMetrics{
		registry: reg,
		entries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Inventory entries by outcome in the last run",
		}, []string{"outcome"}),
		bytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bytes",
			Help:      "Bytes by outcome in the last run",
		}, []string{"outcome"}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of the sweep phase",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Start time of the last run",
		}),
		unparseable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unparseable_records",
			Help:      "Fingerprint records kept because they could not be parsed",
		}),
		anomalies: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalies",
			Help:      "Dependency cycles seen while tracing",
		}),
		dryRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dry_run",
			Help:      "1 when the last run did not delete anything",
		}),
	}
}

// Observe records a report.
func (m *GCMetrics) Observe(r *sweep.Report) {
	for outcome, t := range map[string]sweep.Tally{
		"kept":     r.Kept,
		"deleted":  r.Deleted,
		"skipped":  r.Skipped,
		"failed":   r.Failed,
		"vanished": r.Vanished,
	} {
		m.entries.WithLabelValues(outcome).Set(float64(t.Count))
		m.bytes.WithLabelValues(outcome).Set(float64(t.Bytes))
	}
	m.duration.Set(r.Duration.Seconds())
	m.lastRun.Set(float64(r.StartedAt.Unix()))
	m.unparseable.Set(float64(len(r.Unparseable)))
	m.anomalies.Set(float64(len(r.Anomalies)))
	if r.DryRun {
		m.dryRun.Set(1)
	} else {
		m.dryRun.Set(0)
	}
}

// Gatherer exposes the registry.
func (m *GCMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile atomically writes the gauges to path.
func (m *GCMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
