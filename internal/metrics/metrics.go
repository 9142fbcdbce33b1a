// Package metrics exposes Prometheus instruments for the detection engine.
package metrics

import (
	"time"

	"github.com/nao1215/spoilerguard/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spoilerguard"

// Metrics groups the engine instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Redactions counts placeholders created, by source.
	Redactions *prometheus.CounterVec
	// Reveals counts placeholders opened by the reader.
	Reveals prometheus.Counter
	// Restores counts placeholders removed because of a mode change.
	Restores *prometheus.CounterVec
	// ClassifierBatches counts classifier batches by outcome.
	ClassifierBatches *prometheus.CounterVec
	// ScanDuration observes scan pass latency by trigger.
	ScanDuration *prometheus.HistogramVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Redactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redactions_total",
				Help:      "Total number of elements replaced by a placeholder",
			},
			[]string{"source"},
		),
		Reveals: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reveals_total",
				Help:      "Total number of placeholders revealed by the reader",
			},
		),
		Restores: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restores_total",
				Help:      "Total number of placeholders restored after a detection mode change",
			},
			[]string{"source"},
		),
		ClassifierBatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_batches_total",
				Help:      "Total number of classifier batches by outcome",
			},
			[]string{"outcome"},
		),
		ScanDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of detection passes",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
	}
}

// Redacted counts one redaction.
func (m *Metrics) Redacted(src model.Source) {
	if m == nil {
		return
	}
	m.Redactions.WithLabelValues(string(src)).Inc()
}

// Revealed counts one reveal.
func (m *Metrics) Revealed() {
	if m == nil {
		return
	}
	m.Reveals.Inc()
}

// Restored counts one mode-change restore.
func (m *Metrics) Restored(src model.Source) {
	if m == nil {
		return
	}
	m.Restores.WithLabelValues(string(src)).Inc()
}

// Batch counts one classifier batch outcome.
func (m *Metrics) Batch(outcome string) {
	if m == nil {
		return
	}
	m.ClassifierBatches.WithLabelValues(outcome).Inc()
}

// ObserveScan records the duration of one pass.
func (m *Metrics) ObserveScan(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.WithLabelValues(trigger).Observe(d.Seconds())
}
