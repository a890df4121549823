// Package metrics counts cooks, topology rebuilds and attribute copies.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "copytopoints"

// Strategy labels.
const (
	StrategyFullCopy    = "full_copy"
	StrategyPacked      = "packed"
	StrategyKeyed       = "keyed_full_copy"
	StrategyKeyedPacked = "keyed_packed"
	StrategyCopyPacked  = "copy_packed"
)

type Metrics struct {
	// Cooks by strategy and outcome (ok, error).
	Cooks *prometheus.CounterVec
	// Topology decisions (rebuild, reuse).
	Topology *prometheus.CounterVec
	// Attribute and group passes (copied, skipped).
	Attributes *prometheus.CounterVec
	// TransformRecomputes counts transform cache misses.
	TransformRecomputes prometheus.Counter
	CookDuration        *prometheus.HistogramVec
}

// Registry holds Default. Commands gather it for reports.
var Registry = prometheus.NewRegistry()

var Default = New(Registry)

// New registers a fresh metric set on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooks_total",
			Help:      "Cooks by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		Topology: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_total",
			Help:      "Output topology rebuilt or reused",
		}, []string{"result"}),
		Attributes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attributes_total",
			Help:      "Attribute and group passes copied or skipped by the cache",
		}, []string{"result"}),
		TransformRecomputes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_recomputes_total",
			Help:      "Target transform recomputations",
		}),
		CookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cook_duration_seconds",
			Help:      "Cook duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"strategy"}),
	}
}

func (m *Metrics) RecordCook(strategy string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Cooks.WithLabelValues(strategy, outcome).Inc()
	m.CookDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (m *Metrics) RecordTopology(rebuilt bool) {
	if rebuilt {
		m.Topology.WithLabelValues("rebuild").Inc()
	} else {
		m.Topology.WithLabelValues("reuse").Inc()
	}
}

func (m *Metrics) RecordAttributes(copied, skipped int) {
	m.Attributes.WithLabelValues("copied").Add(float64(copied))
	m.Attributes.WithLabelValues("skipped").Add(float64(skipped))
}

// WriteText writes every gathered family in the text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
