// Package metrics exposes Prometheus instrumentation for merge runs.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Merge outcomes used as the "outcome" label value.
const (
	OutcomeMerged        = "merged"
	OutcomeNoop          = "noop"
	OutcomeOwnerNotFound = "owner_not_found"
	OutcomeFailed        = "failed"
)

// Merge holds the collectors for merge runs.
type Merge struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	removed  prometheus.Counter
	inserted prometheus.Counter
}

var (
	defaultOnce  sync.Once
	defaultMerge *Merge
)

// NewMerge builds the merge collectors and registers them on reg.
// A nil reg leaves them unregistered, which is useful in tests that read
// values with prometheus/testutil.
func NewMerge(reg prometheus.Registerer) *Merge {
	m := &Merge{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventmerge",
				Subsystem: "merge",
				Name:      "runs_total",
				Help:      "Total merge runs by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "eventmerge",
				Subsystem: "merge",
				Name:      "duration_seconds",
				Help:      "Merge run duration in seconds, lock wait included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventmerge",
			Subsystem: "merge",
			Name:      "records_removed_total",
			Help:      "Records deleted by committed merges.",
		}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventmerge",
			Subsystem: "merge",
			Name:      "records_inserted_total",
			Help:      "Merged records inserted by committed merges.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.removed, m.inserted)
	}
	return m
}

// Default returns collectors registered once on prometheus.DefaultRegisterer.
func Default() *Merge {
	defaultOnce.Do(func() {
		defaultMerge = NewMerge(prometheus.DefaultRegisterer)
	})
	return defaultMerge
}

// ObserveMerge records one finished merge run. removed and inserted count
// only committed changes; pass zero for runs that did not commit.
func (m *Merge) ObserveMerge(outcome string, d time.Duration, removed, inserted int) {
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
	if removed > 0 {
		m.removed.Add(float64(removed))
	}
	if inserted > 0 {
		m.inserted.Add(float64(inserted))
	}
}

// WriteTextfile writes every metric gathered from g to path in the Prometheus
// text format, for collection by the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
