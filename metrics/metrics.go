// Package metrics provides Prometheus-compatible instrumentation for
// interpreter execution, propagation flushes, and edit-service
// mutations.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes every metric this module records, namespaced
// "graphlang_":
//
//  1. interpreter_steps_total (counter): compute nodes evaluated.
//     Labels: program_id, status (success/error/contract_violation).
//  2. interpreter_step_duration_ms (histogram): wall time per Step call.
//     Labels: program_id.
//  3. propagation_flush_duration_ms (histogram): FlushPropagation wall
//     time. Labels: program_id.
//  4. propagation_conflicts_total (counter): merge conflicts detected
//     during a flush. Labels: program_id, conflict_type.
//  5. edit_mutations_total (counter): mutations committed by
//     propose_edit. Labels: program_id, kind, outcome
//     (committed/rejected).
//  6. edit_log_depth (gauge): current undo-log length. Labels: program_id.
type Collector struct {
	interpreterSteps   *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	flushDuration      *prometheus.HistogramVec
	propagationConfl   *prometheus.CounterVec
	editMutations      *prometheus.CounterVec
	editLogDepth       *prometheus.GaugeVec

	mu      sync.RWMutex
	enabled bool
}

// New registers every collector with registry. A nil registry uses
// prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	c := &Collector{enabled: true}

	c.interpreterSteps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphlang",
		Name:      "interpreter_steps_total",
		Help:      "Compute nodes evaluated by the interpreter",
	}, []string{"program_id", "status"})

	c.stepDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "graphlang",
		Name:      "interpreter_step_duration_ms",
		Help:      "Wall-clock duration of one interpreter Step call, in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
	}, []string{"program_id"})

	c.flushDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "graphlang",
		Name:      "propagation_flush_duration_ms",
		Help:      "Wall-clock duration of a FlushPropagation call, in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"program_id"})

	c.propagationConfl = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphlang",
		Name:      "propagation_conflicts_total",
		Help:      "Merge conflicts detected while flushing queued propagation events",
	}, []string{"program_id", "conflict_type"})

	c.editMutations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "graphlang",
		Name:      "edit_mutations_total",
		Help:      "Mutations processed by propose_edit",
	}, []string{"program_id", "kind", "outcome"})

	c.editLogDepth = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "graphlang",
		Name:      "edit_log_depth",
		Help:      "Current length of the undo-able edit log",
	}, []string{"program_id"})

	return c
}

// RecordStep records one interpreter Step's outcome and duration.
func (c *Collector) RecordStep(programID, status string, d time.Duration) {
	if !c.isEnabled() {
		return
	}
	c.interpreterSteps.WithLabelValues(programID, status).Inc()
	c.stepDuration.WithLabelValues(programID).Observe(float64(d.Microseconds()) / 1000)
}

// RecordFlush records a completed FlushPropagation call.
func (c *Collector) RecordFlush(programID string, d time.Duration) {
	if !c.isEnabled() {
		return
	}
	c.flushDuration.WithLabelValues(programID).Observe(float64(d.Microseconds()) / 1000)
}

// IncrementConflicts records a propagation merge conflict.
func (c *Collector) IncrementConflicts(programID, conflictType string) {
	if !c.isEnabled() {
		return
	}
	c.propagationConfl.WithLabelValues(programID, conflictType).Inc()
}

// RecordEditMutation records one propose_edit mutation's kind and
// outcome.
func (c *Collector) RecordEditMutation(programID, kind, outcome string) {
	if !c.isEnabled() {
		return
	}
	c.editMutations.WithLabelValues(programID, kind, outcome).Inc()
}

// SetEditLogDepth sets the current undo-log length for programID.
func (c *Collector) SetEditLogDepth(programID string, depth int) {
	if !c.isEnabled() {
		return
	}
	c.editLogDepth.WithLabelValues(programID).Set(float64(depth))
}

func (c *Collector) isEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Disable stops further metric recording (test helper).
func (c *Collector) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// Enable resumes metric recording after Disable.
func (c *Collector) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}
