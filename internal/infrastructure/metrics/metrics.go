// Package metrics holds the prometheus counters of the onboarding service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "onboarding"

// Recorder counts lifecycle outcomes. A nil *Recorder records nothing.
type Recorder struct {
	transitions    *prometheus.CounterVec
	partialCommits prometheus.Counter
	provisioned    *prometheus.CounterVec
	bulkTargets    *prometheus.CounterVec
}

// New registers the onboarding counters on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Profile status transitions attempted, by action and result kind.",
		}, []string{"action", "result"}),
		partialCommits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_commits_total",
			Help:      "Status changes committed without their audit entry.",
		}),
		provisioned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioned_total",
			Help:      "EnsureProfile outcomes, by role and outcome.",
		}, []string{"role", "outcome"}),
		bulkTargets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_targets_total",
			Help:      "Targets processed by bulk operations, by action and result.",
		}, []string{"action", "result"}),
	}
}

// Transition records one approve/reject/delete attempt. result is "ok" or an
// error kind.
func (r *Recorder) Transition(action, result string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(action, result).Inc()
}

// PartialCommit records a status change whose audit append failed
func (r *Recorder) PartialCommit() {
	if r == nil {
		return
	}
	r.partialCommits.Inc()
}

// Provisioned records an EnsureProfile outcome: created, existing, or an
// error kind.
func (r *Recorder) Provisioned(role, outcome string) {
	if r == nil {
		return
	}
	r.provisioned.WithLabelValues(role, outcome).Inc()
}

// BulkTarget records one target of a bulk operation
func (r *Recorder) BulkTarget(action, result string) {
	if r == nil {
		return
	}
	r.bulkTargets.WithLabelValues(action, result).Inc()
}
