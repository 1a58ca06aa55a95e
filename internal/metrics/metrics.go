// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submissions counts evaluated attendance submissions by resulting status.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "submissions_total",
		Help:      "Evaluated attendance submissions by status.",
	}, []string{"status"})

	// Blocked counts submissions refused before evaluation.
	Blocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "submissions_blocked_total",
		Help:      "Submissions refused before evaluation, by reason.",
	}, []string{"reason"})

	Appeals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "appeals_total",
		Help:      "Appeal workflow actions.",
	}, []string{"action"})

	AuditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "audit_events_total",
		Help:      "Audit events consumed from the queue, by kind and result.",
	}, []string{"kind", "result"})
)
