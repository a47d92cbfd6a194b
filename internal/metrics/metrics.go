// Package metrics exposes the Prometheus counters emitted by the
// submission pipeline. Increments are fire-and-forget; they never block
// the response path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts submissions by form and terminal result
	// (stored, dispatch_failed, rejected_spam, rejected_validation,
	// rejected_origin, rate_limited, error).
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_submissions_total",
		Help: "Total number of form submissions by terminal result.",
	}, []string{"form", "result"})

	// EmailsSentTotal counts per-recipient send outcomes.
	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_emails_sent_total",
		Help: "Total number of notification emails by delivery result.",
	}, []string{"form", "result"})

	// SpamRejectionsTotal counts spam-gate rejections by gate.
	SpamRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formrelay_spam_rejections_total",
		Help: "Total number of submissions rejected by a spam gate.",
	}, []string{"form", "reason"})

	// SubmissionsInProgress tracks submissions currently in the pipeline.
	SubmissionsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "formrelay_submissions_in_progress",
		Help: "Number of form submissions currently being processed.",
	})
)
