// Package jobs holds the batch commands that run outside request handling:
// SLA escalation, trigger sweeps and payment reminders. Each run completes
// synchronously and reports what it did.
package jobs

import (
	"time"
)

// Recorder receives one observation per job run.
type Recorder interface {
	ObserveJob(job, outcome string, items int, elapsed time.Duration)
}

// Job names used for logging and metrics.
const (
	JobSLAEscalation    = "sla_escalation"
	JobWorkflowTriggers = "workflow_triggers"
	JobPaymentReminders = "payment_reminders"
)

// Item describes one entity a job looked at.
type Item struct {
	InstanceType string `json:"instance_type"`
	InstanceID   string `json:"instance_id"`
	Detail       string `json:"detail"`
	Error        string `json:"error,omitempty"`
}

// Report summarises a run. In dry-run mode Acted lists what would have
// been done.
type Report struct {
	Job     string        `json:"job"`
	DryRun  bool          `json:"dry_run"`
	Scanned int           `json:"scanned"`
	Acted   []Item        `json:"acted"`
	Failed  []Item        `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
}

func (r *Report) outcome() string {
	switch {
	case r.DryRun:
		return "dry_run"
	case len(r.Failed) > 0:
		return "partial"
	default:
		return "success"
	}
}

func finish(rec Recorder, r *Report, start time.Time) {
	r.Elapsed = time.Since(start)
	if rec != nil {
		rec.ObserveJob(r.Job, r.outcome(), len(r.Acted), r.Elapsed)
	}
}
