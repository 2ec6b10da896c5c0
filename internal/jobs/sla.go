package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/maintenance"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// SLAEscalationJob raises the priority of maintenance requests that have
// outlived the SLA window for their priority.
type SLAEscalationJob struct {
	maintenance     *maintenance.Service
	audit           *audit.Service
	notifier        *notifications.Service
	escalationHours int
	recorder        Recorder
	logger          *zap.Logger
}

func NewSLAEscalationJob(m *maintenance.Service, auditSvc *audit.Service, notifier *notifications.Service, escalationHours int, recorder Recorder, logger *zap.Logger) *SLAEscalationJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if escalationHours <= 0 {
		escalationHours = 24
	}
	return &SLAEscalationJob{
		maintenance:     m,
		audit:           auditSvc,
		notifier:        notifier,
		escalationHours: escalationHours,
		recorder:        recorder,
		logger:          logger,
	}
}

// Run escalates every overdue request once. A request that fails to save
// is reported and skipped.
func (j *SLAEscalationJob) Run(ctx context.Context, dryRun bool) (*Report, error) {
	start := time.Now()
	report := &Report{Job: JobSLAEscalation, DryRun: dryRun}
	defer finish(j.recorder, report, start)

	overdue, err := j.maintenance.Overdue(ctx)
	if err != nil {
		return report, err
	}
	report.Scanned = len(overdue)
	system := workflows.SystemActor()

	for _, m := range overdue {
		sla := j.maintenance.SLA(m)
		item := Item{
			InstanceType: m.SubjectType(),
			InstanceID:   m.SubjectID(),
			Detail:       fmt.Sprintf("%s -> %s after %.1fh", m.Priority, m.Priority.Escalate(), sla.HoursOpen),
		}
		if dryRun {
			report.Acted = append(report.Acted, item)
			continue
		}

		old, err := j.maintenance.Escalate(ctx, m)
		if err != nil {
			item.Error = err.Error()
			report.Failed = append(report.Failed, item)
			j.logger.Warn("Failed to escalate maintenance request", zap.String("id", item.InstanceID), zap.Error(err))
			continue
		}

		j.audit.LogEvent(ctx, audit.EventEntry{
			InstanceType: item.InstanceType,
			InstanceID:   item.InstanceID,
			EventType:    audit.EventEscalation,
			EventName:    "sla_breach",
			Actor:        &system,
			Metadata: map[string]any{
				"old_priority":     string(old),
				"new_priority":     string(m.Priority),
				"escalation_level": m.EscalationLevel,
				"hours_open":       sla.HoursOpen,
				"threshold_hours":  sla.ThresholdHours,
			},
			Notes: fmt.Sprintf("SLA breached after %.1f hours", sla.HoursOpen),
		})

		priority := notifications.PriorityHigh
		if m.Priority == models.PriorityUrgent {
			priority = notifications.PriorityUrgent
		}
		if _, err := j.notifier.ScheduleEscalation(ctx, m, "sla_breach", j.escalationHours, priority); err != nil {
			j.logger.Warn("Failed to schedule escalation notification", zap.String("id", item.InstanceID), zap.Error(err))
		}
		report.Acted = append(report.Acted, item)
	}

	j.logger.Info("SLA escalation finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("overdue", report.Scanned),
		zap.Int("escalated", len(report.Acted)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
