package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/internal/rentals"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// PaymentReminderJob reminds tenants of active agreements whose rent is
// past due.
type PaymentReminderJob struct {
	rentals  *rentals.Service
	notifier *notifications.Service
	audit    *audit.Service
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewPaymentReminderJob(r *rentals.Service, notifier *notifications.Service, auditSvc *audit.Service, recorder Recorder, logger *zap.Logger) *PaymentReminderJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentReminderJob{rentals: r, notifier: notifier, audit: auditSvc, recorder: recorder, logger: logger, now: time.Now}
}

func (j *PaymentReminderJob) SetClock(now func() time.Time) {
	j.now = now
}

// Run sends one in-app reminder per agreement whose next due date plus
// daysOverdue is before today.
func (j *PaymentReminderJob) Run(ctx context.Context, dryRun bool, daysOverdue int) (*Report, error) {
	start := time.Now()
	report := &Report{Job: JobPaymentReminders, DryRun: dryRun}
	defer finish(j.recorder, report, start)

	if daysOverdue < 0 {
		return report, fmt.Errorf("days overdue must not be negative")
	}
	agreements, err := j.rentals.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active agreements: %w", err)
	}
	report.Scanned = len(agreements)

	now := j.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	system := workflows.SystemActor()

	for _, a := range agreements {
		due, err := j.rentals.NextDueDate(ctx, a)
		if err != nil {
			report.Failed = append(report.Failed, Item{InstanceType: a.SubjectType(), InstanceID: a.SubjectID(), Error: err.Error()})
			continue
		}
		if !due.AddDate(0, 0, daysOverdue).Before(today) {
			continue
		}
		late := int(today.Sub(due).Hours() / 24)
		item := Item{
			InstanceType: a.SubjectType(),
			InstanceID:   a.SubjectID(),
			Detail:       fmt.Sprintf("due %s, %d days late", due.Format("2006-01-02"), late),
		}
		userID := a.TenantUserID()
		if userID == nil {
			item.Error = "tenant has no user account"
			report.Failed = append(report.Failed, item)
			continue
		}
		if dryRun {
			report.Acted = append(report.Acted, item)
			continue
		}

		priority := notifications.PriorityNormal
		if late > 7 {
			priority = notifications.PriorityHigh
		}
		_, err = j.notifier.Notify(ctx, notifications.Request{
			RecipientID:  *userID,
			Type:         notifications.TypeInApp,
			Priority:     priority,
			Title:        "Rent payment reminder",
			Message:      fmt.Sprintf("Your rent of %.2f was due on %s. Please make a payment as soon as possible.", a.MonthlyRent, due.Format("2 January 2006")),
			InstanceType: item.InstanceType,
			InstanceID:   item.InstanceID,
			EventType:    "payment_reminder",
			EventData: map[string]any{
				"due_date":     due.Format("2006-01-02"),
				"days_late":    late,
				"monthly_rent": a.MonthlyRent,
			},
		})
		if err != nil {
			item.Error = err.Error()
			report.Failed = append(report.Failed, item)
			j.logger.Warn("Failed to send payment reminder", zap.String("agreement", item.InstanceID), zap.Error(err))
			continue
		}

		j.audit.LogEvent(ctx, audit.EventEntry{
			InstanceType: item.InstanceType,
			InstanceID:   item.InstanceID,
			EventType:    audit.EventReminder,
			EventName:    "payment_reminder",
			Actor:        &system,
			Metadata:     map[string]any{"due_date": due.Format("2006-01-02"), "days_late": late},
		})
		report.Acted = append(report.Acted, item)
	}

	j.logger.Info("Payment reminders finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("active", report.Scanned),
		zap.Int("reminded", len(report.Acted)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
