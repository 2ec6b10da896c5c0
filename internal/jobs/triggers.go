package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/internal/triggers"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// SweptTypes are the entity types the trigger sweep visits.
var SweptTypes = []string{"MaintenanceRequest", "Payment", "Tenant"}

// TriggerJob runs time and condition triggers over recently modified
// entities.
type TriggerJob struct {
	uow      repository.UnitOfWork
	triggers *triggers.Service
	lookback time.Duration
	limit    int
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewTriggerJob(uow repository.UnitOfWork, svc *triggers.Service, lookback time.Duration, limit int, recorder Recorder, logger *zap.Logger) *TriggerJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if limit <= 0 {
		limit = 100
	}
	return &TriggerJob{uow: uow, triggers: svc, lookback: lookback, limit: limit, recorder: recorder, logger: logger, now: time.Now}
}

func (j *TriggerJob) SetClock(now func() time.Time) {
	j.now = now
}

// Run sweeps instanceType, or every swept type when it is empty.
func (j *TriggerJob) Run(ctx context.Context, dryRun bool, instanceType string) (*Report, error) {
	start := time.Now()
	report := &Report{Job: JobWorkflowTriggers, DryRun: dryRun}
	defer finish(j.recorder, report, start)

	types := SweptTypes
	if instanceType != "" {
		resolved, err := resolveSweptType(instanceType)
		if err != nil {
			return report, err
		}
		types = []string{resolved}
	}

	since := j.now().Add(-j.lookback)
	system := workflows.SystemActor()
	for _, t := range types {
		targets, err := j.load(ctx, t, since)
		if err != nil {
			return report, fmt.Errorf("failed to load %s: %w", t, err)
		}
		report.Scanned += len(targets)

		for _, target := range targets {
			if dryRun {
				rules, err := j.triggers.Evaluate(ctx, target, "")
				if err != nil {
					return report, err
				}
				for _, rule := range rules {
					report.Acted = append(report.Acted, Item{
						InstanceType: target.SubjectType(),
						InstanceID:   target.SubjectID(),
						Detail:       fmt.Sprintf("%s (%s)", rule.Name, rule.ActionType),
					})
				}
				continue
			}

			results, err := j.triggers.ProcessTriggersForInstance(ctx, target, "", nil, system)
			if err != nil {
				return report, err
			}
			for _, r := range results {
				item := Item{
					InstanceType: target.SubjectType(),
					InstanceID:   target.SubjectID(),
					Detail:       fmt.Sprintf("%s (%s)", r.TriggerName, r.Action),
				}
				if r.Success {
					report.Acted = append(report.Acted, item)
				} else {
					item.Error = r.Error
					report.Failed = append(report.Failed, item)
				}
			}
		}
	}

	j.logger.Info("Workflow trigger sweep finished",
		zap.Bool("dry_run", dryRun),
		zap.Strings("types", types),
		zap.Int("scanned", report.Scanned),
		zap.Int("fired", len(report.Acted)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (j *TriggerJob) load(ctx context.Context, instanceType string, since time.Time) ([]models.Entity, error) {
	repos := j.uow.Repositories()
	var out []models.Entity
	switch instanceType {
	case "MaintenanceRequest":
		rows, err := repos.Maintenance.ListModifiedSince(ctx, since, j.limit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r)
		}
	case "Payment":
		rows, err := repos.Payments.ListModifiedSince(ctx, since, j.limit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r)
		}
	case "Tenant":
		rows, err := repos.Tenants.ListModifiedSince(ctx, since, j.limit)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			out = append(out, r)
		}
	}
	return out, nil
}

func resolveSweptType(name string) (string, error) {
	for _, t := range SweptTypes {
		if strings.EqualFold(t, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported instance type %q (want one of %s)", name, strings.Join(SweptTypes, ", "))
}
