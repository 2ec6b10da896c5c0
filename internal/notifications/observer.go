package notifications

import (
	"context"

	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Observer notifies recipients of every committed transition.
type Observer struct {
	svc *Service
}

func NewObserver(svc *Service) *Observer {
	return &Observer{svc: svc}
}

func (o *Observer) OnTransition(ctx context.Context, rec workflows.Record) error {
	target, ok := rec.Subject.(models.Entity)
	if !ok {
		o.svc.logger.Debug("Transition subject cannot be notified", zap.String("type", rec.Subject.SubjectType()))
		return nil
	}
	_, err := o.svc.NotifyWorkflowTransition(ctx, target, rec.Event, rec.Result.OldState, rec.Actor, rec.Params)
	return err
}
