package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Actions carries out trigger actions on live entities. The registry is
// bound after construction because the engines it wraps observe the
// trigger service that holds these actions.
type Actions struct {
	registry *Registry
	notifier *notifications.Service
	uow      repository.UnitOfWork
	now      func() time.Time
}

func NewActions(uow repository.UnitOfWork, notifier *notifications.Service) *Actions {
	return &Actions{uow: uow, notifier: notifier, now: time.Now}
}

// Bind attaches the registry used for transitions.
func (a *Actions) Bind(registry *Registry) {
	a.registry = registry
}

func (a *Actions) TransitionTo(ctx context.Context, target models.Entity, state workflows.State, actor workflows.Actor, params workflows.Params) error {
	if a.registry == nil {
		return fmt.Errorf("workflow actions are not bound to a registry")
	}
	h, err := a.registry.Resolve(target.SubjectType())
	if err != nil {
		return err
	}
	_, err = transitionTo(ctx, h, target, state, actor, params)
	return err
}

func (a *Actions) Notify(ctx context.Context, target models.Entity, recipientID uuid.UUID, title, message string, data map[string]any) error {
	_, err := a.notifier.Notify(ctx, notifications.Request{
		RecipientID:  recipientID,
		Type:         notifications.TypeInApp,
		Priority:     notifications.PriorityNormal,
		Title:        title,
		Message:      message,
		InstanceType: target.SubjectType(),
		InstanceID:   target.SubjectID(),
		EventType:    "trigger_notification",
		EventData:    data,
	})
	return err
}

func (a *Actions) Escalate(ctx context.Context, target models.Entity, eventType string, hours int, priority notifications.Priority) error {
	_, err := a.notifier.ScheduleEscalation(ctx, target, eventType, hours, priority)
	return err
}

// Assign sets the responsible user on entities that have one. The write is
// guarded by the entity's version like any transition.
func (a *Actions) Assign(ctx context.Context, target models.Entity, userID uuid.UUID, actor workflows.Actor) error {
	switch e := target.(type) {
	case *models.MaintenanceRequest:
		user, err := a.uow.Repositories().Users.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load assignee: %w", err)
		}
		prevName, prevDate := e.AssignedTo, e.AssignedDate
		at := a.now()
		e.AssignedTo = user.DisplayName()
		e.AssignedDate = &at
		err = a.uow.Do(ctx, func(ctx context.Context, tx *repository.Repositories) error {
			return tx.Maintenance.Save(ctx, e, e.Status)
		})
		if err != nil {
			e.AssignedTo, e.AssignedDate = prevName, prevDate
			return err
		}
		return nil
	case *models.Complaint:
		prev := e.AssignedToID
		e.AssignedToID = &userID
		err := a.uow.Do(ctx, func(ctx context.Context, tx *repository.Repositories) error {
			return tx.Complaints.Save(ctx, e, e.Status)
		})
		if err != nil {
			e.AssignedToID = prev
			return err
		}
		return nil
	default:
		return fmt.Errorf("%s has no assignee", target.SubjectType())
	}
}
