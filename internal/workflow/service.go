package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Status is the workflow view of one entity.
type Status struct {
	ModelType       string                   `json:"model_type"`
	InstanceID      string                   `json:"instance_id"`
	CurrentState    workflows.State          `json:"current_state"`
	AvailableEvents []workflows.Event        `json:"available_events"`
	History         []audit.WorkflowAuditLog `json:"history"`
	Metrics         map[string]any           `json:"metrics"`
}

// Service fires workflow events on any registered entity type.
type Service struct {
	registry *Registry
	audit    *audit.Service
	logger   *zap.Logger
}

func NewService(registry *Registry, auditSvc *audit.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, audit: auditSvc, logger: logger}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// Load resolves the model type and fetches the entity.
func (s *Service) Load(ctx context.Context, modelType string, id uuid.UUID) (Handle, models.Entity, error) {
	h, err := s.registry.Resolve(modelType)
	if err != nil {
		return nil, nil, err
	}
	target, err := h.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return h, target, nil
}

// Transition fires a named event.
func (s *Service) Transition(ctx context.Context, modelType string, id uuid.UUID, event workflows.Event, actor workflows.Actor, params workflows.Params) (workflows.Result, error) {
	h, target, err := s.Load(ctx, modelType, id)
	if err != nil {
		return workflows.Result{}, err
	}
	return h.Transition(ctx, target, event, actor, params)
}

// TransitionToStatus moves the entity to newStatus through the first
// declared event that reaches it and that the actor may fire with the given
// params. notes is recorded on the audit row and doubles as the reason or
// resolution for events that require one; extra carries any other event
// arguments such as technician_name.
func (s *Service) TransitionToStatus(ctx context.Context, modelType string, id uuid.UUID, newStatus workflows.State, actor workflows.Actor, notes string, extra workflows.Params) (workflows.Result, error) {
	h, target, err := s.Load(ctx, modelType, id)
	if err != nil {
		return workflows.Result{}, err
	}
	params := extra.Clone()
	if notes != "" {
		params["notes"] = notes
		for _, key := range []string{"reason", "resolution"} {
			if params.String(key) == "" {
				params[key] = notes
			}
		}
	}
	return transitionTo(ctx, h, target, newStatus, actor, params)
}

func transitionTo(ctx context.Context, h Handle, target models.Entity, to workflows.State, actor workflows.Actor, params workflows.Params) (workflows.Result, error) {
	event, err := resolveEvent(ctx, h, target, to, actor, params)
	if err != nil {
		return workflows.Result{}, err
	}
	return h.Transition(ctx, target, event, actor, params)
}

// resolveEvent picks the event for a status change. With no edge at all the
// change is illegal; with edges the actor cannot fire it is a permission
// failure. Among permitted edges the first whose validators pass wins; when
// none pass, the first permitted edge is returned so its failure surfaces.
func resolveEvent(ctx context.Context, h Handle, target models.Entity, to workflows.State, actor workflows.Actor, params workflows.Params) (workflows.Event, error) {
	from := target.CurrentState()
	permitted := h.EventsTo(from, to, actor)
	for _, ev := range permitted {
		if h.Check(ctx, target, ev, actor, params).Allowed {
			return ev, nil
		}
	}
	if len(permitted) > 0 {
		return permitted[0], nil
	}
	if events := h.EventsTo(from, to, workflows.SystemActor()); len(events) > 0 {
		return "", &workflows.TransitionError{
			Kind:   workflows.KindPermissionDenied,
			Event:  events[0],
			Reason: fmt.Sprintf("You do not have permission to move %s from %s to %s", h.Type(), from, to),
		}
	}
	return "", &workflows.TransitionError{
		Kind:   workflows.KindIllegalTransition,
		Reason: fmt.Sprintf("Cannot transition %s from %s to %s", h.Type(), from, to),
	}
}

// WorkflowStatus reports the current state, the events the actor may fire,
// the audit history and entity-specific metrics.
func (s *Service) WorkflowStatus(ctx context.Context, modelType string, id uuid.UUID, actor workflows.Actor) (*Status, error) {
	h, target, err := s.Load(ctx, modelType, id)
	if err != nil {
		return nil, err
	}
	history, err := s.audit.GetWorkflowHistory(ctx, h.Type(), target.SubjectID())
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	events := h.AvailableEvents(target, actor)
	if events == nil {
		events = []workflows.Event{}
	}
	return &Status{
		ModelType:       h.Type(),
		InstanceID:      target.SubjectID(),
		CurrentState:    target.CurrentState(),
		AvailableEvents: events,
		History:         history,
		Metrics:         h.Metrics(ctx, target),
	}, nil
}

// History returns the entity's audit trail, oldest first.
func (s *Service) History(ctx context.Context, modelType string, id uuid.UUID) ([]audit.WorkflowAuditLog, error) {
	h, err := s.registry.Resolve(modelType)
	if err != nil {
		return nil, err
	}
	return s.audit.GetWorkflowHistory(ctx, h.Type(), id.String())
}
