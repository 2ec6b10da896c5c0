package triggers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// ErrInvalidTrigger wraps every validation failure of a trigger definition.
var ErrInvalidTrigger = errors.New("invalid trigger")

// InstanceTypes are the entity types a trigger may target.
var InstanceTypes = []string{"MaintenanceRequest", "Payment", "RentalAgreement", "Complaint", "Tenant"}

// Actions performs what a matching trigger asks for.
type Actions interface {
	TransitionTo(ctx context.Context, target models.Entity, state workflows.State, actor workflows.Actor, params workflows.Params) error
	Notify(ctx context.Context, target models.Entity, recipientID uuid.UUID, title, message string, data map[string]any) error
	Escalate(ctx context.Context, target models.Entity, eventType string, hours int, priority notifications.Priority) error
	Assign(ctx context.Context, target models.Entity, userID uuid.UUID, actor workflows.Actor) error
}

// Auditor records trigger executions.
type Auditor interface {
	LogEvent(ctx context.Context, entry audit.EventEntry) *audit.WorkflowAuditLog
}

// Recorder counts trigger executions by outcome.
type Recorder interface {
	ObserveTrigger(instanceType, outcome string)
}

// actionConfig is the optional JSON payload of a trigger.
type actionConfig struct {
	Params   map[string]any         `json:"params"`
	Priority notifications.Priority `json:"priority"`
}

// Service evaluates and manages workflow triggers.
type Service struct {
	repo     Repository
	actions  Actions
	auditor  Auditor
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, actions Actions, auditor Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, actions: actions, auditor: auditor, logger: logger, now: time.Now}
}

func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ProcessTriggersForInstance runs every active trigger for the target's type
// in priority order. A failing trigger is reported in its own Result and
// does not stop the others. The error is non-nil only when the triggers
// could not be loaded.
func (s *Service) ProcessTriggersForInstance(ctx context.Context, target models.Entity, event string, eventData map[string]any, actor workflows.Actor) ([]Result, error) {
	rules, err := s.repo.List(ctx, Filter{InstanceType: target.SubjectType(), ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, rule := range rules {
		now := s.now()
		fire, err := rule.ShouldTrigger(target, event, now)
		if err != nil {
			results = append(results, s.fail(target, rule, err))
			continue
		}
		if !fire {
			continue
		}

		msg, err := s.execute(withFiring(ctx), rule, target, event, eventData, actor)
		if err != nil {
			results = append(results, s.fail(target, rule, err))
			continue
		}
		if err := s.repo.MarkTriggered(ctx, rule.ID, now); err != nil {
			s.logger.Warn("Failed to stamp trigger", zap.String("trigger", rule.Name), zap.Error(err))
		}

		if s.auditor != nil {
			s.auditor.LogEvent(ctx, audit.EventEntry{
				InstanceType: target.SubjectType(),
				InstanceID:   target.SubjectID(),
				EventType:    audit.EventTrigger,
				EventName:    rule.Name,
				Actor:        &actor,
				Metadata: map[string]any{
					"trigger_id":   rule.ID,
					"action_type":  string(rule.ActionType),
					"event":        event,
					"event_data":   eventData,
					"target_state": string(rule.TargetState),
				},
				Notes: msg,
			})
		}
		s.observe(target.SubjectType(), "fired")
		results = append(results, Result{
			TriggerID:   rule.ID,
			TriggerName: rule.Name,
			Action:      rule.ActionType,
			Success:     true,
			Message:     msg,
		})
	}
	return results, nil
}

// Evaluate lists the triggers that would fire for target without running
// their actions.
func (s *Service) Evaluate(ctx context.Context, target models.Entity, event string) ([]*WorkflowTrigger, error) {
	rules, err := s.repo.List(ctx, Filter{InstanceType: target.SubjectType(), ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var out []*WorkflowTrigger
	now := s.now()
	for _, rule := range rules {
		fire, err := rule.ShouldTrigger(target, event, now)
		if err != nil {
			s.logger.Debug("Trigger evaluation failed", zap.String("trigger", rule.Name), zap.Error(err))
			continue
		}
		if fire {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *Service) fail(target models.Entity, rule *WorkflowTrigger, err error) Result {
	s.logger.Warn("Workflow trigger failed",
		zap.String("trigger", rule.Name),
		zap.String("instance_type", target.SubjectType()),
		zap.String("instance_id", target.SubjectID()),
		zap.Error(err))
	s.observe(target.SubjectType(), "failed")
	return Result{
		TriggerID:   rule.ID,
		TriggerName: rule.Name,
		Action:      rule.ActionType,
		Error:       err.Error(),
	}
}

func (s *Service) observe(instanceType, outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveTrigger(instanceType, outcome)
	}
}

func (s *Service) execute(ctx context.Context, rule *WorkflowTrigger, target models.Entity, event string, eventData map[string]any, actor workflows.Actor) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trigger %s panicked: %v", rule.Name, r)
		}
	}()

	cfg, err := rule.config()
	if err != nil {
		return "", err
	}

	switch rule.ActionType {
	case ActionTransition:
		params := workflows.Params{}
		for k, v := range eventData {
			params[k] = v
		}
		for k, v := range cfg.Params {
			params[k] = v
		}
		if _, ok := params["notes"]; !ok {
			params["notes"] = "Automatic transition by trigger " + rule.Name
		}
		if err := s.actions.TransitionTo(ctx, target, rule.TargetState, actor, params); err != nil {
			return "", err
		}
		return fmt.Sprintf("moved to %s", rule.TargetState), nil

	case ActionNotification:
		recipient := rule.AssignToUserID
		if recipient == nil {
			recipient = target.TenantUserID()
		}
		if recipient == nil {
			return "", fmt.Errorf("no recipient for notification")
		}
		title, err := renderText(rule.NotificationTitle, rule, target, event)
		if err != nil {
			return "", err
		}
		body, err := renderText(rule.NotificationMessage, rule, target, event)
		if err != nil {
			return "", err
		}
		if err := s.actions.Notify(ctx, target, *recipient, title, body, eventData); err != nil {
			return "", err
		}
		return "notified " + recipient.String(), nil

	case ActionEscalation:
		if err := s.actions.Escalate(ctx, target, "trigger:"+rule.Name, rule.EscalationHours, cfg.Priority); err != nil {
			return "", err
		}
		return fmt.Sprintf("escalation scheduled in %dh", rule.EscalationHours), nil

	case ActionAssignment:
		if rule.AssignToUserID == nil {
			return "", fmt.Errorf("assignment trigger has no user")
		}
		if err := s.actions.Assign(ctx, target, *rule.AssignToUserID, actor); err != nil {
			return "", err
		}
		return "assigned to " + rule.AssignToUserID.String(), nil

	default:
		return "", fmt.Errorf("unknown action type %q", rule.ActionType)
	}
}

func (t *WorkflowTrigger) config() (actionConfig, error) {
	var cfg actionConfig
	if len(t.ActionConfig) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(t.ActionConfig, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid action_config: %w", err)
	}
	return cfg, nil
}

func renderText(text string, rule *WorkflowTrigger, target models.Entity, event string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(rule.Name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid notification template: %w", err)
	}
	fields := make(map[string]string)
	for k, v := range target.Fields() {
		fields[k] = fieldString(v)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]any{
		"Type":    target.SubjectType(),
		"ID":      target.SubjectID(),
		"Event":   event,
		"Trigger": rule.Name,
		"Fields":  fields,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render notification: %w", err)
	}
	return buf.String(), nil
}

// Validate checks that a trigger definition is complete for its shape and
// action.
func Validate(t *WorkflowTrigger) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidTrigger, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(t.Name) == "" {
		return invalid("name is required")
	}
	known := false
	for _, it := range InstanceTypes {
		if it == t.InstanceType {
			known = true
		}
	}
	if !known {
		return invalid("unknown instance type %q", t.InstanceType)
	}

	switch t.TriggerType {
	case TypeTimeBased:
		if t.TimeField == "" {
			return invalid("time_field is required for time based triggers")
		}
		if t.TimeDelayHours < 0 {
			return invalid("time_delay_hours must not be negative")
		}
	case TypeEventBased:
		if len(t.TriggerEvents) == 0 {
			return invalid("trigger_events is required for event based triggers")
		}
	case TypeConditionBased:
		if t.ConditionField == "" {
			return invalid("condition_field is required for condition based triggers")
		}
		if _, err := compare("", t.ConditionOperator, ""); err != nil {
			return invalid("%v", err)
		}
	default:
		return invalid("unknown trigger type %q", t.TriggerType)
	}

	switch t.ActionType {
	case ActionTransition:
		if t.TargetState == "" {
			return invalid("target_state is required for transition actions")
		}
	case ActionNotification:
		if t.NotificationTitle == "" {
			return invalid("notification_title is required for notification actions")
		}
	case ActionEscalation:
		if t.EscalationHours <= 0 {
			return invalid("escalation_hours must be positive")
		}
	case ActionAssignment:
		if t.AssignToUserID == nil {
			return invalid("assign_to_user_id is required for assignment actions")
		}
	default:
		return invalid("unknown action type %q", t.ActionType)
	}

	if _, err := t.config(); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// Create validates and stores a new trigger.
func (s *Service) Create(ctx context.Context, t *WorkflowTrigger, createdBy *uuid.UUID) (*WorkflowTrigger, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}
	t.CreatedBy = createdBy
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("Workflow trigger created",
		zap.String("trigger", t.Name),
		zap.String("instance_type", t.InstanceType),
		zap.String("action", string(t.ActionType)))
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*WorkflowTrigger, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]*WorkflowTrigger, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces a trigger's definition, keeping its run history.
func (s *Service) Update(ctx context.Context, t *WorkflowTrigger) (*WorkflowTrigger, error) {
	existing, err := s.repo.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if err := Validate(t); err != nil {
		return nil, err
	}
	t.LastTriggered = existing.LastTriggered
	t.CreatedBy = existing.CreatedBy
	t.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Deactivate switches a trigger off. Triggers are never deleted.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !t.IsActive {
		return nil
	}
	t.IsActive = false
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}
	s.logger.Info("Workflow trigger deactivated", zap.String("trigger", t.Name))
	return nil
}
