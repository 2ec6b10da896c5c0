package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications/websocket"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Options wires delivery channels and recipient groups into a Service.
type Options struct {
	Email           EmailSender
	SMS             SMSSender
	Push            Pusher
	Events          map[workflows.Event]EventConfig
	StaffGroup      string
	EscalationGroup string
}

// Recorder counts delivery attempts per channel.
type Recorder interface {
	ObserveNotification(channel, status string)
}

// Service records notifications and delivers them immediately.
type Service struct {
	repo            Repository
	dir             Directory
	email           EmailSender
	sms             SMSSender
	push            Pusher
	events          map[workflows.Event]EventConfig
	staffGroup      string
	escalationGroup string
	recorder        Recorder
	logger          *zap.Logger
	now             func() time.Time
}

func NewService(repo Repository, dir Directory, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Email == nil {
		opts.Email = NewLogSender(logger)
	}
	if opts.SMS == nil {
		opts.SMS = NewLogSender(logger)
	}
	if opts.Events == nil {
		opts.Events = DefaultEvents
	}
	return &Service{
		repo:            repo,
		dir:             dir,
		email:           opts.Email,
		sms:             opts.SMS,
		push:            opts.Push,
		events:          opts.Events,
		staffGroup:      opts.StaffGroup,
		escalationGroup: opts.EscalationGroup,
		logger:          logger,
		now:             time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetRecorder attaches delivery metrics.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Service) observe(n *WorkflowNotification, status string) {
	if s.recorder != nil {
		s.recorder.ObserveNotification(string(n.NotificationType), status)
	}
}

// EventConfig returns the configuration used for event.
func (s *Service) EventConfig(event workflows.Event) EventConfig {
	if cfg, ok := s.events[event]; ok {
		return cfg
	}
	return defaultEventConfig
}

// NotifyWorkflowTransition tells the tenant, the staff group and the acting
// user about a committed transition. Per-recipient failures are logged and
// skipped.
func (s *Service) NotifyWorkflowTransition(ctx context.Context, target models.Entity, event workflows.Event, oldState workflows.State, actor workflows.Actor, params workflows.Params) ([]*WorkflowNotification, error) {
	cfg := s.EventConfig(event)

	recipients, err := s.transitionRecipients(ctx, target, cfg, actor)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, nil
	}

	data := messageData{
		Type:     target.SubjectType(),
		ID:       target.SubjectID(),
		Event:    string(event),
		OldState: string(oldState),
		NewState: string(target.CurrentState()),
		Actor:    actor.Name,
		Fields:   stringify(target.Fields()),
		Params:   stringify(params),
	}
	message, err := render(cfg.Message, data)
	if err != nil {
		s.logger.Warn("Failed to render notification message", zap.String("event", string(event)), zap.Error(err))
		message = fmt.Sprintf("%s %s: %s", data.Type, data.ID, event)
	}

	eventData := map[string]any{
		"old_state": string(oldState),
		"new_state": string(target.CurrentState()),
		"actor":     actor.Name,
	}
	for k, v := range data.Params {
		eventData[k] = v
	}

	var out []*WorkflowNotification
	for _, r := range recipients {
		n := &WorkflowNotification{
			RecipientID:      r.ID,
			NotificationType: cfg.Type,
			Priority:         cfg.Priority,
			Title:            cfg.Title,
			Message:          message,
			InstanceType:     target.SubjectType(),
			InstanceID:       target.SubjectID(),
			EventType:        string(event),
			EventData:        encodeEventData(eventData),
		}
		if err := s.createAndDeliver(ctx, n, r); err != nil {
			s.logger.Warn("Failed to create notification",
				zap.String("event", string(event)),
				zap.String("recipient_id", r.ID.String()),
				zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Service) transitionRecipients(ctx context.Context, target models.Entity, cfg EventConfig, actor workflows.Actor) ([]Recipient, error) {
	var recipients []Recipient

	if cfg.NotifyTenant {
		if id := target.TenantUserID(); id != nil {
			if r, err := s.dir.Lookup(ctx, *id); err == nil {
				recipients = append(recipients, *r)
			} else {
				s.logger.Debug("Tenant user not notifiable", zap.String("user_id", id.String()), zap.Error(err))
			}
		}
	}

	if cfg.NotifyStaff {
		group := cfg.StaffGroup
		if group == "" {
			group = s.staffGroup
		}
		staff, err := s.groupOr(ctx, group, s.dir.Staff)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, staff...)
	}

	if id, err := uuid.Parse(actor.ID); err == nil {
		if r, err := s.dir.Lookup(ctx, id); err == nil {
			recipients = append(recipients, *r)
		}
	}

	return dedupe(recipients), nil
}

// groupOr returns the members of group, or fallback when the group is
// unnamed or empty.
func (s *Service) groupOr(ctx context.Context, group string, fallback func(context.Context) ([]Recipient, error)) ([]Recipient, error) {
	if group != "" {
		members, err := s.dir.GroupMembers(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("failed to list group %q: %w", group, err)
		}
		if len(members) > 0 {
			return members, nil
		}
	}
	return fallback(ctx)
}

func dedupe(in []Recipient) []Recipient {
	seen := make(map[uuid.UUID]bool, len(in))
	out := in[:0]
	for _, r := range in {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// Notify sends one notification to one user.
func (s *Service) Notify(ctx context.Context, req Request) (*WorkflowNotification, error) {
	r, err := s.dir.Lookup(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if req.Type == "" {
		req.Type = TypeInApp
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	n := &WorkflowNotification{
		RecipientID:      r.ID,
		NotificationType: req.Type,
		Priority:         req.Priority,
		Title:            req.Title,
		Message:          req.Message,
		InstanceType:     req.InstanceType,
		InstanceID:       req.InstanceID,
		EventType:        req.EventType,
		EventData:        encodeEventData(req.EventData),
	}
	if err := s.createAndDeliver(ctx, n, *r); err != nil {
		return nil, err
	}
	return n, nil
}

// ScheduleEscalation addresses the escalation group, or active superusers
// when the group has no members. next_escalation is recorded for manual
// review only.
func (s *Service) ScheduleEscalation(ctx context.Context, target models.Entity, eventType string, hours int, priority Priority) ([]*WorkflowNotification, error) {
	recipients, err := s.groupOr(ctx, s.escalationGroup, s.dir.Superusers)
	if err != nil {
		return nil, err
	}
	if priority == "" {
		priority = PriorityHigh
	}

	next := s.now().Add(time.Duration(hours) * time.Hour)
	fields := target.Fields()
	var out []*WorkflowNotification
	for _, r := range dedupe(recipients) {
		n := &WorkflowNotification{
			RecipientID:      r.ID,
			NotificationType: TypeInApp,
			Priority:         priority,
			Title:            fmt.Sprintf("Escalation: %s requires attention", target.SubjectType()),
			Message: fmt.Sprintf("%s %s (%s) was escalated: %s",
				target.SubjectType(), target.SubjectID(), target.CurrentState(), eventType),
			InstanceType:    target.SubjectType(),
			InstanceID:      target.SubjectID(),
			EventType:       eventType,
			EventData:       encodeEventData(map[string]any{"status": string(target.CurrentState()), "priority": fields["priority"]}),
			EscalationLevel: 1,
			NextEscalation:  &next,
		}
		if err := s.createAndDeliver(ctx, n, r); err != nil {
			s.logger.Warn("Failed to create escalation notification",
				zap.String("instance_id", target.SubjectID()),
				zap.String("recipient_id", r.ID.String()),
				zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// DueEscalations lists unread escalations whose next_escalation has passed.
func (s *Service) DueEscalations(ctx context.Context, now time.Time) ([]WorkflowNotification, error) {
	return s.repo.ListDueEscalations(ctx, now)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]WorkflowNotification, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, limit)
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead flags a notification as read. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID, s.now())
}

// createAndDeliver stores the row, then attempts delivery. A delivery
// failure leaves is_sent false and is not returned.
func (s *Service) createAndDeliver(ctx context.Context, n *WorkflowNotification, r Recipient) error {
	now := s.now()
	n.CreatedAt = now
	if n.NotificationType == TypeInApp {
		n.IsSent = true
		n.SentAt = &now
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.observe(n, "store_failed")
		return err
	}

	var err error
	switch n.NotificationType {
	case TypeInApp:
		s.pushInApp(n)
		s.observe(n, "sent")
		return nil
	case TypeEmail:
		err = s.email.SendEmail(ctx, r.Email, n.Title, n.Message)
	case TypeSMS:
		err = s.sms.SendSMS(ctx, r.Phone, n.Title+": "+n.Message)
	default:
		err = fmt.Errorf("unsupported notification type %q", n.NotificationType)
	}
	if err != nil {
		s.logger.Warn("Notification delivery failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("type", string(n.NotificationType)),
			zap.Error(err))
		s.observe(n, "failed")
		return nil
	}
	s.observe(n, "sent")

	sentAt := s.now()
	if err := s.repo.MarkSent(ctx, n.ID, sentAt); err != nil {
		s.logger.Warn("Failed to mark notification sent", zap.String("notification_id", n.ID.String()), zap.Error(err))
		return nil
	}
	n.IsSent = true
	n.SentAt = &sentAt
	return nil
}

func (s *Service) pushInApp(n *WorkflowNotification) {
	if s.push == nil {
		return
	}
	err := s.push.SendToUser(n.RecipientID.String(), websocket.Message{
		Type: websocket.MessageTypeNotification,
		Data: map[string]any{
			"id":            n.ID.String(),
			"title":         n.Title,
			"message":       n.Message,
			"priority":      string(n.Priority),
			"instance_type": n.InstanceType,
			"instance_id":   n.InstanceID,
			"event_type":    n.EventType,
		},
		Timestamp: n.CreatedAt,
	})
	if err != nil {
		s.logger.Debug("In-app push skipped", zap.String("recipient_id", n.RecipientID.String()), zap.Error(err))
	}
}

func encodeEventData(in map[string]any) []byte {
	if len(in) == 0 {
		return []byte("{}")
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
