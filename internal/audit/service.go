package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const recentTransitionsInSummary = 10

// TransitionEntry is a committed state change.
type TransitionEntry struct {
	InstanceType string
	InstanceID   string
	Event        workflows.Event
	OldState     workflows.State
	NewState     workflows.State
	Actor        workflows.Actor
	Metadata     map[string]any
	Notes        string
}

// EventEntry is any other workflow-related occurrence.
type EventEntry struct {
	InstanceType string
	InstanceID   string
	EventType    string
	EventName    string
	Actor        *workflows.Actor
	Metadata     map[string]any
	Notes        string
}

// Service writes and queries the workflow audit log.
type Service struct {
	repo   Repository
	cache  SummaryCache
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, cache SummaryCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// LogWorkflowTransition records a transition. Failures are logged and
// reported as a nil row; they never propagate.
func (s *Service) LogWorkflowTransition(ctx context.Context, entry TransitionEntry) *WorkflowAuditLog {
	actor := entry.Actor
	return s.write(ctx, &actor, WorkflowAuditLog{
		InstanceType: entry.InstanceType,
		InstanceID:   entry.InstanceID,
		EventType:    EventTransition,
		EventName:    string(entry.Event),
		OldState:     string(entry.OldState),
		NewState:     string(entry.NewState),
		Notes:        entry.Notes,
	}, entry.Metadata)
}

// LogEvent records a non-transition event.
func (s *Service) LogEvent(ctx context.Context, entry EventEntry) *WorkflowAuditLog {
	eventType := entry.EventType
	if eventType == "" {
		eventType = EventManual
	}
	return s.write(ctx, entry.Actor, WorkflowAuditLog{
		InstanceType: entry.InstanceType,
		InstanceID:   entry.InstanceID,
		EventType:    eventType,
		EventName:    entry.EventName,
		Notes:        entry.Notes,
	}, entry.Metadata)
}

func (s *Service) write(ctx context.Context, actor *workflows.Actor, row WorkflowAuditLog, metadata map[string]any) *WorkflowAuditLog {
	raw, err := encodeMetadata(metadata)
	if err != nil {
		s.logger.Warn("Failed to encode audit metadata",
			zap.String("instance_type", row.InstanceType),
			zap.String("instance_id", row.InstanceID),
			zap.Error(err))
		raw = []byte("{}")
	}
	row.Metadata = raw
	row.IPAddress = ClientIP(ctx)
	row.Timestamp = s.now()
	if actor != nil {
		row.UserName = actor.Name
		if id, err := uuid.Parse(actor.ID); err == nil {
			row.UserID = &id
		}
	}

	if err := s.repo.Create(ctx, &row); err != nil {
		s.logger.Warn("Failed to write audit log",
			zap.String("instance_type", row.InstanceType),
			zap.String("instance_id", row.InstanceID),
			zap.String("event", row.EventName),
			zap.Error(err))
		return nil
	}
	return &row
}

// GetWorkflowHistory returns an instance's rows oldest first.
func (s *Service) GetWorkflowHistory(ctx context.Context, instanceType, instanceID string) ([]WorkflowAuditLog, error) {
	return s.repo.ListForInstance(ctx, instanceType, instanceID)
}

// GetEvents returns filtered rows newest first.
func (s *Service) GetEvents(ctx context.Context, filter EventFilter) ([]WorkflowAuditLog, error) {
	return s.repo.ListEvents(ctx, filter)
}

// GetRecentActivity returns up to limit rows from the last days days.
func (s *Service) GetRecentActivity(ctx context.Context, limit, days int) ([]WorkflowAuditLog, error) {
	since := s.now().AddDate(0, 0, -days)
	return s.repo.ListEvents(ctx, EventFilter{Since: &since, Limit: limit})
}

// GetAuditSummary aggregates the last days days of activity.
func (s *Service) GetAuditSummary(ctx context.Context, days int) (*AuditSummary, error) {
	if days <= 0 {
		days = 30
	}
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, days); ok {
			return cached, nil
		}
	}

	since := s.now().AddDate(0, 0, -days)
	byEvent, err := s.repo.CountByEventName(ctx, since)
	if err != nil {
		return nil, err
	}
	byType, err := s.repo.CountByInstanceType(ctx, since)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.ListEvents(ctx, EventFilter{
		EventType: EventTransition,
		Since:     &since,
		Limit:     recentTransitionsInSummary,
	})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range byEvent {
		total += n
	}
	summary := &AuditSummary{
		Days:               days,
		Since:              since,
		TotalEvents:        total,
		EventCounts:        byEvent,
		InstanceTypeCounts: byType,
		RecentTransitions:  recent,
	}
	if s.cache != nil {
		s.cache.Set(ctx, days, summary)
	}
	return summary, nil
}
