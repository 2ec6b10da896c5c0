package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// SLA status values.
const (
	SLAWithin   = "within_sla"
	SLAAtRisk   = "at_risk"
	SLABreached = "breached"
)

// atRiskShare is the fraction of the SLA window after which a request is
// reported at risk.
const atRiskShare = 0.75

// Service handles maintenance request business logic
type Service struct {
	uow    repository.UnitOfWork
	engine *Engine
	cfg    config.WorkflowConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new maintenance service
func NewService(uow repository.UnitOfWork, cfg config.WorkflowConfig, logger *zap.Logger, opts ...workflows.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{uow: uow, cfg: cfg, logger: logger, now: time.Now}
	clock := func() time.Time { return s.now() }
	store := repository.NewSubjectStore(uow, func(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, from workflows.State) error {
		return tx.Maintenance.Save(ctx, m, from)
	})
	opts = append([]workflows.Option{workflows.WithLogger(logger)}, opts...)
	opts = append(opts, workflows.WithClock(clock))
	s.engine = workflows.NewEngine(NewStateMachine(clock), Roles, store, opts...)
	return s
}

// SetClock overrides the time source used for stamps and SLA maths.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// Create opens a new request in the pending state.
func (s *Service) Create(ctx context.Context, m *models.MaintenanceRequest) error {
	if m.Title == "" {
		return fmt.Errorf("title is required")
	}
	if m.Priority == "" {
		m.Priority = models.PriorityMedium
	}
	m.Status = models.MaintenancePending
	if err := s.uow.Repositories().Maintenance.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to create maintenance request: %w", err)
	}
	s.logger.Info("Maintenance request created",
		zap.String("id", m.ID.String()),
		zap.String("priority", string(m.Priority)))
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	return s.uow.Repositories().Maintenance.Get(ctx, id)
}

// Transition loads the request and fires event on it.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, event workflows.Event, actor workflows.Actor, params workflows.Params) (*models.MaintenanceRequest, workflows.Result, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, workflows.Result{}, err
	}
	result, err := s.engine.Transition(ctx, m, event, actor, params)
	return m, result, err
}

func (s *Service) AssignTechnician(ctx context.Context, id uuid.UUID, technician string, actor workflows.Actor) (*models.MaintenanceRequest, error) {
	m, _, err := s.Transition(ctx, id, EventAssignTechnician, actor, workflows.Params{"technician_name": technician})
	return m, err
}

func (s *Service) PutOnHold(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.MaintenanceRequest, error) {
	m, _, err := s.Transition(ctx, id, EventPutOnHold, actor, workflows.Params{"reason": reason})
	return m, err
}

func (s *Service) Resume(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.MaintenanceRequest, error) {
	m, _, err := s.Transition(ctx, id, EventResume, actor, nil)
	return m, err
}

// Complete closes the request. actualCost may be nil when unknown.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes string, actualCost *float64, actor workflows.Actor) (*models.MaintenanceRequest, error) {
	params := workflows.Params{"completion_notes": notes}
	if actualCost != nil {
		params["actual_cost"] = *actualCost
	}
	m, _, err := s.Transition(ctx, id, EventComplete, actor, params)
	return m, err
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.MaintenanceRequest, error) {
	m, _, err := s.Transition(ctx, id, EventCancel, actor, workflows.Params{"reason": reason})
	return m, err
}

func (s *Service) Reopen(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.MaintenanceRequest, error) {
	m, _, err := s.Transition(ctx, id, EventReopen, actor, nil)
	return m, err
}

// SLAInfo describes how a request stands against its response window.
type SLAInfo struct {
	Status         string    `json:"status"`
	HoursOpen      float64   `json:"hours_open"`
	ThresholdHours float64   `json:"threshold_hours"`
	Deadline       time.Time `json:"deadline"`
}

// SLA measures the request against the window for its priority, counted
// from creation or the last escalation. Closed requests are measured up to
// their completion date.
func (s *Service) SLA(m *models.MaintenanceRequest) SLAInfo {
	window := s.cfg.SLA(string(m.Priority))
	end := s.now()
	if m.CompletedDate != nil && !m.IsOpen() {
		end = *m.CompletedDate
	}
	ref := m.SLAReference()
	elapsed := end.Sub(ref)

	info := SLAInfo{
		Status:         SLAWithin,
		HoursOpen:      roundHours(end.Sub(m.CreatedAt)),
		ThresholdHours: window.Hours(),
		Deadline:       ref.Add(window),
	}
	switch {
	case elapsed >= window:
		info.Status = SLABreached
	case float64(elapsed) >= float64(window)*atRiskShare:
		info.Status = SLAAtRisk
	}
	return info
}

// Metrics returns the entity-specific figures shown with the workflow
// status.
func (s *Service) Metrics(ctx context.Context, m *models.MaintenanceRequest) map[string]any {
	return map[string]any{
		"sla":              s.SLA(m),
		"priority":         m.Priority,
		"escalation_level": m.EscalationLevel,
		"assigned_to":      m.AssignedTo,
	}
}

// Escalate raises the priority of an overdue open request by one level and
// restarts its SLA window. The save is guarded by the same version check
// as transitions.
func (s *Service) Escalate(ctx context.Context, m *models.MaintenanceRequest) (models.Priority, error) {
	if !m.IsOpen() {
		return m.Priority, fmt.Errorf("request %s is %s", m.ID, m.Status)
	}
	old, oldLevel, oldAt := m.Priority, m.EscalationLevel, m.EscalatedAt
	err := s.uow.Do(ctx, func(ctx context.Context, tx *repository.Repositories) error {
		at := s.now()
		m.Priority = m.Priority.Escalate()
		m.EscalationLevel++
		m.EscalatedAt = &at
		return tx.Maintenance.Save(ctx, m, m.Status)
	})
	if err != nil {
		m.Priority, m.EscalationLevel, m.EscalatedAt = old, oldLevel, oldAt
		if errors.Is(err, workflows.ErrConflict) {
			return old, fmt.Errorf("request %s changed concurrently: %w", m.ID, err)
		}
		return old, fmt.Errorf("failed to escalate request: %w", err)
	}
	s.logger.Info("Maintenance request escalated",
		zap.String("id", m.ID.String()),
		zap.String("from", string(old)),
		zap.String("to", string(m.Priority)),
		zap.Int("level", m.EscalationLevel))
	return old, nil
}

// Overdue lists open requests whose SLA window has elapsed.
func (s *Service) Overdue(ctx context.Context) ([]*models.MaintenanceRequest, error) {
	open, err := s.uow.Repositories().Maintenance.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open requests: %w", err)
	}
	var out []*models.MaintenanceRequest
	for _, m := range open {
		if s.SLA(m).Status == SLABreached {
			out = append(out, m)
		}
	}
	return out, nil
}

func roundHours(d time.Duration) float64 {
	return float64(int64(d.Hours()*10+0.5)) / 10
}
