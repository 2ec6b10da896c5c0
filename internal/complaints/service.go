package complaints

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Service handles complaint business logic
type Service struct {
	uow    repository.UnitOfWork
	engine *Engine
	logger *zap.Logger
	now    func() time.Time
}

func NewService(uow repository.UnitOfWork, logger *zap.Logger, opts ...workflows.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{uow: uow, logger: logger, now: time.Now}
	clock := func() time.Time { return s.now() }
	store := repository.NewSubjectStore(uow, func(ctx context.Context, tx *repository.Repositories, c *models.Complaint, from workflows.State) error {
		return tx.Complaints.Save(ctx, c, from)
	})
	opts = append([]workflows.Option{workflows.WithLogger(logger)}, opts...)
	opts = append(opts, workflows.WithClock(clock))
	s.engine = workflows.NewEngine(NewStateMachine(clock), Roles, store, opts...)
	return s
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// Create files a new open complaint.
func (s *Service) Create(ctx context.Context, c *models.Complaint) error {
	if c.TenantID == uuid.Nil {
		return fmt.Errorf("tenant is required")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if c.Priority == "" {
		c.Priority = models.PriorityMedium
	}
	c.Status = models.ComplaintOpen
	if err := s.uow.Repositories().Complaints.Create(ctx, c); err != nil {
		return fmt.Errorf("failed to create complaint: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	return s.uow.Repositories().Complaints.Get(ctx, id)
}

// Transition loads the complaint and fires event on it.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, event workflows.Event, actor workflows.Actor, params workflows.Params) (*models.Complaint, workflows.Result, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, workflows.Result{}, err
	}
	result, err := s.engine.Transition(ctx, c, event, actor, params)
	return c, result, err
}

// Acknowledge assigns the complaint to assignee, or to the actor when
// assignee is nil.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, assignee *uuid.UUID, actor workflows.Actor) (*models.Complaint, error) {
	params := workflows.Params{}
	if assignee != nil {
		params["assignee_id"] = assignee.String()
	}
	c, _, err := s.Transition(ctx, id, EventAcknowledge, actor, params)
	return c, err
}

func (s *Service) Resolve(ctx context.Context, id uuid.UUID, resolution string, actor workflows.Actor) (*models.Complaint, error) {
	c, _, err := s.Transition(ctx, id, EventResolve, actor, workflows.Params{"resolution": resolution})
	return c, err
}

func (s *Service) Close(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.Complaint, error) {
	c, _, err := s.Transition(ctx, id, EventClose, actor, nil)
	return c, err
}

func (s *Service) Reopen(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.Complaint, error) {
	c, _, err := s.Transition(ctx, id, EventReopen, actor, nil)
	return c, err
}

// Age is how long the complaint has been, or was, unresolved.
func (s *Service) Age(c *models.Complaint) time.Duration {
	end := s.now()
	if c.ResolvedAt != nil {
		end = *c.ResolvedAt
	}
	return end.Sub(c.CreatedAt)
}

func (s *Service) Metrics(ctx context.Context, c *models.Complaint) map[string]any {
	age := s.Age(c)
	return map[string]any{
		"age_hours":    math.Round(age.Hours()*10) / 10,
		"age_days":     int(age.Hours() / 24),
		"reopen_count": c.ReopenCount,
	}
}
