package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Service handles tenant compliance reviews
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
	store := repository.NewSubjectStore(uow, func(ctx context.Context, tx *repository.Repositories, t *models.Tenant, from workflows.State) error {
		return tx.Tenants.Save(ctx, t, from)
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

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.uow.Repositories().Tenants.Get(ctx, id)
}

// Transition loads the tenant and fires event on its compliance status.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, event workflows.Event, actor workflows.Actor, params workflows.Params) (*models.Tenant, workflows.Result, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, workflows.Result{}, err
	}
	result, err := s.engine.Transition(ctx, t, event, actor, params)
	return t, result, err
}

func (s *Service) SubmitDocuments(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.Tenant, error) {
	t, _, err := s.Transition(ctx, id, EventSubmitDocuments, actor, nil)
	return t, err
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID, notes string, actor workflows.Actor) (*models.Tenant, error) {
	t, _, err := s.Transition(ctx, id, EventApprove, actor, workflows.Params{"notes": notes})
	return t, err
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.Tenant, error) {
	t, _, err := s.Transition(ctx, id, EventReject, actor, workflows.Params{"reason": reason})
	return t, err
}

func (s *Service) Flag(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.Tenant, error) {
	t, _, err := s.Transition(ctx, id, EventFlag, actor, workflows.Params{"reason": reason})
	return t, err
}

// Suspend moves a non-compliant tenant to suspended and blocks the account.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.Tenant, error) {
	t, _, err := s.Transition(ctx, id, EventSuspend, actor, workflows.Params{"reason": reason})
	return t, err
}

func (s *Service) Reinstate(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.Tenant, error) {
	t, _, err := s.Transition(ctx, id, EventReinstate, actor, nil)
	return t, err
}

func (s *Service) Metrics(ctx context.Context, t *models.Tenant) map[string]any {
	out := map[string]any{
		"balance":       t.AccountBalance,
		"tenant_status": string(t.TenantStatus),
	}
	if t.DocumentsSubmittedAt != nil {
		out["days_since_submission"] = int(s.now().Sub(*t.DocumentsSubmittedAt).Hours() / 24)
	}
	return out
}
