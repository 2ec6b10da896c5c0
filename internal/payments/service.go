package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Service handles payment business logic
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
	store := repository.NewSubjectStore(uow, func(ctx context.Context, tx *repository.Repositories, p *models.Payment, from workflows.State) error {
		return tx.Payments.Save(ctx, p, from)
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

// Create records an expected payment in the pending state.
func (s *Service) Create(ctx context.Context, p *models.Payment) error {
	if p.TenantID == uuid.Nil {
		return fmt.Errorf("tenant is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	p.Status = models.PaymentPending
	if p.PaymentDate.IsZero() {
		p.PaymentDate = s.now()
	}
	if err := s.uow.Repositories().Payments.Create(ctx, p); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.uow.Repositories().Payments.Get(ctx, id)
}

// Transition loads the payment and fires event on it.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, event workflows.Event, actor workflows.Actor, params workflows.Params) (*models.Payment, workflows.Result, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, workflows.Result{}, err
	}
	result, err := s.engine.Transition(ctx, p, event, actor, params)
	return p, result, err
}

func (s *Service) StartProcessing(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.Payment, error) {
	p, _, err := s.Transition(ctx, id, EventStartProcessing, actor, nil)
	return p, err
}

// VerifyCompleted confirms receipt and credits the tenant.
func (s *Service) VerifyCompleted(ctx context.Context, id uuid.UUID, reference string, actor workflows.Actor) (*models.Payment, error) {
	p, _, err := s.Transition(ctx, id, EventVerifyCompleted, actor, workflows.Params{"reference": reference})
	return p, err
}

func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.Payment, error) {
	p, _, err := s.Transition(ctx, id, EventMarkFailed, actor, workflows.Params{"reason": reason})
	return p, err
}

func (s *Service) Retry(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.Payment, error) {
	p, _, err := s.Transition(ctx, id, EventRetry, actor, nil)
	return p, err
}

// Refund returns the money and debits the tenant.
func (s *Service) Refund(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.Payment, error) {
	p, _, err := s.Transition(ctx, id, EventRefund, actor, workflows.Params{"reason": reason})
	return p, err
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.Payment, error) {
	p, _, err := s.Transition(ctx, id, EventCancel, actor, nil)
	return p, err
}

// RiskScore rates how likely a payment is to need chasing, from 0 to 100.
// Settled payments score 0. Otherwise two points per overdue day (capped
// at 50), 30 for a failed attempt and up to 20 for large amounts.
func (s *Service) RiskScore(p *models.Payment) int {
	switch p.Status {
	case models.PaymentCompleted, models.PaymentRefunded, models.PaymentCancelled:
		return 0
	}
	score := p.DaysOverdue(s.now()) * 2
	if score > 50 {
		score = 50
	}
	if p.Status == models.PaymentFailed {
		score += 30
	}
	switch {
	case p.Amount >= 1000:
		score += 20
	case p.Amount >= 500:
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func (s *Service) Metrics(ctx context.Context, p *models.Payment) map[string]any {
	return map[string]any{
		"risk_score":   s.RiskScore(p),
		"days_overdue": p.DaysOverdue(s.now()),
		"amount":       p.Amount,
	}
}
