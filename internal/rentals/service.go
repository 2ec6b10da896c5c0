package rentals

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

// Service handles rental agreement business logic
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
	store := repository.NewSubjectStore(uow, func(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement, from workflows.State) error {
		return tx.Rentals.Save(ctx, a, from)
	})
	opts = append([]workflows.Option{workflows.WithLogger(logger)}, opts...)
	opts = append(opts, workflows.WithClock(clock))
	s.engine = workflows.NewEngine(NewStateMachine(uow, clock), Roles, store, opts...)
	return s
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Engine() *Engine {
	return s.engine
}

// Create stores a draft agreement.
func (s *Service) Create(ctx context.Context, a *models.RentalAgreement) error {
	if a.TenantID == uuid.Nil || a.RoomID == uuid.Nil {
		return fmt.Errorf("tenant and room are required")
	}
	if a.PaymentDay == 0 {
		a.PaymentDay = 1
	}
	if a.PaymentDay < 1 || a.PaymentDay > 28 {
		return fmt.Errorf("payment day must be between 1 and 28")
	}
	a.Status = models.RentalDraft
	if err := s.uow.Repositories().Rentals.Create(ctx, a); err != nil {
		return fmt.Errorf("failed to create rental agreement: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.RentalAgreement, error) {
	return s.uow.Repositories().Rentals.Get(ctx, id)
}

// Transition loads the agreement and fires event on it.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, event workflows.Event, actor workflows.Actor, params workflows.Params) (*models.RentalAgreement, workflows.Result, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, workflows.Result{}, err
	}
	result, err := s.engine.Transition(ctx, a, event, actor, params)
	return a, result, err
}

func (s *Service) SubmitForApproval(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.RentalAgreement, error) {
	a, _, err := s.Transition(ctx, id, EventSubmit, actor, nil)
	return a, err
}

// Activate starts the agreement, occupying the room and activating the
// tenant in one transaction.
func (s *Service) Activate(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.RentalAgreement, error) {
	a, _, err := s.Transition(ctx, id, EventActivate, actor, nil)
	return a, err
}

func (s *Service) TenantApprove(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.RentalAgreement, error) {
	a, _, err := s.Transition(ctx, id, EventTenantApprove, actor, nil)
	return a, err
}

func (s *Service) Terminate(ctx context.Context, id uuid.UUID, reason string, actor workflows.Actor) (*models.RentalAgreement, error) {
	a, _, err := s.Transition(ctx, id, EventTerminate, actor, workflows.Params{"reason": reason})
	return a, err
}

func (s *Service) Expire(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.RentalAgreement, error) {
	a, _, err := s.Transition(ctx, id, EventExpire, actor, nil)
	return a, err
}

func (s *Service) Renew(ctx context.Context, id uuid.UUID, endDate time.Time, actor workflows.Actor) (*models.RentalAgreement, error) {
	a, _, err := s.Transition(ctx, id, EventRenew, actor, workflows.Params{"end_date": endDate})
	return a, err
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor workflows.Actor) (*models.RentalAgreement, error) {
	a, _, err := s.Transition(ctx, id, EventCancel, actor, nil)
	return a, err
}

// ListActive returns every active agreement with its tenant loaded.
func (s *Service) ListActive(ctx context.Context) ([]*models.RentalAgreement, error) {
	return s.uow.Repositories().Rentals.ListByStatus(ctx, models.RentalActive)
}

// NextDueDate computes the next rent due date from the last completed
// payment on the agreement.
func (s *Service) NextDueDate(ctx context.Context, a *models.RentalAgreement) (time.Time, error) {
	last, err := s.uow.Repositories().Payments.LastCompletedForAgreement(ctx, a.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load last payment: %w", err)
	}
	return a.NextDueDate(last), nil
}

func (s *Service) Metrics(ctx context.Context, a *models.RentalAgreement) map[string]any {
	out := map[string]any{
		"days_remaining": a.DaysRemaining(s.now()),
		"monthly_rent":   a.MonthlyRent,
	}
	if a.Status == models.RentalActive {
		if due, err := s.NextDueDate(ctx, a); err == nil {
			out["next_due_date"] = due.Format("2006-01-02")
		} else {
			s.logger.Warn("Failed to compute next due date", zap.String("id", a.ID.String()), zap.Error(err))
		}
	}
	return out
}
