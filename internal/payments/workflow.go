package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const (
	EventStartProcessing workflows.Event = "start_processing"
	EventVerifyCompleted workflows.Event = "verify_payment_completed"
	EventMarkFailed      workflows.Event = "mark_failed"
	EventRetry           workflows.Event = "retry_payment"
	EventRefund          workflows.Event = "refund_payment"
	EventCancel          workflows.Event = "cancel_payment"
)

type (
	transition = workflows.Transition[*models.Payment, *repository.Repositories]
	validator  = workflows.Validator[*models.Payment]
	sideEffect = workflows.SideEffect[*models.Payment, *repository.Repositories]

	// Engine runs payment transitions.
	Engine = workflows.Engine[*models.Payment, *repository.Repositories]
)

var Roles = workflows.NewHierarchy(map[workflows.Role][]workflows.Role{
	workflows.RoleCaretaker: {workflows.RoleManager},
})

var States = []workflows.State{
	models.PaymentPending,
	models.PaymentProcessing,
	models.PaymentCompleted,
	models.PaymentFailed,
	models.PaymentRefunded,
	models.PaymentCancelled,
}

// NewStateMachine builds the payment graph. Completing a payment credits
// the tenant's balance and refunding debits it, in the same transaction as
// the status change.
func NewStateMachine(now func() time.Time) *workflows.StateMachine[*models.Payment, *repository.Repositories] {
	return workflows.MustStateMachine("Payment", States,
		transition{
			Event:       EventStartProcessing,
			From:        []workflows.State{models.PaymentPending},
			To:          models.PaymentProcessing,
			Description: "Start processing the payment",
			Permissions: []workflows.Permission{workflows.RequireStaff()},
		},
		transition{
			Event:       EventVerifyCompleted,
			From:        []workflows.State{models.PaymentPending, models.PaymentProcessing},
			To:          models.PaymentCompleted,
			Description: "Confirm the money was received",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			Validators:  []validator{positiveAmount},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, p *models.Payment, a workflows.Actor, params workflows.Params) error {
					at := now()
					p.ProcessedDate = &at
					p.FailureReason = ""
					if id, err := uuid.Parse(a.ID); err == nil {
						p.VerifiedBy = &id
					}
					if ref := params.String("reference"); ref != "" {
						p.Reference = ref
					}
					return adjustBalance(ctx, tx, p.TenantID, p.Amount)
				},
			},
		},
		transition{
			Event:       EventMarkFailed,
			From:        []workflows.State{models.PaymentPending, models.PaymentProcessing},
			To:          models.PaymentFailed,
			Description: "Record a failed payment",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			Validators:  []validator{requireParam("reason", "Failure reason is required")},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, p *models.Payment, a workflows.Actor, params workflows.Params) error {
					p.FailureReason = params.String("reason")
					return nil
				},
			},
		},
		transition{
			Event:       EventRetry,
			From:        []workflows.State{models.PaymentFailed},
			To:          models.PaymentPending,
			Description: "Retry a failed payment",
			Permissions: []workflows.Permission{workflows.RequireStaff()},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, p *models.Payment, a workflows.Actor, params workflows.Params) error {
					p.FailureReason = ""
					return nil
				},
			},
		},
		transition{
			Event:       EventRefund,
			From:        []workflows.State{models.PaymentCompleted},
			To:          models.PaymentRefunded,
			Description: "Refund a completed payment",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleManager)},
			Validators:  []validator{requireParam("reason", "Refund reason is required")},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, p *models.Payment, a workflows.Actor, params workflows.Params) error {
					at := now()
					p.RefundReason = params.String("reason")
					p.RefundedDate = &at
					return adjustBalance(ctx, tx, p.TenantID, -p.Amount)
				},
			},
		},
		transition{
			Event:       EventCancel,
			From:        []workflows.State{models.PaymentPending},
			To:          models.PaymentCancelled,
			Description: "Cancel an expected payment",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleManager)},
		},
	)
}

func positiveAmount(ctx context.Context, p *models.Payment, a workflows.Actor, params workflows.Params) error {
	if p.Amount <= 0 {
		return errors.New("Payment amount must be positive")
	}
	return nil
}

func requireParam(key, message string) validator {
	return func(ctx context.Context, p *models.Payment, a workflows.Actor, params workflows.Params) error {
		if params.String(key) == "" {
			return errors.New(message)
		}
		return nil
	}
}

func adjustBalance(ctx context.Context, tx *repository.Repositories, tenantID uuid.UUID, delta float64) error {
	if err := tx.Tenants.AdjustBalance(ctx, tenantID, delta); err != nil {
		return fmt.Errorf("failed to update tenant balance: %w", err)
	}
	return nil
}
