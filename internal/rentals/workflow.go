package rentals

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
	EventSubmit        workflows.Event = "submit_for_approval"
	EventActivate      workflows.Event = "activate_agreement"
	EventTenantApprove workflows.Event = "tenant_approve_agreement"
	EventTerminate     workflows.Event = "terminate_agreement"
	EventExpire        workflows.Event = "expire_agreement"
	EventRenew         workflows.Event = "renew_agreement"
	EventCancel        workflows.Event = "cancel_agreement"
)

type (
	transition = workflows.Transition[*models.RentalAgreement, *repository.Repositories]
	validator  = workflows.Validator[*models.RentalAgreement]
	sideEffect = workflows.SideEffect[*models.RentalAgreement, *repository.Repositories]

	// Engine runs rental agreement transitions.
	Engine = workflows.Engine[*models.RentalAgreement, *repository.Repositories]
)

var Roles = workflows.NewHierarchy(map[workflows.Role][]workflows.Role{
	workflows.RoleCaretaker: {workflows.RoleManager},
})

var States = []workflows.State{
	models.RentalDraft,
	models.RentalPendingApproval,
	models.RentalActive,
	models.RentalExpired,
	models.RentalTerminated,
	models.RentalCancelled,
}

// ErrRoomOccupied aborts an activation whose room was taken in the
// meantime.
var ErrRoomOccupied = errors.New("room is already occupied")

// NewStateMachine builds the rental agreement graph. Validators read rooms
// and agreements through uow; side effects re-check the room inside the
// transaction so two activations cannot both occupy it.
func NewStateMachine(uow repository.UnitOfWork, now func() time.Time) *workflows.StateMachine[*models.RentalAgreement, *repository.Repositories] {
	roomAvailable := func(ctx context.Context, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
		room, err := uow.Repositories().Rooms.Get(ctx, a.RoomID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errors.New("Room does not exist")
			}
			return err
		}
		if room.Status != models.RoomAvailable {
			return fmt.Errorf("Room %s is not available (%s)", room.Number, room.Status)
		}
		return nil
	}
	noOtherActive := func(ctx context.Context, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
		n, err := uow.Repositories().Rentals.CountActiveForTenant(ctx, a.TenantID, a.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.New("Tenant already has an active agreement")
		}
		return nil
	}
	activate := func(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
		if err := occupy(ctx, tx, a); err != nil {
			return err
		}
		at := now()
		a.ActivatedAt = &at
		return nil
	}

	return workflows.MustStateMachine("RentalAgreement", States,
		transition{
			Event:       EventSubmit,
			From:        []workflows.State{models.RentalDraft},
			To:          models.RentalPendingApproval,
			Description: "Submit the agreement for approval",
			Permissions: []workflows.Permission{workflows.RequireStaff()},
			Validators:  []validator{complete},
		},
		transition{
			Event:       EventActivate,
			From:        []workflows.State{models.RentalDraft, models.RentalPendingApproval},
			To:          models.RentalActive,
			Description: "Activate the agreement",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleManager)},
			Validators:  []validator{roomAvailable, noOtherActive},
			SideEffects: []sideEffect{activate},
		},
		transition{
			Event:       EventTenantApprove,
			From:        []workflows.State{models.RentalDraft, models.RentalPendingApproval},
			To:          models.RentalActive,
			Description: "Tenant accepts the agreement",
			Validators:  []validator{namedTenant, roomAvailable, noOtherActive},
			SideEffects: []sideEffect{
				activate,
				func(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
					at := now()
					a.ApprovedAt = &at
					return nil
				},
			},
		},
		transition{
			Event:       EventTerminate,
			From:        []workflows.State{models.RentalActive},
			To:          models.RentalTerminated,
			Description: "End the agreement early",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleManager)},
			Validators:  []validator{requireReason},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
					if err := release(ctx, tx, a, models.TenantMovedOut); err != nil {
						return err
					}
					at := now()
					a.TerminatedAt = &at
					a.TerminationReason = p.String("reason")
					return nil
				},
			},
		},
		transition{
			Event:       EventExpire,
			From:        []workflows.State{models.RentalActive},
			To:          models.RentalExpired,
			Description: "Close an agreement past its end date",
			Permissions: []workflows.Permission{workflows.RequireStaff()},
			Validators: []validator{
				func(ctx context.Context, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
					if a.EndDate == nil || a.EndDate.After(now()) {
						return errors.New("Agreement has not reached its end date")
					}
					return nil
				},
			},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
					return release(ctx, tx, a, models.TenantInactive)
				},
			},
		},
		transition{
			Event:       EventRenew,
			From:        []workflows.State{models.RentalExpired},
			To:          models.RentalActive,
			Description: "Renew an expired agreement",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleManager)},
			Validators: []validator{
				func(ctx context.Context, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
					end, ok := p.Time("end_date")
					if !ok {
						return errors.New("A new end date is required")
					}
					if !end.After(now()) {
						return errors.New("New end date must be in the future")
					}
					return nil
				},
				roomAvailable,
			},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
					if err := occupy(ctx, tx, a); err != nil {
						return err
					}
					end, _ := p.Time("end_date")
					a.EndDate = &end
					return nil
				},
			},
		},
		transition{
			Event:       EventCancel,
			From:        []workflows.State{models.RentalDraft, models.RentalPendingApproval},
			To:          models.RentalCancelled,
			Description: "Cancel an agreement that never started",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
		},
	)
}

func complete(ctx context.Context, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
	if a.TenantID == uuid.Nil || a.RoomID == uuid.Nil {
		return errors.New("Tenant and room are required")
	}
	if a.MonthlyRent <= 0 {
		return errors.New("Monthly rent must be positive")
	}
	return nil
}

func requireReason(ctx context.Context, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
	if p.String("reason") == "" {
		return errors.New("Termination reason is required")
	}
	return nil
}

// namedTenant admits only the agreement's own tenant user. Staff activate
// through activate_agreement, which carries the manager role check.
func namedTenant(ctx context.Context, a *models.RentalAgreement, actor workflows.Actor, p workflows.Params) error {
	if actor.Superuser {
		return nil
	}
	if a.Tenant != nil && a.Tenant.IsUser(actor.ID) {
		return nil
	}
	return errors.New("Only the tenant named on the agreement can approve it")
}

// occupy takes the room and marks the tenant active.
func occupy(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement) error {
	if err := tx.Rooms.SetStatus(ctx, a.RoomID, models.RoomAvailable, models.RoomOccupied); err != nil {
		if errors.Is(err, repository.ErrRoomUnavailable) {
			return ErrRoomOccupied
		}
		return fmt.Errorf("failed to occupy room: %w", err)
	}
	if err := tx.Tenants.SetTenantStatus(ctx, a.TenantID, models.TenantActive); err != nil {
		return fmt.Errorf("failed to activate tenant: %w", err)
	}
	return nil
}

// release frees the room and moves the tenant to status.
func release(ctx context.Context, tx *repository.Repositories, a *models.RentalAgreement, status models.TenantStatus) error {
	err := tx.Rooms.SetStatus(ctx, a.RoomID, models.RoomOccupied, models.RoomAvailable)
	if err != nil && !errors.Is(err, repository.ErrRoomUnavailable) {
		return fmt.Errorf("failed to release room: %w", err)
	}
	if err := tx.Tenants.SetTenantStatus(ctx, a.TenantID, status); err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}
