package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const (
	EventAssignTechnician workflows.Event = "assign_technician"
	EventPutOnHold        workflows.Event = "put_on_hold"
	EventResume           workflows.Event = "resume_request"
	EventComplete         workflows.Event = "complete_request"
	EventCancel           workflows.Event = "cancel_request"
	EventReopen           workflows.Event = "reopen_request"
)

type (
	transition = workflows.Transition[*models.MaintenanceRequest, *repository.Repositories]
	validator  = workflows.Validator[*models.MaintenanceRequest]
	sideEffect = workflows.SideEffect[*models.MaintenanceRequest, *repository.Repositories]

	// Engine runs maintenance request transitions.
	Engine = workflows.Engine[*models.MaintenanceRequest, *repository.Repositories]
)

// Roles: a caretaker check passes for managers, a cleaner check for
// caretakers and managers.
var Roles = workflows.NewHierarchy(map[workflows.Role][]workflows.Role{
	workflows.RoleCaretaker: {workflows.RoleManager},
	workflows.RoleCleaner:   {workflows.RoleManager, workflows.RoleCaretaker},
})

var States = []workflows.State{
	models.MaintenancePending,
	models.MaintenanceInProgress,
	models.MaintenanceOnHold,
	models.MaintenanceCompleted,
	models.MaintenanceCancelled,
}

// NewStateMachine builds the maintenance request graph. now stamps the
// dates written by side effects.
func NewStateMachine(now func() time.Time) *workflows.StateMachine[*models.MaintenanceRequest, *repository.Repositories] {
	return workflows.MustStateMachine("MaintenanceRequest", States,
		transition{
			Event:       EventAssignTechnician,
			From:        []workflows.State{models.MaintenancePending, models.MaintenanceOnHold},
			To:          models.MaintenanceInProgress,
			Description: "Assign a technician and start work",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			Validators:  []validator{requireParam("technician_name", "Technician name is required")},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
					at := now()
					m.AssignedTo = p.String("technician_name")
					m.AssignedDate = &at
					m.HoldReason = ""
					return nil
				},
			},
		},
		transition{
			Event:       EventPutOnHold,
			From:        []workflows.State{models.MaintenanceInProgress},
			To:          models.MaintenanceOnHold,
			Description: "Pause work on the request",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			Validators:  []validator{requireParam("reason", "Reason for hold is required")},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
					m.HoldReason = p.String("reason")
					return nil
				},
			},
		},
		transition{
			Event:       EventResume,
			From:        []workflows.State{models.MaintenanceOnHold},
			To:          models.MaintenanceInProgress,
			Description: "Resume work on the request",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			Validators:  []validator{requireTechnician("A technician must be assigned before resuming")},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
					m.HoldReason = ""
					return nil
				},
			},
		},
		transition{
			Event:       EventComplete,
			From:        []workflows.State{models.MaintenancePending, models.MaintenanceInProgress},
			To:          models.MaintenanceCompleted,
			Description: "Mark the work as done",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCleaner)},
			Validators: []validator{
				requireTechnician("A technician must be assigned before completion"),
				validateActualCost,
			},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
					at := now()
					m.CompletedDate = &at
					m.CompletionNotes = p.String("completion_notes")
					if cost, ok := p.Float("actual_cost"); ok {
						m.ActualCost = &cost
					}
					return nil
				},
				releaseRoom,
			},
		},
		transition{
			Event:       EventCancel,
			From:        []workflows.State{models.MaintenancePending, models.MaintenanceInProgress, models.MaintenanceOnHold},
			To:          models.MaintenanceCancelled,
			Description: "Cancel the request",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleManager)},
			Validators:  []validator{requireParam("reason", "Cancellation reason is required")},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
					m.CancellationReason = p.String("reason")
					return nil
				},
			},
		},
		transition{
			Event:       EventReopen,
			From:        []workflows.State{models.MaintenanceCompleted, models.MaintenanceCancelled},
			To:          models.MaintenancePending,
			Description: "Reopen a closed request",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
					m.CompletedDate = nil
					m.CancellationReason = ""
					return nil
				},
			},
		},
	)
}

func requireParam(key, message string) validator {
	return func(ctx context.Context, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
		if p.String(key) == "" {
			return errors.New(message)
		}
		return nil
	}
}

func requireTechnician(message string) validator {
	return func(ctx context.Context, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
		if m.AssignedTo == "" {
			return errors.New(message)
		}
		return nil
	}
}

func validateActualCost(ctx context.Context, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
	if raw, present := p["actual_cost"]; !present || raw == nil || raw == "" {
		return nil
	}
	cost, ok := p.Float("actual_cost")
	if !ok {
		return fmt.Errorf("Actual cost must be a number")
	}
	if cost < 0 {
		return fmt.Errorf("Actual cost cannot be negative")
	}
	return nil
}

// releaseRoom frees a room held for this repair. Rooms in any other status
// are left alone.
func releaseRoom(ctx context.Context, tx *repository.Repositories, m *models.MaintenanceRequest, a workflows.Actor, p workflows.Params) error {
	err := tx.Rooms.SetStatus(ctx, m.RoomID, models.RoomMaintenance, models.RoomAvailable)
	if err == nil || errors.Is(err, repository.ErrRoomUnavailable) || errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to release room: %w", err)
}
