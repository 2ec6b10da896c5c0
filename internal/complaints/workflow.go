package complaints

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
	EventAcknowledge workflows.Event = "acknowledge_complaint"
	EventResolve     workflows.Event = "resolve_complaint"
	EventClose       workflows.Event = "close_complaint"
	EventReopen      workflows.Event = "reopen_complaint"
)

type (
	transition = workflows.Transition[*models.Complaint, *repository.Repositories]
	validator  = workflows.Validator[*models.Complaint]
	sideEffect = workflows.SideEffect[*models.Complaint, *repository.Repositories]

	// Engine runs complaint transitions.
	Engine = workflows.Engine[*models.Complaint, *repository.Repositories]
)

// Roles: managers pass caretaker checks, and both pass security checks.
var Roles = workflows.NewHierarchy(map[workflows.Role][]workflows.Role{
	workflows.RoleCaretaker: {workflows.RoleManager},
	workflows.RoleSecurity:  {workflows.RoleManager, workflows.RoleCaretaker},
})

var States = []workflows.State{
	models.ComplaintOpen,
	models.ComplaintInProgress,
	models.ComplaintResolved,
	models.ComplaintClosed,
}

func NewStateMachine(now func() time.Time) *workflows.StateMachine[*models.Complaint, *repository.Repositories] {
	return workflows.MustStateMachine("Complaint", States,
		transition{
			Event:       EventAcknowledge,
			From:        []workflows.State{models.ComplaintOpen},
			To:          models.ComplaintInProgress,
			Description: "Acknowledge the complaint and take ownership",
			Permissions: []workflows.Permission{workflows.RequireStaff()},
			Validators: []validator{
				func(ctx context.Context, c *models.Complaint, a workflows.Actor, p workflows.Params) error {
					if raw := p.String("assignee_id"); raw != "" {
						if _, err := uuid.Parse(raw); err != nil {
							return fmt.Errorf("Invalid assignee id %q", raw)
						}
					}
					return nil
				},
			},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, c *models.Complaint, a workflows.Actor, p workflows.Params) error {
					raw := p.String("assignee_id")
					if raw == "" {
						raw = a.ID
					}
					if id, err := uuid.Parse(raw); err == nil {
						c.AssignedToID = &id
					}
					return nil
				},
			},
		},
		transition{
			Event:       EventResolve,
			From:        []workflows.State{models.ComplaintOpen, models.ComplaintInProgress},
			To:          models.ComplaintResolved,
			Description: "Record how the complaint was resolved",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			Validators: []validator{
				func(ctx context.Context, c *models.Complaint, a workflows.Actor, p workflows.Params) error {
					if p.String("resolution") == "" {
						return errors.New("Resolution is required")
					}
					return nil
				},
			},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, c *models.Complaint, a workflows.Actor, p workflows.Params) error {
					at := now()
					c.Resolution = p.String("resolution")
					c.ResolvedAt = &at
					return nil
				},
			},
		},
		transition{
			Event:       EventClose,
			From:        []workflows.State{models.ComplaintResolved},
			To:          models.ComplaintClosed,
			Description: "Close a resolved complaint",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleManager)},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, c *models.Complaint, a workflows.Actor, p workflows.Params) error {
					at := now()
					c.ClosedAt = &at
					return nil
				},
			},
		},
		transition{
			Event:       EventReopen,
			From:        []workflows.State{models.ComplaintResolved, models.ComplaintClosed},
			To:          models.ComplaintOpen,
			Description: "Reopen a complaint that came back",
			Validators:  []validator{complainantOrStaff},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, c *models.Complaint, a workflows.Actor, p workflows.Params) error {
					c.ResolvedAt = nil
					c.ClosedAt = nil
					c.ReopenCount++
					return nil
				},
			},
		},
	)
}

func complainantOrStaff(ctx context.Context, c *models.Complaint, a workflows.Actor, p workflows.Params) error {
	if a.Staff || a.Superuser {
		return nil
	}
	if c.Tenant != nil && c.Tenant.IsUser(a.ID) {
		return nil
	}
	return errors.New("Only the complainant or staff can reopen a complaint")
}
