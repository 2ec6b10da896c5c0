// Package compliance drives a tenant's compliance status: document
// submission, review, flagging and suspension.
package compliance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const (
	EventSubmitDocuments workflows.Event = "submit_documents"
	EventApprove         workflows.Event = "approve_compliance"
	EventReject          workflows.Event = "reject_compliance"
	EventFlag            workflows.Event = "flag_non_compliant"
	EventSuspend         workflows.Event = "suspend_tenant"
	EventReinstate       workflows.Event = "reinstate_tenant"
)

type (
	transition = workflows.Transition[*models.Tenant, *repository.Repositories]
	validator  = workflows.Validator[*models.Tenant]
	sideEffect = workflows.SideEffect[*models.Tenant, *repository.Repositories]

	// Engine runs tenant compliance transitions.
	Engine = workflows.Engine[*models.Tenant, *repository.Repositories]
)

var Roles = workflows.NewHierarchy(map[workflows.Role][]workflows.Role{
	workflows.RoleCaretaker: {workflows.RoleManager},
})

var States = []workflows.State{
	models.CompliancePendingDocuments,
	models.ComplianceUnderReview,
	models.ComplianceCompliant,
	models.ComplianceNonCompliant,
	models.ComplianceSuspended,
}

// NewStateMachine builds the compliance graph. The tenant row is the
// subject, so tenant_status changes are made on it directly and saved
// with the status.
func NewStateMachine(now func() time.Time) *workflows.StateMachine[*models.Tenant, *repository.Repositories] {
	manager := []workflows.Permission{workflows.RequireRole(workflows.RoleManager)}
	reason := requireParam("reason", "A reason is required")

	return workflows.MustStateMachine("Tenant", States,
		transition{
			Event:       EventSubmitDocuments,
			From:        []workflows.State{models.CompliancePendingDocuments, models.ComplianceNonCompliant},
			To:          models.ComplianceUnderReview,
			Description: "Submit compliance documents for review",
			Validators:  []validator{selfOrStaff},
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, t *models.Tenant, a workflows.Actor, p workflows.Params) error {
					at := now()
					t.DocumentsSubmittedAt = &at
					return nil
				},
			},
		},
		transition{
			Event:       EventApprove,
			From:        []workflows.State{models.ComplianceUnderReview},
			To:          models.ComplianceCompliant,
			Description: "Approve the submitted documents",
			Permissions: manager,
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, t *models.Tenant, a workflows.Actor, p workflows.Params) error {
					at := now()
					t.ComplianceReviewedAt = &at
					if id, err := uuid.Parse(a.ID); err == nil {
						t.ComplianceReviewedBy = &id
					}
					if notes := p.String("notes"); notes != "" {
						t.ComplianceNotes = notes
					}
					return nil
				},
			},
		},
		transition{
			Event:       EventReject,
			From:        []workflows.State{models.ComplianceUnderReview},
			To:          models.ComplianceNonCompliant,
			Description: "Reject the submitted documents",
			Permissions: manager,
			Validators:  []validator{reason},
			SideEffects: []sideEffect{noteReason(now)},
		},
		transition{
			Event:       EventFlag,
			From:        []workflows.State{models.ComplianceCompliant},
			To:          models.ComplianceNonCompliant,
			Description: "Flag a compliant tenant as non-compliant",
			Permissions: []workflows.Permission{workflows.RequireRole(workflows.RoleCaretaker)},
			Validators:  []validator{reason},
			SideEffects: []sideEffect{noteReason(now)},
		},
		transition{
			Event:       EventSuspend,
			From:        []workflows.State{models.ComplianceNonCompliant},
			To:          models.ComplianceSuspended,
			Description: "Suspend a non-compliant tenant",
			Permissions: manager,
			Validators:  []validator{reason},
			SideEffects: []sideEffect{
				noteReason(now),
				func(ctx context.Context, tx *repository.Repositories, t *models.Tenant, a workflows.Actor, p workflows.Params) error {
					t.TenantStatus = models.TenantSuspended
					return nil
				},
			},
		},
		transition{
			Event:       EventReinstate,
			From:        []workflows.State{models.ComplianceSuspended},
			To:          models.ComplianceUnderReview,
			Description: "Lift a suspension pending a fresh review",
			Permissions: manager,
			SideEffects: []sideEffect{
				func(ctx context.Context, tx *repository.Repositories, t *models.Tenant, a workflows.Actor, p workflows.Params) error {
					t.TenantStatus = models.TenantActive
					return nil
				},
			},
		},
	)
}

func selfOrStaff(ctx context.Context, t *models.Tenant, a workflows.Actor, p workflows.Params) error {
	if a.Staff || a.Superuser || t.IsUser(a.ID) {
		return nil
	}
	return errors.New("Only the tenant or staff can submit documents")
}

func requireParam(key, message string) validator {
	return func(ctx context.Context, t *models.Tenant, a workflows.Actor, p workflows.Params) error {
		if p.String(key) == "" {
			return errors.New(message)
		}
		return nil
	}
}

// noteReason records the reason and the reviewing actor.
func noteReason(now func() time.Time) sideEffect {
	return func(ctx context.Context, tx *repository.Repositories, t *models.Tenant, a workflows.Actor, p workflows.Params) error {
		at := now()
		t.ComplianceNotes = p.String("reason")
		t.ComplianceReviewedAt = &at
		if id, err := uuid.Parse(a.ID); err == nil {
			t.ComplianceReviewedBy = &id
		}
		return nil
	}
}
