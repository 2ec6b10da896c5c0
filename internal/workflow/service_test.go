package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

func TestRegistryResolvesAliases(t *testing.T) {
	env := newEnv(t)
	reg := env.svc.Registry()

	tests := map[string]string{
		"maintenance":        "MaintenanceRequest",
		"MaintenanceRequest": "MaintenanceRequest",
		"PAYMENT":            "Payment",
		"rental":             "RentalAgreement",
		"rentalagreement":    "RentalAgreement",
		"Complaint":          "Complaint",
		"compliance":         "Tenant",
		" tenant ":           "Tenant",
	}
	for alias, want := range tests {
		h, err := reg.Resolve(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, h.Type(), alias)
	}

	_, err := reg.Resolve("invoice")
	assert.ErrorIs(t, err, ErrUnknownModelType)
	assert.Equal(t, []string{"Complaint", "MaintenanceRequest", "Payment", "RentalAgreement", "Tenant"}, reg.Types())
}

func TestTransitionToStatusPicksPermittedEvent(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	p := env.payment(t, 300)

	result, err := env.svc.TransitionToStatus(ctx, "payment", p.ID, models.PaymentCompleted, env.caretaker.Actor(), "cash at office", nil)
	require.NoError(t, err)
	assert.Equal(t, workflows.Event("verify_payment_completed"), result.Event)
	assert.Equal(t, models.PaymentPending, result.OldState)
	assert.Equal(t, models.PaymentCompleted, result.NewState)

	history, err := env.svc.History(ctx, "payment", p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "cash at office", history[0].Notes)
	assert.Equal(t, audit.EventTransition, history[0].EventType)
}

func TestTransitionToStatusErrors(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	p := env.payment(t, 300)

	_, err := env.svc.TransitionToStatus(ctx, "payment", p.ID, models.PaymentRefunded, env.manager.Actor(), "", nil)
	assert.True(t, workflows.IsKind(err, workflows.KindIllegalTransition))
	assert.EqualError(t, err, "Cannot transition Payment from pending to refunded")

	_, err = env.svc.TransitionToStatus(ctx, "payment", p.ID, models.PaymentCancelled, env.caretaker.Actor(), "", nil)
	assert.True(t, workflows.IsKind(err, workflows.KindPermissionDenied))

	_, err = env.svc.TransitionToStatus(ctx, "payment", uuid.New(), models.PaymentCancelled, env.manager.Actor(), "", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = env.svc.TransitionToStatus(ctx, "invoice", p.ID, models.PaymentCancelled, env.manager.Actor(), "", nil)
	assert.ErrorIs(t, err, ErrUnknownModelType)
}

func TestTransitionToStatusUsesNotesAsReason(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	m := env.request(t)
	_, err := env.svc.Transition(ctx, "maintenance", m.ID, "assign_technician", env.caretaker.Actor(), workflows.Params{"technician_name": "Joe"})
	require.NoError(t, err)

	_, err = env.svc.TransitionToStatus(ctx, "maintenance", m.ID, models.MaintenanceOnHold, env.caretaker.Actor(), "", nil)
	assert.True(t, workflows.IsKind(err, workflows.KindValidation))

	_, err = env.svc.TransitionToStatus(ctx, "maintenance", m.ID, models.MaintenanceOnHold, env.caretaker.Actor(), "waiting for glass", nil)
	require.NoError(t, err)
	stored, err := env.services.Maintenance.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "waiting for glass", stored.HoldReason)
}

func TestTransitionToStatusChoosesAmongSeveralEvents(t *testing.T) {
	type setup func(t *testing.T, env *testEnv) (modelType string, id uuid.UUID)

	pendingRequest := func(t *testing.T, env *testEnv) (string, uuid.UUID) {
		return "maintenance", env.request(t).ID
	}
	onHoldRequest := func(t *testing.T, env *testEnv) (string, uuid.UUID) {
		ctx := context.Background()
		m := env.request(t)
		_, err := env.svc.Transition(ctx, "maintenance", m.ID, "assign_technician", env.caretaker.Actor(), workflows.Params{"technician_name": "Joe"})
		require.NoError(t, err)
		_, err = env.svc.Transition(ctx, "maintenance", m.ID, "put_on_hold", env.caretaker.Actor(), workflows.Params{"reason": "waiting for parts"})
		require.NoError(t, err)
		return "maintenance", m.ID
	}
	draftAgreement := func(t *testing.T, env *testEnv) (string, uuid.UUID) {
		return "rental", env.agreement(t, nil).ID
	}
	expiredAgreement := func(t *testing.T, env *testEnv) (string, uuid.UUID) {
		ctx := context.Background()
		end := env.now.AddDate(0, 0, -1)
		a := env.agreement(t, &end)
		_, err := env.svc.Transition(ctx, "rental", a.ID, "activate_agreement", env.manager.Actor(), nil)
		require.NoError(t, err)
		_, err = env.svc.Transition(ctx, "rental", a.ID, "expire_agreement", env.manager.Actor(), nil)
		require.NoError(t, err)
		return "rental", a.ID
	}

	tests := []struct {
		name      string
		setup     setup
		to        workflows.State
		actor     func(env *testEnv) workflows.Actor
		notes     string
		extra     workflows.Params
		wantEvent workflows.Event
		wantKind  workflows.ErrorKind
		wantErr   string
	}{
		{
			name:      "pending request with technician assigns",
			setup:     pendingRequest,
			to:        models.MaintenanceInProgress,
			actor:     func(env *testEnv) workflows.Actor { return env.caretaker.Actor() },
			extra:     workflows.Params{"technician_name": "Joe"},
			wantEvent: "assign_technician",
		},
		{
			name:     "pending request without technician fails validation",
			setup:    pendingRequest,
			to:       models.MaintenanceInProgress,
			actor:    func(env *testEnv) workflows.Actor { return env.caretaker.Actor() },
			wantKind: workflows.KindValidation,
			wantErr:  "Technician name is required",
		},
		{
			name:      "on hold request resumes",
			setup:     onHoldRequest,
			to:        models.MaintenanceInProgress,
			actor:     func(env *testEnv) workflows.Actor { return env.caretaker.Actor() },
			notes:     "parts arrived",
			wantEvent: "resume_request",
		},
		{
			name:     "on hold request cannot be resumed by a tenant",
			setup:    onHoldRequest,
			to:       models.MaintenanceInProgress,
			actor:    func(env *testEnv) workflows.Actor { return env.tenantUser.Actor() },
			wantKind: workflows.KindPermissionDenied,
		},
		{
			name:      "manager activates a draft agreement",
			setup:     draftAgreement,
			to:        models.RentalActive,
			actor:     func(env *testEnv) workflows.Actor { return env.manager.Actor() },
			wantEvent: "activate_agreement",
		},
		{
			name:     "caretaker cannot activate through tenant approval",
			setup:    draftAgreement,
			to:       models.RentalActive,
			actor:    func(env *testEnv) workflows.Actor { return env.caretaker.Actor() },
			wantKind: workflows.KindValidation,
			wantErr:  "Only the tenant named on the agreement can approve it",
		},
		{
			name:      "named tenant approves a draft agreement",
			setup:     draftAgreement,
			to:        models.RentalActive,
			actor:     func(env *testEnv) workflows.Actor { return env.tenantUser.Actor() },
			wantEvent: "tenant_approve_agreement",
		},
		{
			name:      "manager renews an expired agreement",
			setup:     expiredAgreement,
			to:        models.RentalActive,
			actor:     func(env *testEnv) workflows.Actor { return env.manager.Actor() },
			extra:     workflows.Params{"end_date": "2025-06-03"},
			wantEvent: "renew_agreement",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			ctx := context.Background()
			modelType, id := tt.setup(t, env)
			_, before, err := env.svc.Load(ctx, modelType, id)
			require.NoError(t, err)

			result, err := env.svc.TransitionToStatus(ctx, modelType, id, tt.to, tt.actor(env), tt.notes, tt.extra)
			if tt.wantEvent != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantEvent, result.Event)
				assert.Equal(t, tt.to, result.NewState)
				return
			}
			require.Error(t, err)
			assert.True(t, workflows.IsKind(err, tt.wantKind), err.Error())
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			}
			_, after, err := env.svc.Load(ctx, modelType, id)
			require.NoError(t, err)
			assert.Equal(t, before.CurrentState(), after.CurrentState())
		})
	}
}

func TestTransitionToStatusKeepsExplicitReason(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	m := env.request(t)
	_, err := env.svc.Transition(ctx, "maintenance", m.ID, "assign_technician", env.caretaker.Actor(), workflows.Params{"technician_name": "Joe"})
	require.NoError(t, err)

	_, err = env.svc.TransitionToStatus(ctx, "maintenance", m.ID, models.MaintenanceOnHold, env.caretaker.Actor(),
		"called supplier", workflows.Params{"reason": "waiting for glass"})
	require.NoError(t, err)
	stored, err := env.services.Maintenance.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "waiting for glass", stored.HoldReason)
}

func TestWorkflowStatus(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	p := env.payment(t, 1200)
	_, err := env.svc.Transition(ctx, "payment", p.ID, "start_processing", env.caretaker.Actor(), nil)
	require.NoError(t, err)

	status, err := env.svc.WorkflowStatus(ctx, "payment", p.ID, env.caretaker.Actor())
	require.NoError(t, err)
	assert.Equal(t, "Payment", status.ModelType)
	assert.Equal(t, models.PaymentProcessing, status.CurrentState)
	assert.Equal(t, []workflows.Event{"verify_payment_completed", "mark_failed"}, status.AvailableEvents)
	require.Len(t, status.History, 1)
	assert.Equal(t, 20, status.Metrics["risk_score"])

	status, err = env.svc.WorkflowStatus(ctx, "payment", p.ID, env.tenantUser.Actor())
	require.NoError(t, err)
	assert.Empty(t, status.AvailableEvents)
	assert.NotNil(t, status.AvailableEvents)
}

func TestActionsTransitionAndAssign(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	c := env.complaint(t)

	target, err := env.services.Complaints.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, env.actions.Assign(ctx, target, env.caretaker.ID, workflows.SystemActor()))
	require.NoError(t, env.actions.TransitionTo(ctx, target, models.ComplaintResolved, workflows.SystemActor(),
		workflows.Params{"resolution": "auto-resolved"}))

	stored, err := env.services.Complaints.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintResolved, stored.Status)
	assert.Equal(t, env.caretaker.ID, *stored.AssignedToID)
	assert.Equal(t, 2, stored.Version)

	m := env.request(t)
	mt, err := env.services.Maintenance.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NoError(t, env.actions.Assign(ctx, mt, env.caretaker.ID, workflows.SystemActor()))
	stored2, _ := env.services.Maintenance.Get(ctx, m.ID)
	assert.Equal(t, "carl", stored2.AssignedTo)
	assert.Equal(t, models.MaintenancePending, stored2.Status)

	p := env.payment(t, 10)
	assert.Error(t, env.actions.Assign(ctx, p, env.caretaker.ID, workflows.SystemActor()))
}

func TestActionsNotifyAndEscalate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	m := env.request(t)

	require.NoError(t, env.actions.Notify(ctx, m, *env.tenant.UserID, "Heads up", "Your request was received", nil))
	require.NoError(t, env.actions.Escalate(ctx, m, "trigger:stale", 4, ""))

	rows := env.notes.All()
	require.Len(t, rows, 2)
	assert.Equal(t, *env.tenant.UserID, rows[0].RecipientID)
	assert.Equal(t, env.manager.ID, rows[1].RecipientID)
	assert.Equal(t, 1, rows[1].EscalationLevel)
	require.NotNil(t, rows[1].NextEscalation)
	assert.Equal(t, env.now.Add(4*time.Hour), *rows[1].NextEscalation)
}
