package triggers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// MockActions is a mock implementation of the Actions interface
type MockActions struct {
	mock.Mock
}

func (m *MockActions) TransitionTo(ctx context.Context, target models.Entity, state workflows.State, actor workflows.Actor, params workflows.Params) error {
	args := m.Called(ctx, target, state, actor, params)
	return args.Error(0)
}

func (m *MockActions) Notify(ctx context.Context, target models.Entity, recipientID uuid.UUID, title, message string, data map[string]any) error {
	args := m.Called(ctx, target, recipientID, title, message, data)
	return args.Error(0)
}

func (m *MockActions) Escalate(ctx context.Context, target models.Entity, eventType string, hours int, priority notifications.Priority) error {
	args := m.Called(ctx, target, eventType, hours, priority)
	return args.Error(0)
}

func (m *MockActions) Assign(ctx context.Context, target models.Entity, userID uuid.UUID, actor workflows.Actor) error {
	args := m.Called(ctx, target, userID, actor)
	return args.Error(0)
}

type countingRecorder struct {
	counts map[string]int
}

func (r *countingRecorder) ObserveTrigger(instanceType, outcome string) {
	r.counts[instanceType+"/"+outcome]++
}

type testEnv struct {
	repo     *MemoryRepository
	audits   *audit.MemoryRepository
	actions  *MockActions
	recorder *countingRecorder
	svc      *Service
	now      time.Time
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:     NewMemoryRepository(),
		audits:   audit.NewMemoryRepository(),
		actions:  new(MockActions),
		recorder: &countingRecorder{counts: map[string]int{}},
		now:      time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(env.repo, env.actions, audit.NewService(env.audits, nil, nil), nil)
	env.svc.SetRecorder(env.recorder)
	env.svc.SetClock(func() time.Time { return env.now })
	return env
}

func (e *testEnv) add(t *testing.T, rule *WorkflowTrigger) *WorkflowTrigger {
	t.Helper()
	rule.IsActive = true
	if rule.InstanceType == "" {
		rule.InstanceType = "MaintenanceRequest"
	}
	created, err := e.svc.Create(context.Background(), rule, nil)
	require.NoError(t, err)
	return created
}

func TestProcessTriggersRunsInPriorityOrder(t *testing.T) {
	env := newEnv(t)
	target := request(env.now.Add(-72 * time.Hour))
	actor := workflows.SystemActor()

	low := env.add(t, &WorkflowTrigger{Name: "escalate stale", Priority: 1, TriggerType: TypeTimeBased,
		TimeField: "created_at", TimeDelayHours: 48, ActionType: ActionEscalation, EscalationHours: 4,
		ActionConfig: datatypes.JSON(`{"priority":"urgent"}`)})
	high := env.add(t, &WorkflowTrigger{Name: "hold on urgent", Priority: 10, TriggerType: TypeConditionBased,
		ConditionField: "priority", ConditionOperator: OpEquals, ConditionValue: "high",
		ActionType: ActionTransition, TargetState: models.MaintenanceOnHold,
		ActionConfig: datatypes.JSON(`{"params":{"reason":"auto hold"}}`)})

	var order []string
	env.actions.On("TransitionTo", mock.Anything, target, models.MaintenanceOnHold, actor,
		mock.MatchedBy(func(p workflows.Params) bool { return p.String("reason") == "auto hold" && p.String("notes") != "" })).
		Run(func(mock.Arguments) { order = append(order, "transition") }).Return(nil)
	env.actions.On("Escalate", mock.Anything, target, "trigger:escalate stale", 4, notifications.PriorityUrgent).
		Run(func(mock.Arguments) { order = append(order, "escalate") }).Return(nil)

	results, err := env.svc.ProcessTriggersForInstance(context.Background(), target, "", nil, actor)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"transition", "escalate"}, order)
	assert.Equal(t, high.ID, results[0].TriggerID)
	assert.Equal(t, low.ID, results[1].TriggerID)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)

	stored, err := env.repo.Get(context.Background(), high.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastTriggered)
	assert.Equal(t, env.now, *stored.LastTriggered)

	logs := env.audits.All()
	require.Len(t, logs, 2)
	assert.Equal(t, audit.EventTrigger, logs[0].EventType)
	assert.Equal(t, "hold on urgent", logs[0].EventName)
	assert.Equal(t, target.ID.String(), logs[0].InstanceID)

	assert.Equal(t, 2, env.recorder.counts["MaintenanceRequest/fired"])
	env.actions.AssertExpectations(t)
}

func TestFailingTriggerDoesNotStopOthers(t *testing.T) {
	env := newEnv(t)
	target := request(env.now)
	userID := uuid.New()

	broken := env.add(t, &WorkflowTrigger{Name: "auto close", Priority: 5, TriggerType: TypeEventBased,
		TriggerEvents: []string{"put_on_hold"}, ActionType: ActionTransition, TargetState: models.MaintenanceCompleted})
	assign := env.add(t, &WorkflowTrigger{Name: "assign lead", Priority: 1, TriggerType: TypeEventBased,
		TriggerEvents: []string{"put_on_hold"}, ActionType: ActionAssignment, AssignToUserID: &userID})

	env.actions.On("TransitionTo", mock.Anything, target, models.MaintenanceCompleted, mock.Anything, mock.Anything).
		Return(errors.New("cannot complete_request from state \"on_hold\""))
	env.actions.On("Assign", mock.Anything, target, userID, mock.Anything).Return(nil)

	results, err := env.svc.ProcessTriggersForInstance(context.Background(), target, "put_on_hold", nil, workflows.SystemActor())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "cannot complete_request")
	assert.True(t, results[1].Success)

	stored, _ := env.repo.Get(context.Background(), broken.ID)
	assert.Nil(t, stored.LastTriggered)
	stored, _ = env.repo.Get(context.Background(), assign.ID)
	assert.NotNil(t, stored.LastTriggered)

	assert.Len(t, env.audits.All(), 1)
	assert.Equal(t, 1, env.recorder.counts["MaintenanceRequest/failed"])
}

func TestPanickingActionIsContained(t *testing.T) {
	env := newEnv(t)
	target := request(env.now)
	userID := uuid.New()
	env.add(t, &WorkflowTrigger{Name: "assign", TriggerType: TypeEventBased,
		TriggerEvents: []string{"reopen_request"}, ActionType: ActionAssignment, AssignToUserID: &userID})

	env.actions.On("Assign", mock.Anything, target, userID, mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	results, err := env.svc.ProcessTriggersForInstance(context.Background(), target, "reopen_request", nil, workflows.SystemActor())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "panicked")
}

func TestNotificationTriggerRendersTemplate(t *testing.T) {
	env := newEnv(t)
	target := request(env.now)
	tenantUser := uuid.New()
	target.Tenant = &models.Tenant{ID: uuid.New(), UserID: &tenantUser}

	env.add(t, &WorkflowTrigger{Name: "tell tenant", TriggerType: TypeEventBased,
		TriggerEvents: []string{"put_on_hold"}, ActionType: ActionNotification,
		NotificationTitle: "Update on {{.Fields.title}}", NotificationMessage: "Your request is now {{.Fields.status}}."})

	data := map[string]any{"reason": "parts"}
	env.actions.On("Notify", mock.Anything, target, tenantUser, "Update on Broken heater", "Your request is now pending.", data).Return(nil)

	results, err := env.svc.ProcessTriggersForInstance(context.Background(), target, "put_on_hold", data, workflows.SystemActor())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success, results[0].Error)
	env.actions.AssertExpectations(t)
}

func TestNotificationTriggerWithoutRecipientFails(t *testing.T) {
	env := newEnv(t)
	env.add(t, &WorkflowTrigger{Name: "tell tenant", TriggerType: TypeEventBased,
		TriggerEvents: []string{"put_on_hold"}, ActionType: ActionNotification, NotificationTitle: "Update"})

	results, err := env.svc.ProcessTriggersForInstance(context.Background(), request(env.now), "put_on_hold", nil, workflows.SystemActor())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "no recipient for notification", results[0].Error)
	env.actions.AssertNotCalled(t, "Notify")
}

func TestEvaluateIsDryRun(t *testing.T) {
	env := newEnv(t)
	target := request(env.now)
	env.add(t, &WorkflowTrigger{Name: "match", TriggerType: TypeConditionBased, ConditionField: "status",
		ConditionOperator: OpEquals, ConditionValue: "pending", ActionType: ActionTransition, TargetState: models.MaintenanceCancelled})
	env.add(t, &WorkflowTrigger{Name: "other type", InstanceType: "Payment", TriggerType: TypeConditionBased,
		ConditionField: "status", ConditionOperator: OpEquals, ConditionValue: "pending", ActionType: ActionTransition, TargetState: "cancelled"})

	matched, err := env.svc.Evaluate(context.Background(), target, "")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "match", matched[0].Name)
	env.actions.AssertNotCalled(t, "TransitionTo")
	assert.Empty(t, env.audits.All())
}

func TestValidate(t *testing.T) {
	userID := uuid.New()
	valid := func() *WorkflowTrigger {
		return &WorkflowTrigger{Name: "t", InstanceType: "Payment", TriggerType: TypeEventBased,
			TriggerEvents: []string{"mark_failed"}, ActionType: ActionNotification, NotificationTitle: "Failed"}
	}
	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*WorkflowTrigger)
	}{
		{"no name", func(w *WorkflowTrigger) { w.Name = " " }},
		{"unknown type", func(w *WorkflowTrigger) { w.InstanceType = "Invoice" }},
		{"no events", func(w *WorkflowTrigger) { w.TriggerEvents = nil }},
		{"time without field", func(w *WorkflowTrigger) { w.TriggerType = TypeTimeBased }},
		{"bad operator", func(w *WorkflowTrigger) {
			w.TriggerType, w.ConditionField, w.ConditionOperator = TypeConditionBased, "status", "like"
		}},
		{"transition without state", func(w *WorkflowTrigger) { w.ActionType = ActionTransition }},
		{"escalation without hours", func(w *WorkflowTrigger) { w.ActionType = ActionEscalation }},
		{"assignment without user", func(w *WorkflowTrigger) { w.ActionType = ActionAssignment }},
		{"bad config", func(w *WorkflowTrigger) { w.ActionConfig = datatypes.JSON(`{`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := valid()
			tt.mutate(w)
			assert.ErrorIs(t, Validate(w), ErrInvalidTrigger)
		})
	}

	w := valid()
	w.ActionType, w.AssignToUserID = ActionAssignment, &userID
	assert.NoError(t, Validate(w))
}

func TestUpdateAndDeactivate(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	creator := uuid.New()
	rule, err := env.svc.Create(ctx, &WorkflowTrigger{Name: "n", InstanceType: "Tenant", IsActive: true,
		TriggerType: TypeEventBased, TriggerEvents: []string{"suspend_tenant"}, ActionType: ActionNotification,
		NotificationTitle: "Suspended"}, &creator)
	require.NoError(t, err)

	changed := *rule
	changed.CreatedBy = nil
	changed.NotificationTitle = "Account suspended"
	updated, err := env.svc.Update(ctx, &changed)
	require.NoError(t, err)
	assert.Equal(t, &creator, updated.CreatedBy)

	_, err = env.svc.Update(ctx, &WorkflowTrigger{ID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.svc.Deactivate(ctx, rule.ID))
	active, err := env.svc.List(ctx, Filter{InstanceType: "Tenant", ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := env.svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Account suspended", all[0].NotificationTitle)
}
