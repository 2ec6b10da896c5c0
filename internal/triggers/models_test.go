package triggers

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/models"
)

func request(created time.Time) *models.MaintenanceRequest {
	return &models.MaintenanceRequest{
		ID:        uuid.New(),
		Title:     "Broken heater",
		Priority:  models.PriorityHigh,
		Status:    models.MaintenancePending,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestTimeBasedTrigger(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rule := &WorkflowTrigger{IsActive: true, TriggerType: TypeTimeBased, TimeField: "created_at", TimeDelayHours: 48}
	target := request(created)

	fire, err := rule.ShouldTrigger(target, "", created.Add(47*time.Hour))
	require.NoError(t, err)
	assert.False(t, fire)

	fire, err = rule.ShouldTrigger(target, "", created.Add(48*time.Hour))
	require.NoError(t, err)
	assert.True(t, fire)

	last := created.Add(49 * time.Hour)
	rule.LastTriggered = &last
	fire, err = rule.ShouldTrigger(target, "", created.Add(50*time.Hour))
	require.NoError(t, err)
	assert.False(t, fire, "already fired for this due moment")
}

func TestTimeBasedTriggerNilTimestamp(t *testing.T) {
	rule := &WorkflowTrigger{IsActive: true, TriggerType: TypeTimeBased, TimeField: "assigned_date"}

	fire, err := rule.ShouldTrigger(request(time.Now()), "", time.Now())
	require.NoError(t, err)
	assert.False(t, fire)

	rule.TimeField = "title"
	_, err = rule.ShouldTrigger(request(time.Now()), "", time.Now())
	assert.Error(t, err)

	rule.TimeField = "nonexistent"
	_, err = rule.ShouldTrigger(request(time.Now()), "", time.Now())
	assert.Error(t, err)
}

func TestEventBasedTrigger(t *testing.T) {
	rule := &WorkflowTrigger{IsActive: true, TriggerType: TypeEventBased, TriggerEvents: []string{"put_on_hold", "reopen_request"}}
	target := request(time.Now())

	fire, _ := rule.ShouldTrigger(target, "put_on_hold", time.Now())
	assert.True(t, fire)
	fire, _ = rule.ShouldTrigger(target, "complete_request", time.Now())
	assert.False(t, fire)
	fire, _ = rule.ShouldTrigger(target, "", time.Now())
	assert.False(t, fire)
}

func TestConditionBasedTrigger(t *testing.T) {
	target := request(time.Now())
	target.EscalationLevel = 10

	tests := []struct {
		name  string
		field string
		op    Operator
		value string
		want  bool
	}{
		{"equals", "priority", OpEquals, "high", true},
		{"not equals", "priority", OpNotEquals, "high", false},
		{"contains", "title", OpContains, "heater", true},
		{"not contains", "title", OpNotContains, "heater", false},
		{"greater than is lexical", "escalation_level", OpGreaterThan, "9", false},
		{"less than is lexical", "escalation_level", OpLessThan, "9", true},
		{"nil pointer is empty", "assigned_date", OpEquals, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &WorkflowTrigger{IsActive: true, TriggerType: TypeConditionBased,
				ConditionField: tt.field, ConditionOperator: tt.op, ConditionValue: tt.value}
			fire, err := rule.ShouldTrigger(target, "", time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, fire)
		})
	}

	bad := &WorkflowTrigger{IsActive: true, TriggerType: TypeConditionBased, ConditionField: "priority", ConditionOperator: "matches"}
	_, err := bad.ShouldTrigger(target, "", time.Now())
	assert.Error(t, err)
}

func TestInactiveTriggerNeverFires(t *testing.T) {
	rule := &WorkflowTrigger{TriggerType: TypeEventBased, TriggerEvents: []string{"put_on_hold"}}
	fire, err := rule.ShouldTrigger(request(time.Now()), "put_on_hold", time.Now())
	require.NoError(t, err)
	assert.False(t, fire)
}
