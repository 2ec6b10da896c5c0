package triggers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type TriggerType string

const (
	TypeTimeBased      TriggerType = "time_based"
	TypeEventBased     TriggerType = "event_based"
	TypeConditionBased TriggerType = "condition_based"
)

type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
)

type ActionType string

const (
	ActionTransition   ActionType = "transition"
	ActionNotification ActionType = "notification"
	ActionEscalation   ActionType = "escalation"
	ActionAssignment   ActionType = "assignment"
)

// WorkflowTrigger is a staff-defined automation rule for one entity type.
type WorkflowTrigger struct {
	ID                  uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name                string          `json:"name" gorm:"not null"`
	Description         string          `json:"description"`
	InstanceType        string          `json:"instance_type" gorm:"type:varchar(50);not null;index"`
	TriggerType         TriggerType     `json:"trigger_type" gorm:"type:varchar(20);not null"`
	TimeField           string          `json:"time_field,omitempty"`
	TimeDelayHours      int             `json:"time_delay_hours,omitempty"`
	TriggerEvents       pq.StringArray  `json:"trigger_events,omitempty" gorm:"type:text[]"`
	ConditionField      string          `json:"condition_field,omitempty"`
	ConditionOperator   Operator        `json:"condition_operator,omitempty" gorm:"type:varchar(20)"`
	ConditionValue      string          `json:"condition_value,omitempty"`
	ActionType          ActionType      `json:"action_type" gorm:"type:varchar(20);not null"`
	TargetState         workflows.State `json:"target_state,omitempty" gorm:"type:varchar(30)"`
	AssignToUserID      *uuid.UUID      `json:"assign_to_user_id,omitempty" gorm:"type:uuid"`
	NotificationTitle   string          `json:"notification_title,omitempty"`
	NotificationMessage string          `json:"notification_message,omitempty"`
	EscalationHours     int             `json:"escalation_hours,omitempty"`
	ActionConfig        datatypes.JSON  `json:"action_config,omitempty"`
	Priority            int             `json:"priority" gorm:"not null;default:0;index"`
	IsActive            bool            `json:"is_active" gorm:"not null;default:true"`
	LastTriggered       *time.Time      `json:"last_triggered,omitempty"`
	CreatedBy           *uuid.UUID      `json:"created_by,omitempty" gorm:"type:uuid"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (WorkflowTrigger) TableName() string { return "workflows_workflowtrigger" }

// ShouldTrigger reports whether the rule matches target right now. event
// is empty when the caller is a periodic sweep rather than a transition.
func (t *WorkflowTrigger) ShouldTrigger(target models.Entity, event string, now time.Time) (bool, error) {
	if !t.IsActive {
		return false, nil
	}
	switch t.TriggerType {
	case TypeTimeBased:
		return t.timeReached(target, now)
	case TypeEventBased:
		if event == "" {
			return false, nil
		}
		for _, e := range t.TriggerEvents {
			if e == event {
				return true, nil
			}
		}
		return false, nil
	case TypeConditionBased:
		value, ok := target.Fields()[t.ConditionField]
		if !ok {
			return false, fmt.Errorf("%s has no field %q", target.SubjectType(), t.ConditionField)
		}
		return compare(fieldString(value), t.ConditionOperator, t.ConditionValue)
	default:
		return false, fmt.Errorf("unknown trigger type %q", t.TriggerType)
	}
}

func (t *WorkflowTrigger) timeReached(target models.Entity, now time.Time) (bool, error) {
	raw, ok := target.Fields()[t.TimeField]
	if !ok {
		return false, fmt.Errorf("%s has no field %q", target.SubjectType(), t.TimeField)
	}
	var base time.Time
	switch v := raw.(type) {
	case time.Time:
		base = v
	case *time.Time:
		if v == nil {
			return false, nil
		}
		base = *v
	default:
		return false, fmt.Errorf("field %q is not a timestamp", t.TimeField)
	}
	if base.IsZero() {
		return false, nil
	}

	due := base.Add(time.Duration(t.TimeDelayHours) * time.Hour)
	if due.After(now) {
		return false, nil
	}
	// Fire once per due moment.
	return t.LastTriggered == nil || t.LastTriggered.Before(due), nil
}

// Conditions compare string forms only, so "10" > "9" is false.
func compare(actual string, op Operator, expected string) (bool, error) {
	switch op {
	case OpEquals:
		return actual == expected, nil
	case OpNotEquals:
		return actual != expected, nil
	case OpGreaterThan:
		return actual > expected, nil
	case OpLessThan:
		return actual < expected, nil
	case OpContains:
		return strings.Contains(actual, expected), nil
	case OpNotContains:
		return !strings.Contains(actual, expected), nil
	default:
		return false, fmt.Errorf("unknown condition operator %q", op)
	}
}

func fieldString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *time.Time:
		if x == nil {
			return ""
		}
		return x.UTC().Format(time.RFC3339)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case *float64:
		if x == nil {
			return ""
		}
		return fmt.Sprint(*x)
	default:
		return fmt.Sprint(v)
	}
}

// Result is the outcome of one matching trigger.
type Result struct {
	TriggerID   uuid.UUID  `json:"trigger_id"`
	TriggerName string     `json:"trigger_name"`
	Action      ActionType `json:"action"`
	Success     bool       `json:"success"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
}
