package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Event types written to the log.
const (
	EventTransition = "transition"
	EventManual     = "manual"
	EventTrigger    = "trigger"
	EventEscalation = "escalation"
	EventReminder   = "reminder"
)

// WorkflowAuditLog is one append-only history row. Rows reference the
// entity only by (instance_type, instance_id).
type WorkflowAuditLog struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	InstanceType string         `json:"instance_type" gorm:"type:varchar(50);not null;index:idx_audit_instance"`
	InstanceID   string         `json:"instance_id" gorm:"type:varchar(64);not null;index:idx_audit_instance"`
	EventType    string         `json:"event_type" gorm:"type:varchar(30);not null;index"`
	EventName    string         `json:"event_name" gorm:"type:varchar(100);not null"`
	OldState     string         `json:"old_state"`
	NewState     string         `json:"new_state"`
	UserID       *uuid.UUID     `json:"user_id,omitempty" gorm:"type:uuid;index"`
	UserName     string         `json:"user_name"`
	Metadata     datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
	Notes        string         `json:"notes"`
	IPAddress    string         `json:"ip_address" gorm:"type:varchar(45)"`
	Timestamp    time.Time      `json:"timestamp" gorm:"not null;index"`
}

func (WorkflowAuditLog) TableName() string { return "workflows_workflowauditlog" }

// EventFilter narrows GetEvents.
type EventFilter struct {
	InstanceType string
	InstanceID   string
	EventType    string
	Since        *time.Time
	Limit        int
}

// AuditSummary aggregates activity over a window of days.
type AuditSummary struct {
	Days               int                `json:"days"`
	Since              time.Time          `json:"since"`
	TotalEvents        int64              `json:"total_events"`
	EventCounts        map[string]int64   `json:"event_counts"`
	InstanceTypeCounts map[string]int64   `json:"instance_type_counts"`
	RecentTransitions  []WorkflowAuditLog `json:"recent_transitions"`
}
