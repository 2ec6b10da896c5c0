package notifications

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationType is the delivery channel of a notification row.
type NotificationType string

const (
	TypeEmail NotificationType = "email"
	TypeInApp NotificationType = "in_app"
	TypeSMS   NotificationType = "sms"
)

// Priority of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// WorkflowNotification is one message addressed to one user. Rows reference
// the entity only by (instance_type, instance_id).
type WorkflowNotification struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RecipientID      uuid.UUID        `json:"recipient_id" gorm:"type:uuid;not null;index"`
	NotificationType NotificationType `json:"notification_type" gorm:"type:varchar(10);not null"`
	Priority         Priority         `json:"priority" gorm:"type:varchar(10);not null;default:'normal'"`
	Title            string           `json:"title" gorm:"not null"`
	Message          string           `json:"message"`
	InstanceType     string           `json:"instance_type" gorm:"type:varchar(50);index:idx_notification_instance"`
	InstanceID       string           `json:"instance_id" gorm:"type:varchar(64);index:idx_notification_instance"`
	EventType        string           `json:"event_type" gorm:"type:varchar(100)"`
	EventData        datatypes.JSON   `json:"event_data" gorm:"type:jsonb"`
	SentAt           *time.Time       `json:"sent_at,omitempty"`
	ReadAt           *time.Time       `json:"read_at,omitempty"`
	IsSent           bool             `json:"is_sent" gorm:"not null;default:false"`
	IsRead           bool             `json:"is_read" gorm:"not null;default:false;index"`
	EscalationLevel  int              `json:"escalation_level" gorm:"not null;default:0"`
	NextEscalation   *time.Time       `json:"next_escalation,omitempty" gorm:"index"`
	CreatedAt        time.Time        `json:"created_at"`
}

func (WorkflowNotification) TableName() string { return "workflows_workflownotification" }

// Recipient is a user that can receive notifications.
type Recipient struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Request is a single-recipient notification.
type Request struct {
	RecipientID  uuid.UUID
	Type         NotificationType
	Priority     Priority
	Title        string
	Message      string
	InstanceType string
	InstanceID   string
	EventType    string
	EventData    map[string]any
}
