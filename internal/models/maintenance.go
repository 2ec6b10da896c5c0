package models

import (
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const (
	MaintenancePending    workflows.State = "pending"
	MaintenanceInProgress workflows.State = "in_progress"
	MaintenanceOnHold     workflows.State = "on_hold"
	MaintenanceCompleted  workflows.State = "completed"
	MaintenanceCancelled  workflows.State = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Escalate returns the next priority level; urgent stays urgent.
func (p Priority) Escalate() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}

// MaintenanceRequest is a repair request for a room.
type MaintenanceRequest struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	RoomID             uuid.UUID       `json:"room_id" gorm:"type:uuid;not null;index"`
	Room               *Room           `json:"room,omitempty"`
	TenantID           *uuid.UUID      `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	Tenant             *Tenant         `json:"tenant,omitempty"`
	Title              string          `json:"title" gorm:"not null"`
	Description        string          `json:"description"`
	Priority           Priority        `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	Status             workflows.State `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	AssignedTo         string          `json:"assigned_to"`
	AssignedDate       *time.Time      `json:"assigned_date,omitempty"`
	CompletedDate      *time.Time      `json:"completed_date,omitempty"`
	CompletionNotes    string          `json:"completion_notes"`
	EstimatedCost      *float64        `json:"estimated_cost,omitempty" gorm:"type:decimal(12,2)"`
	ActualCost         *float64        `json:"actual_cost,omitempty" gorm:"type:decimal(12,2)"`
	CancellationReason string          `json:"cancellation_reason"`
	HoldReason         string          `json:"hold_reason"`
	EscalationLevel    int             `json:"escalation_level" gorm:"not null;default:0"`
	EscalatedAt        *time.Time      `json:"escalated_at,omitempty"`
	Version            int             `json:"version" gorm:"not null;default:0"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (m *MaintenanceRequest) SubjectType() string           { return "MaintenanceRequest" }
func (m *MaintenanceRequest) SubjectID() string             { return m.ID.String() }
func (m *MaintenanceRequest) CurrentState() workflows.State { return m.Status }
func (m *MaintenanceRequest) SetState(s workflows.State)    { m.Status = s }
func (m *MaintenanceRequest) LastModified() time.Time       { return m.UpdatedAt }

// TenantUserID returns the reporting tenant's account, if loaded and linked.
func (m *MaintenanceRequest) TenantUserID() *uuid.UUID {
	if m.Tenant == nil {
		return nil
	}
	return m.Tenant.UserID
}

// SLAReference is the moment the current SLA window started.
func (m *MaintenanceRequest) SLAReference() time.Time {
	if m.EscalatedAt != nil && m.EscalatedAt.After(m.CreatedAt) {
		return *m.EscalatedAt
	}
	return m.CreatedAt
}

// IsOpen reports whether the request still awaits work.
func (m *MaintenanceRequest) IsOpen() bool {
	switch m.Status {
	case MaintenancePending, MaintenanceInProgress, MaintenanceOnHold:
		return true
	}
	return false
}

func (m *MaintenanceRequest) Fields() map[string]any {
	return map[string]any{
		"id":               m.ID.String(),
		"title":            m.Title,
		"priority":         string(m.Priority),
		"status":           string(m.Status),
		"assigned_to":      m.AssignedTo,
		"assigned_date":    m.AssignedDate,
		"completed_date":   m.CompletedDate,
		"escalation_level": m.EscalationLevel,
		"created_at":       m.CreatedAt,
		"updated_at":       m.UpdatedAt,
	}
}

func (MaintenanceRequest) TableName() string { return "maintenance_maintenancerequest" }
