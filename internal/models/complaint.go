package models

import (
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const (
	ComplaintOpen       workflows.State = "open"
	ComplaintInProgress workflows.State = "in_progress"
	ComplaintResolved   workflows.State = "resolved"
	ComplaintClosed     workflows.State = "closed"
)

// Complaint is a tenant-raised issue that is not a repair.
type Complaint struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Tenant       *Tenant         `json:"tenant,omitempty"`
	RoomID       *uuid.UUID      `json:"room_id,omitempty" gorm:"type:uuid"`
	Subject      string          `json:"subject" gorm:"not null"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Priority     Priority        `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	Status       workflows.State `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	AssignedToID *uuid.UUID      `json:"assigned_to_id,omitempty" gorm:"type:uuid"`
	Resolution   string          `json:"resolution"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	ReopenCount  int             `json:"reopen_count" gorm:"not null;default:0"`
	Version      int             `json:"version" gorm:"not null;default:0"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (c *Complaint) SubjectType() string           { return "Complaint" }
func (c *Complaint) SubjectID() string             { return c.ID.String() }
func (c *Complaint) CurrentState() workflows.State { return c.Status }
func (c *Complaint) SetState(s workflows.State)    { c.Status = s }
func (c *Complaint) LastModified() time.Time       { return c.UpdatedAt }

func (c *Complaint) TenantUserID() *uuid.UUID {
	if c.Tenant == nil {
		return nil
	}
	return c.Tenant.UserID
}

func (c *Complaint) Fields() map[string]any {
	return map[string]any{
		"id":           c.ID.String(),
		"subject":      c.Subject,
		"category":     c.Category,
		"priority":     string(c.Priority),
		"status":       string(c.Status),
		"reopen_count": c.ReopenCount,
		"resolved_at":  c.ResolvedAt,
		"created_at":   c.CreatedAt,
		"updated_at":   c.UpdatedAt,
	}
}

func (Complaint) TableName() string { return "tenants_complaint" }
