package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Cents rounds an amount to the two decimals money columns store.
func Cents(v float64) float64 {
	return math.Round(v*100) / 100
}

type TenantStatus string

const (
	TenantProspective TenantStatus = "prospective"
	TenantActive      TenantStatus = "active"
	TenantInactive    TenantStatus = "inactive"
	TenantSuspended   TenantStatus = "suspended"
	TenantMovedOut    TenantStatus = "moved_out"
)

// Compliance states of a tenant.
const (
	CompliancePendingDocuments workflows.State = "pending_documents"
	ComplianceUnderReview      workflows.State = "under_review"
	ComplianceCompliant        workflows.State = "compliant"
	ComplianceNonCompliant     workflows.State = "non_compliant"
	ComplianceSuspended        workflows.State = "suspended"
)

// Tenant is a renter. Its workflow state is the compliance status.
type Tenant struct {
	ID                   uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID               *uuid.UUID      `json:"user_id,omitempty" gorm:"type:uuid;uniqueIndex"`
	FirstName            string          `json:"first_name" gorm:"not null"`
	LastName             string          `json:"last_name"`
	Email                string          `json:"email"`
	Phone                string          `json:"phone"`
	TenantStatus         TenantStatus    `json:"tenant_status" gorm:"type:varchar(20);not null;default:'prospective'"`
	ComplianceStatus     workflows.State `json:"compliance_status" gorm:"type:varchar(30);not null;default:'pending_documents';index"`
	ComplianceNotes      string          `json:"compliance_notes"`
	AccountBalance       float64         `json:"account_balance" gorm:"type:decimal(12,2);not null;default:0"`
	DocumentsSubmittedAt *time.Time      `json:"documents_submitted_at,omitempty"`
	ComplianceReviewedAt *time.Time      `json:"compliance_reviewed_at,omitempty"`
	ComplianceReviewedBy *uuid.UUID      `json:"compliance_reviewed_by,omitempty" gorm:"type:uuid"`
	Version              int             `json:"version" gorm:"not null;default:0"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (t *Tenant) SubjectType() string           { return "Tenant" }
func (t *Tenant) SubjectID() string             { return t.ID.String() }
func (t *Tenant) CurrentState() workflows.State { return t.ComplianceStatus }
func (t *Tenant) SetState(s workflows.State)    { t.ComplianceStatus = s }
func (t *Tenant) TenantUserID() *uuid.UUID      { return t.UserID }
func (t *Tenant) LastModified() time.Time       { return t.UpdatedAt }

// FullName returns first and last name joined.
func (t *Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// IsUser reports whether actorID is the tenant's linked account.
func (t *Tenant) IsUser(actorID string) bool {
	return t.UserID != nil && actorID != "" && t.UserID.String() == actorID
}

// Fields exposes attribute values to trigger conditions.
func (t *Tenant) Fields() map[string]any {
	return map[string]any{
		"id":                     t.ID.String(),
		"name":                   t.FullName(),
		"tenant_status":          string(t.TenantStatus),
		"compliance_status":      string(t.ComplianceStatus),
		"status":                 string(t.ComplianceStatus),
		"account_balance":        t.AccountBalance,
		"documents_submitted_at": t.DocumentsSubmittedAt,
		"compliance_reviewed_at": t.ComplianceReviewedAt,
		"created_at":             t.CreatedAt,
		"updated_at":             t.UpdatedAt,
	}
}

func (Tenant) TableName() string { return "tenants_tenant" }
