package models

import (
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const (
	RentalDraft           workflows.State = "draft"
	RentalPendingApproval workflows.State = "pending_approval"
	RentalActive          workflows.State = "active"
	RentalExpired         workflows.State = "expired"
	RentalTerminated      workflows.State = "terminated"
	RentalCancelled       workflows.State = "cancelled"
)

// RentalAgreement binds a tenant to a room.
type RentalAgreement struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID          uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Tenant            *Tenant         `json:"tenant,omitempty"`
	RoomID            uuid.UUID       `json:"room_id" gorm:"type:uuid;not null;index"`
	Room              *Room           `json:"room,omitempty"`
	StartDate         time.Time       `json:"start_date" gorm:"not null"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	MonthlyRent       float64         `json:"monthly_rent" gorm:"type:decimal(12,2);not null"`
	DepositAmount     float64         `json:"deposit_amount" gorm:"type:decimal(12,2)"`
	PaymentDay        int             `json:"payment_day" gorm:"not null;default:1"`
	Status            workflows.State `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ActivatedAt       *time.Time      `json:"activated_at,omitempty"`
	TerminatedAt      *time.Time      `json:"terminated_at,omitempty"`
	TerminationReason string          `json:"termination_reason"`
	Version           int             `json:"version" gorm:"not null;default:0"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (r *RentalAgreement) SubjectType() string           { return "RentalAgreement" }
func (r *RentalAgreement) SubjectID() string             { return r.ID.String() }
func (r *RentalAgreement) CurrentState() workflows.State { return r.Status }
func (r *RentalAgreement) SetState(s workflows.State)    { r.Status = s }
func (r *RentalAgreement) LastModified() time.Time       { return r.UpdatedAt }

func (r *RentalAgreement) TenantUserID() *uuid.UUID {
	if r.Tenant == nil {
		return nil
	}
	return r.Tenant.UserID
}

// DueDay clamps the payment day into 1..28.
func (r *RentalAgreement) DueDay() int {
	switch {
	case r.PaymentDay < 1:
		return 1
	case r.PaymentDay > 28:
		return 28
	default:
		return r.PaymentDay
	}
}

// NextDueDate computes when the next rent payment falls due. With no prior
// payment it is the first due day on or after the start date; otherwise the
// due day of the month after the last completed payment.
func (r *RentalAgreement) NextDueDate(lastPaid *time.Time) time.Time {
	day := r.DueDay()
	if lastPaid == nil {
		start := r.StartDate
		due := time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, start.Location())
		if due.Before(time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())) {
			due = due.AddDate(0, 1, 0)
		}
		return due
	}
	lp := *lastPaid
	return time.Date(lp.Year(), lp.Month(), day, 0, 0, 0, 0, lp.Location()).AddDate(0, 1, 0)
}

// DaysRemaining is the number of days until the end date; nil when open-ended.
func (r *RentalAgreement) DaysRemaining(now time.Time) *int {
	if r.EndDate == nil {
		return nil
	}
	days := int(r.EndDate.Sub(now).Hours() / 24)
	return &days
}

func (r *RentalAgreement) Fields() map[string]any {
	return map[string]any{
		"id":           r.ID.String(),
		"status":       string(r.Status),
		"monthly_rent": r.MonthlyRent,
		"payment_day":  r.PaymentDay,
		"start_date":   r.StartDate,
		"end_date":     r.EndDate,
		"activated_at": r.ActivatedAt,
		"created_at":   r.CreatedAt,
		"updated_at":   r.UpdatedAt,
	}
}

func (RentalAgreement) TableName() string { return "rentals_rentalagreement" }
