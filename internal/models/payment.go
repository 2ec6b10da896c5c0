package models

import (
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

const (
	PaymentPending    workflows.State = "pending"
	PaymentProcessing workflows.State = "processing"
	PaymentCompleted  workflows.State = "completed"
	PaymentFailed     workflows.State = "failed"
	PaymentRefunded   workflows.State = "refunded"
	PaymentCancelled  workflows.State = "cancelled"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCard         PaymentMethod = "card"
)

// Payment is money received (or expected) from a tenant.
type Payment struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Tenant        *Tenant         `json:"tenant,omitempty"`
	AgreementID   *uuid.UUID      `json:"agreement_id,omitempty" gorm:"type:uuid;index"`
	Amount        float64         `json:"amount" gorm:"type:decimal(12,2);not null"`
	PaymentMethod PaymentMethod   `json:"payment_method" gorm:"type:varchar(20)"`
	Reference     string          `json:"reference"`
	Status        workflows.State `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	PaymentDate   time.Time       `json:"payment_date"`
	ProcessedDate *time.Time      `json:"processed_date,omitempty"`
	FailureReason string          `json:"failure_reason"`
	RefundReason  string          `json:"refund_reason"`
	RefundedDate  *time.Time      `json:"refunded_date,omitempty"`
	VerifiedBy    *uuid.UUID      `json:"verified_by,omitempty" gorm:"type:uuid"`
	Version       int             `json:"version" gorm:"not null;default:0"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *Payment) SubjectType() string           { return "Payment" }
func (p *Payment) SubjectID() string             { return p.ID.String() }
func (p *Payment) CurrentState() workflows.State { return p.Status }
func (p *Payment) SetState(s workflows.State)    { p.Status = s }
func (p *Payment) LastModified() time.Time       { return p.UpdatedAt }

func (p *Payment) TenantUserID() *uuid.UUID {
	if p.Tenant == nil {
		return nil
	}
	return p.Tenant.UserID
}

// DaysOverdue is the number of whole days past the due date, or 0.
func (p *Payment) DaysOverdue(now time.Time) int {
	if p.DueDate == nil || !now.After(*p.DueDate) {
		return 0
	}
	return int(now.Sub(*p.DueDate).Hours() / 24)
}

func (p *Payment) Fields() map[string]any {
	return map[string]any{
		"id":             p.ID.String(),
		"amount":         p.Amount,
		"payment_method": string(p.PaymentMethod),
		"status":         string(p.Status),
		"due_date":       p.DueDate,
		"payment_date":   p.PaymentDate,
		"processed_date": p.ProcessedDate,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
}

func (Payment) TableName() string { return "payments_payment" }
