package models

import (
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// Entity is a workflow subject that notifications, triggers and reports
// can inspect generically.
type Entity interface {
	workflows.Subject
	TenantUserID() *uuid.UUID
	LastModified() time.Time
	Fields() map[string]any
}

var (
	_ Entity = (*MaintenanceRequest)(nil)
	_ Entity = (*Payment)(nil)
	_ Entity = (*RentalAgreement)(nil)
	_ Entity = (*Complaint)(nil)
	_ Entity = (*Tenant)(nil)
)
