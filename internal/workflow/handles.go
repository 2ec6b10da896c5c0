package workflow

import (
	"rentflow/property-portal/property-portal-backend/internal/complaints"
	"rentflow/property-portal/property-portal-backend/internal/compliance"
	"rentflow/property-portal/property-portal-backend/internal/maintenance"
	"rentflow/property-portal/property-portal-backend/internal/payments"
	"rentflow/property-portal/property-portal-backend/internal/rentals"
)

// Services bundles the per-entity workflow services.
type Services struct {
	Maintenance *maintenance.Service
	Payments    *payments.Service
	Rentals     *rentals.Service
	Complaints  *complaints.Service
	Compliance  *compliance.Service
}

// NewDefaultRegistry registers every entity workflow with the aliases the
// HTTP API accepts.
func NewDefaultRegistry(s Services) *Registry {
	r := NewRegistry()
	if s.Maintenance != nil {
		r.Register(NewHandle(s.Maintenance.Engine(), s.Maintenance.Get, s.Maintenance.Metrics), "maintenance")
	}
	if s.Payments != nil {
		r.Register(NewHandle(s.Payments.Engine(), s.Payments.Get, s.Payments.Metrics), "payment", "payments")
	}
	if s.Rentals != nil {
		r.Register(NewHandle(s.Rentals.Engine(), s.Rentals.Get, s.Rentals.Metrics), "rental", "rentals")
	}
	if s.Complaints != nil {
		r.Register(NewHandle(s.Complaints.Engine(), s.Complaints.Get, s.Complaints.Metrics), "complaints")
	}
	if s.Compliance != nil {
		r.Register(NewHandle(s.Compliance.Engine(), s.Compliance.Get, s.Compliance.Metrics), "compliance", "tenants")
	}
	return r
}
