package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/complaints"
	"rentflow/property-portal/property-portal-backend/internal/compliance"
	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/maintenance"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/internal/payments"
	"rentflow/property-portal/property-portal-backend/internal/rentals"
	"rentflow/property-portal/property-portal-backend/internal/repository/memory"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type testEnv struct {
	store      *memory.Store
	audits     *audit.MemoryRepository
	auditSvc   *audit.Service
	notes      *notifications.MemoryRepository
	notifier   *notifications.Service
	services   Services
	svc        *Service
	actions    *Actions
	now        time.Time
	manager    *models.User
	caretaker  *models.User
	tenant     *models.Tenant
	tenantUser *models.User
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		store:  memory.New(),
		audits: audit.NewMemoryRepository(),
		notes:  notifications.NewMemoryRepository(),
		now:    time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return e.now }
	e.store.SetClock(clock)
	e.auditSvc = audit.NewService(e.audits, nil, nil)
	e.auditSvc.SetClock(clock)
	e.notifier = notifications.NewService(e.notes, notifications.NewUserDirectory(e.store.Repositories().Users),
		notifications.Options{StaffGroup: "Managers", EscalationGroup: "Managers"}, nil)
	e.notifier.SetClock(clock)

	obs := workflows.WithObservers(audit.NewObserver(e.auditSvc))
	e.services = Services{
		Maintenance: maintenance.NewService(e.store, config.Default().Workflow, nil, obs),
		Payments:    payments.NewService(e.store, nil, obs),
		Rentals:     rentals.NewService(e.store, nil, obs),
		Complaints:  complaints.NewService(e.store, nil, obs),
		Compliance:  compliance.NewService(e.store, nil, obs),
	}
	e.services.Maintenance.SetClock(clock)
	e.services.Payments.SetClock(clock)
	e.services.Rentals.SetClock(clock)
	e.services.Complaints.SetClock(clock)
	e.services.Compliance.SetClock(clock)

	registry := NewDefaultRegistry(e.services)
	e.svc = NewService(registry, e.auditSvc, nil)
	e.actions = NewActions(e.store, e.notifier)
	e.actions.Bind(registry)

	e.manager = e.store.SeedStaff("maria", workflows.RoleManager, "Managers")
	e.caretaker = e.store.SeedStaff("carl", workflows.RoleCaretaker)
	e.tenant, e.tenantUser = e.store.SeedTenant("Paula")
	return e
}

func (e *testEnv) payment(t *testing.T, amount float64) *models.Payment {
	t.Helper()
	p := &models.Payment{TenantID: e.tenant.ID, Amount: amount}
	require.NoError(t, e.services.Payments.Create(context.Background(), p))
	return p
}

func (e *testEnv) request(t *testing.T) *models.MaintenanceRequest {
	t.Helper()
	m := &models.MaintenanceRequest{TenantID: &e.tenant.ID, Title: "Broken window", Priority: models.PriorityHigh}
	require.NoError(t, e.services.Maintenance.Create(context.Background(), m))
	return m
}

func (e *testEnv) complaint(t *testing.T) *models.Complaint {
	t.Helper()
	c := &models.Complaint{TenantID: e.tenant.ID, Subject: "Loud music"}
	require.NoError(t, e.services.Complaints.Create(context.Background(), c))
	return c
}

func (e *testEnv) agreement(t *testing.T, end *time.Time) *models.RentalAgreement {
	t.Helper()
	room := e.store.SeedRoom(uuid.NewString()[:4], models.RoomAvailable)
	a := &models.RentalAgreement{TenantID: e.tenant.ID, RoomID: room.ID, StartDate: e.now.AddDate(-1, 0, 0),
		EndDate: end, MonthlyRent: 650, PaymentDay: 1}
	require.NoError(t, e.services.Rentals.Create(context.Background(), a))
	return a
}
