package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/audit"
	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/maintenance"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/notifications"
	"rentflow/property-portal/property-portal-backend/internal/rentals"
	"rentflow/property-portal/property-portal-backend/internal/repository/memory"
	"rentflow/property-portal/property-portal-backend/internal/triggers"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type notifyCall struct {
	target    models.Entity
	recipient uuid.UUID
	title     string
}

// recordingActions captures trigger actions without touching the store.
type recordingActions struct {
	mu       sync.Mutex
	notified []notifyCall
}

func (a *recordingActions) TransitionTo(ctx context.Context, target models.Entity, state workflows.State, actor workflows.Actor, params workflows.Params) error {
	return nil
}

func (a *recordingActions) Notify(ctx context.Context, target models.Entity, recipientID uuid.UUID, title, message string, data map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notified = append(a.notified, notifyCall{target: target, recipient: recipientID, title: title})
	return nil
}

func (a *recordingActions) Escalate(ctx context.Context, target models.Entity, eventType string, hours int, priority notifications.Priority) error {
	return nil
}

func (a *recordingActions) Assign(ctx context.Context, target models.Entity, userID uuid.UUID, actor workflows.Actor) error {
	return nil
}

type jobRecorder struct {
	runs map[string]int
}

func (r *jobRecorder) ObserveJob(job, outcome string, items int, elapsed time.Duration) {
	r.runs[job+"/"+outcome]++
}

type fixture struct {
	store       *memory.Store
	now         time.Time
	audits      *audit.MemoryRepository
	auditSvc    *audit.Service
	notes       *notifications.MemoryRepository
	notifier    *notifications.Service
	maintenance *maintenance.Service
	rentals     *rentals.Service
	triggers    *triggers.Service
	actions     *recordingActions
	recorder    *jobRecorder
	manager     *models.User
	tenant      *models.Tenant
	tenantUser  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		now:      time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		audits:   audit.NewMemoryRepository(),
		notes:    notifications.NewMemoryRepository(),
		actions:  &recordingActions{},
		recorder: &jobRecorder{runs: map[string]int{}},
	}
	clock := func() time.Time { return f.now }
	f.store.SetClock(clock)

	f.auditSvc = audit.NewService(f.audits, nil, nil)
	f.auditSvc.SetClock(clock)
	f.notifier = notifications.NewService(f.notes, notifications.NewUserDirectory(f.store.Repositories().Users),
		notifications.Options{StaffGroup: "Managers", EscalationGroup: "Managers"}, nil)
	f.notifier.SetClock(clock)
	f.maintenance = maintenance.NewService(f.store, config.Default().Workflow, nil)
	f.maintenance.SetClock(clock)
	f.rentals = rentals.NewService(f.store, nil)
	f.rentals.SetClock(clock)
	f.triggers = triggers.NewService(triggers.NewMemoryRepository(), f.actions, f.auditSvc, nil)
	f.triggers.SetClock(clock)

	f.manager = f.store.SeedStaff("maria", workflows.RoleManager, "Managers")
	f.tenant, f.tenantUser = f.store.SeedTenant("Paula")
	return f
}

func (f *fixture) request(t *testing.T, title string, priority models.Priority) *models.MaintenanceRequest {
	t.Helper()
	m := &models.MaintenanceRequest{TenantID: &f.tenant.ID, Title: title, Priority: priority}
	require.NoError(t, f.maintenance.Create(context.Background(), m))
	return m
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *models.MaintenanceRequest {
	t.Helper()
	m, err := f.maintenance.Get(context.Background(), id)
	require.NoError(t, err)
	return m
}
