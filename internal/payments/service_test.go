package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository/memory"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type fixture struct {
	store     *memory.Store
	svc       *Service
	now       time.Time
	tenant    *models.Tenant
	tenantU   workflows.Actor
	caretaker *models.User
	manager   workflows.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.New(), now: time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)}
	f.store.SetClock(func() time.Time { return f.now })
	f.svc = NewService(f.store, nil)
	f.svc.SetClock(func() time.Time { return f.now })

	var u *models.User
	f.tenant, u = f.store.SeedTenant("Paula")
	f.tenantU = u.Actor()
	f.caretaker = f.store.SeedStaff("carl", workflows.RoleCaretaker)
	f.manager = f.store.SeedStaff("maria", workflows.RoleManager).Actor()
	return f
}

func (f *fixture) newPayment(t *testing.T, amount float64) *models.Payment {
	t.Helper()
	p := &models.Payment{TenantID: f.tenant.ID, Amount: amount, PaymentMethod: models.MethodMobileMoney}
	require.NoError(t, f.svc.Create(context.Background(), p))
	return p
}

func (f *fixture) balance(t *testing.T) float64 {
	t.Helper()
	tenant, err := f.store.Repositories().Tenants.Get(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	return tenant.AccountBalance
}

func TestVerifyCompletedCreditsTenant(t *testing.T) {
	f := newFixture(t)
	p := f.newPayment(t, 450)

	got, err := f.svc.VerifyCompleted(context.Background(), p.ID, "MPESA-991", f.caretaker.Actor())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.Status)

	stored, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, stored.Status)
	require.NotNil(t, stored.ProcessedDate)
	assert.Equal(t, f.now, *stored.ProcessedDate)
	require.NotNil(t, stored.VerifiedBy)
	assert.Equal(t, f.caretaker.ID, *stored.VerifiedBy)
	assert.Equal(t, "MPESA-991", stored.Reference)
	assert.Equal(t, 450.0, f.balance(t))
}

func TestTenantCannotVerifyPayment(t *testing.T) {
	f := newFixture(t)
	p := f.newPayment(t, 450)

	_, err := f.svc.VerifyCompleted(context.Background(), p.ID, "", f.tenantU)
	require.Error(t, err)
	assert.True(t, workflows.IsKind(err, workflows.KindPermissionDenied))

	stored, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.Status)
	assert.Zero(t, f.balance(t))
}

func TestRefundDebitsTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.newPayment(t, 300)
	_, err := f.svc.VerifyCompleted(ctx, p.ID, "", f.caretaker.Actor())
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, p.ID, "", f.manager)
	assert.EqualError(t, err, "Refund reason is required")

	_, err = f.svc.Refund(ctx, p.ID, "double charge", f.caretaker.Actor())
	assert.True(t, workflows.IsKind(err, workflows.KindPermissionDenied))

	got, err := f.svc.Refund(ctx, p.ID, "double charge", f.manager)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.Status)
	assert.Equal(t, "double charge", got.RefundReason)
	assert.NotNil(t, got.RefundedDate)
	assert.Zero(t, f.balance(t))
}

func TestFailAndRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.newPayment(t, 200)
	staff := f.caretaker.Actor()

	_, err := f.svc.StartProcessing(ctx, p.ID, staff)
	require.NoError(t, err)
	_, err = f.svc.MarkFailed(ctx, p.ID, "card declined", staff)
	require.NoError(t, err)

	stored, _ := f.svc.Get(ctx, p.ID)
	assert.Equal(t, models.PaymentFailed, stored.Status)
	assert.Equal(t, "card declined", stored.FailureReason)

	_, err = f.svc.Retry(ctx, p.ID, staff)
	require.NoError(t, err)
	stored, _ = f.svc.Get(ctx, p.ID)
	assert.Equal(t, models.PaymentPending, stored.Status)
	assert.Empty(t, stored.FailureReason)

	_, err = f.svc.Cancel(ctx, p.ID, f.manager)
	require.NoError(t, err)
	assert.True(t, f.svc.Engine().Machine().Terminal(models.PaymentCancelled))
}

func TestSideEffectFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := &models.Payment{TenantID: uuid.New(), Amount: 80}
	require.NoError(t, f.svc.Create(ctx, p))

	_, err := f.svc.VerifyCompleted(ctx, p.ID, "", f.manager)
	require.Error(t, err)
	assert.True(t, workflows.IsKind(err, workflows.KindSideEffect))

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.Status)
	assert.Nil(t, stored.ProcessedDate)
	assert.Equal(t, 0, stored.Version)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.svc.Create(context.Background(), &models.Payment{Amount: 10}))
	assert.Error(t, f.svc.Create(context.Background(), &models.Payment{TenantID: f.tenant.ID}))
}

func TestRiskScore(t *testing.T) {
	f := newFixture(t)
	due := f.now.AddDate(0, 0, -10)

	tests := []struct {
		name    string
		payment models.Payment
		want    int
	}{
		{"settled", models.Payment{Status: models.PaymentCompleted, Amount: 5000, DueDate: &due}, 0},
		{"fresh small", models.Payment{Status: models.PaymentPending, Amount: 100}, 0},
		{"overdue", models.Payment{Status: models.PaymentPending, Amount: 100, DueDate: &due}, 20},
		{"overdue failed large", models.Payment{Status: models.PaymentFailed, Amount: 1200, DueDate: &due}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.svc.RiskScore(&tt.payment))
		})
	}

	longAgo := f.now.AddDate(-1, 0, 0)
	worst := models.Payment{Status: models.PaymentFailed, Amount: 2000, DueDate: &longAgo}
	assert.Equal(t, 100, f.svc.RiskScore(&worst))
}
