package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type tenantRepository struct {
	db *gorm.DB
}

func (r *tenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *tenantRepository) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *tenantRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).First(&t, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *tenantRepository) Save(ctx context.Context, t *models.Tenant, expected workflows.State) error {
	return saveVersioned(ctx, r.db, t, t.ID, "compliance_status", expected, &t.Version)
}

// AdjustBalance and SetTenantStatus bump the version so a concurrent
// compliance transition holding a stale copy fails instead of overwriting.
func (r *tenantRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta float64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"account_balance": gorm.Expr("account_balance + CAST(? AS numeric(12,2))", models.Cents(delta)),
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepository) SetTenantStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"tenant_status": status,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tenantRepository) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Tenant, error) {
	var out []*models.Tenant
	err := r.db.WithContext(ctx).
		Where("updated_at >= ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
