package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type rentalRepository struct {
	db *gorm.DB
}

func (r *rentalRepository) Create(ctx context.Context, a *models.RentalAgreement) error {
	return r.db.WithContext(ctx).Omit("Tenant", "Room").Create(a).Error
}

func (r *rentalRepository) Get(ctx context.Context, id uuid.UUID) (*models.RentalAgreement, error) {
	var a models.RentalAgreement
	if err := r.db.WithContext(ctx).Preload("Tenant").Preload("Room").First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *rentalRepository) Save(ctx context.Context, a *models.RentalAgreement, expected workflows.State) error {
	return saveVersioned(ctx, r.db, a, a.ID, "status", expected, &a.Version)
}

func (r *rentalRepository) ListByStatus(ctx context.Context, status workflows.State) ([]*models.RentalAgreement, error) {
	var out []*models.RentalAgreement
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Where("status = ?", status).
		Order("start_date ASC").
		Find(&out).Error
	return out, err
}

func (r *rentalRepository) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.RentalAgreement, error) {
	var out []*models.RentalAgreement
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Where("updated_at >= ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *rentalRepository) CountActiveForTenant(ctx context.Context, tenantID, excludeID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.RentalAgreement{}).
		Where("tenant_id = ? AND status = ? AND id <> ?", tenantID, models.RentalActive, excludeID).
		Count(&n).Error
	return n, err
}
