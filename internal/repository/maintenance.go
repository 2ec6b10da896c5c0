package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type maintenanceRepository struct {
	db *gorm.DB
}

func (r *maintenanceRepository) Create(ctx context.Context, m *models.MaintenanceRequest) error {
	return r.db.WithContext(ctx).Omit("Room", "Tenant").Create(m).Error
}

func (r *maintenanceRepository) Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	var m models.MaintenanceRequest
	err := r.db.WithContext(ctx).Preload("Room").Preload("Tenant").First(&m, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *maintenanceRepository) Save(ctx context.Context, m *models.MaintenanceRequest, expected workflows.State) error {
	return saveVersioned(ctx, r.db, m, m.ID, "status", expected, &m.Version)
}

func (r *maintenanceRepository) ListOpen(ctx context.Context) ([]*models.MaintenanceRequest, error) {
	var out []*models.MaintenanceRequest
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Where("status IN ?", []workflows.State{models.MaintenancePending, models.MaintenanceInProgress, models.MaintenanceOnHold}).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *maintenanceRepository) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.MaintenanceRequest, error) {
	var out []*models.MaintenanceRequest
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Where("updated_at >= ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
