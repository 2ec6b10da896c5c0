package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type complaintRepository struct {
	db *gorm.DB
}

func (r *complaintRepository) Create(ctx context.Context, c *models.Complaint) error {
	return r.db.WithContext(ctx).Omit("Tenant").Create(c).Error
}

func (r *complaintRepository) Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var c models.Complaint
	if err := r.db.WithContext(ctx).Preload("Tenant").First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *complaintRepository) Save(ctx context.Context, c *models.Complaint, expected workflows.State) error {
	return saveVersioned(ctx, r.db, c, c.ID, "status", expected, &c.Version)
}

func (r *complaintRepository) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Complaint, error) {
	var out []*models.Complaint
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Where("updated_at >= ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
