package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type paymentRepository struct {
	db *gorm.DB
}

func (r *paymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Omit("Tenant").Create(p).Error
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Preload("Tenant").First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *paymentRepository) Save(ctx context.Context, p *models.Payment, expected workflows.State) error {
	return saveVersioned(ctx, r.db, p, p.ID, "status", expected, &p.Version)
}

func (r *paymentRepository) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Payment, error) {
	var out []*models.Payment
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Where("updated_at >= ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *paymentRepository) LastCompletedForAgreement(ctx context.Context, agreementID uuid.UUID) (*time.Time, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Where("agreement_id = ? AND status = ?", agreementID, models.PaymentCompleted).
		Order("payment_date DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p.PaymentDate, nil
}
