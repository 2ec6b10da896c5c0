package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow/property-portal/property-portal-backend/internal/models"
)

type roomRepository struct {
	db *gorm.DB
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *roomRepository) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (r *roomRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to models.RoomStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomUnavailable
	}
	return nil
}
