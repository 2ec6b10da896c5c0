package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentflow/property-portal/property-portal-backend/internal/models"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Preload("Groups").Preload("StaffProfile").First(&u, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Preload("Groups").Preload("StaffProfile").First(&u, "username = ?", username).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *userRepository) ListGroupMembers(ctx context.Context, group string) ([]*models.User, error) {
	var out []*models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_groups ON user_groups.user_id = users.id").
		Joins("JOIN groups ON groups.id = user_groups.group_id").
		Where("groups.name = ? AND users.is_active = ?", group, true).
		Find(&out).Error
	return out, err
}

func (r *userRepository) ListStaff(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	err := r.db.WithContext(ctx).Where("is_staff = ? AND is_active = ?", true, true).Find(&out).Error
	return out, err
}

func (r *userRepository) ListSuperusers(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	err := r.db.WithContext(ctx).Where("is_superuser = ? AND is_active = ?", true, true).Find(&out).Error
	return out, err
}
