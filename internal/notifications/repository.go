package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notification not found")

// Repository persists notifications.
type Repository interface {
	Create(ctx context.Context, n *WorkflowNotification) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error
	ListForUser(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]WorkflowNotification, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	ListDueEscalations(ctx context.Context, now time.Time) ([]WorkflowNotification, error)
}

type postgresRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &postgresRepository{db: db}
}

// Migrate creates the notifications table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&WorkflowNotification{})
}

func (r *postgresRepository) Create(ctx context.Context, n *WorkflowNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *postgresRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&WorkflowNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_sent": true, "sent_at": at})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as sent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&WorkflowNotification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification as read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) ListForUser(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]WorkflowNotification, error) {
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []WorkflowNotification
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to get user notifications: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&WorkflowNotification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	return n, err
}

func (r *postgresRepository) ListDueEscalations(ctx context.Context, now time.Time) ([]WorkflowNotification, error) {
	var out []WorkflowNotification
	err := r.db.WithContext(ctx).
		Where("next_escalation IS NOT NULL AND next_escalation <= ? AND is_read = ?", now, false).
		Order("next_escalation ASC").
		Find(&out).Error
	return out, err
}
