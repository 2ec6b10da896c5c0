package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// Repository stores audit rows. Rows are only ever inserted.
type Repository interface {
	Create(ctx context.Context, entry *WorkflowAuditLog) error
	ListForInstance(ctx context.Context, instanceType, instanceID string) ([]WorkflowAuditLog, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]WorkflowAuditLog, error)
	CountByEventName(ctx context.Context, since time.Time) (map[string]int64, error)
	CountByInstanceType(ctx context.Context, since time.Time) (map[string]int64, error)
}

type postgresRepository struct {
	db *gorm.DB
	sx *sqlx.DB
}

// NewRepository writes through gorm and aggregates through sqlx on the
// same connection pool.
func NewRepository(db *gorm.DB) (Repository, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB from gorm: %w", err)
	}
	return &postgresRepository{db: db, sx: sqlx.NewDb(sqlDB, "postgres")}, nil
}

// Migrate creates the audit table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&WorkflowAuditLog{})
}

func (r *postgresRepository) Create(ctx context.Context, entry *WorkflowAuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *postgresRepository) ListForInstance(ctx context.Context, instanceType, instanceID string) ([]WorkflowAuditLog, error) {
	var out []WorkflowAuditLog
	err := r.db.WithContext(ctx).
		Where("instance_type = ? AND instance_id = ?", instanceType, instanceID).
		Order("timestamp ASC").
		Find(&out).Error
	return out, err
}

func (r *postgresRepository) ListEvents(ctx context.Context, filter EventFilter) ([]WorkflowAuditLog, error) {
	q := r.db.WithContext(ctx).Model(&WorkflowAuditLog{})
	if filter.InstanceType != "" {
		q = q.Where("instance_type = ?", filter.InstanceType)
	}
	if filter.InstanceID != "" {
		q = q.Where("instance_id = ?", filter.InstanceID)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.Since != nil {
		q = q.Where("timestamp >= ?", *filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var out []WorkflowAuditLog
	err := q.Order("timestamp DESC").Find(&out).Error
	return out, err
}
