package triggers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("trigger not found")

// Filter narrows List.
type Filter struct {
	InstanceType string
	ActiveOnly   bool
}

// Repository persists trigger rules. List returns rows by descending
// priority, then name.
type Repository interface {
	Create(ctx context.Context, t *WorkflowTrigger) error
	Get(ctx context.Context, id uuid.UUID) (*WorkflowTrigger, error)
	List(ctx context.Context, filter Filter) ([]*WorkflowTrigger, error)
	Update(ctx context.Context, t *WorkflowTrigger) error
	MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
}

type postgresRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &postgresRepository{db: db}
}

// Migrate creates the triggers table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&WorkflowTrigger{})
}

func (r *postgresRepository) Create(ctx context.Context, t *WorkflowTrigger) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create trigger: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*WorkflowTrigger, error) {
	var t WorkflowTrigger
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trigger: %w", err)
	}
	return &t, nil
}

func (r *postgresRepository) List(ctx context.Context, filter Filter) ([]*WorkflowTrigger, error) {
	q := r.db.WithContext(ctx)
	if filter.InstanceType != "" {
		q = q.Where("instance_type = ?", filter.InstanceType)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var out []*WorkflowTrigger
	if err := q.Order("priority DESC, name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list triggers: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) Update(ctx context.Context, t *WorkflowTrigger) error {
	result := r.db.WithContext(ctx).Model(&WorkflowTrigger{}).Where("id = ?", t.ID).Select("*").Omit("created_at").Updates(t)
	if result.Error != nil {
		return fmt.Errorf("failed to update trigger: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&WorkflowTrigger{}).Where("id = ?", id).Update("last_triggered", at)
	if result.Error != nil {
		return fmt.Errorf("failed to stamp trigger: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
