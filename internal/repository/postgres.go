package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

type postgresUnitOfWork struct {
	db    *gorm.DB
	repos *Repositories
}

// NewUnitOfWork returns gorm-backed repositories.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &postgresUnitOfWork{db: db, repos: bind(db)}
}

func bind(db *gorm.DB) *Repositories {
	return &Repositories{
		Maintenance: &maintenanceRepository{db: db},
		Payments:    &paymentRepository{db: db},
		Rentals:     &rentalRepository{db: db},
		Tenants:     &tenantRepository{db: db},
		Complaints:  &complaintRepository{db: db},
		Rooms:       &roomRepository{db: db},
		Users:       &userRepository{db: db},
	}
}

func (u *postgresUnitOfWork) Repositories() *Repositories {
	return u.repos
}

func (u *postgresUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx *Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, bind(tx))
	})
}

// Migrate creates or updates the entity tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Group{},
		&models.User{},
		&models.Staff{},
		&models.Property{},
		&models.Room{},
		&models.Tenant{},
		&models.MaintenanceRequest{},
		&models.Payment{},
		&models.RentalAgreement{},
		&models.Complaint{},
	); err != nil {
		return fmt.Errorf("failed to migrate entity tables: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// saveVersioned writes every column of model when the row still carries
// the expected status and version. On success *version is incremented.
func saveVersioned(ctx context.Context, db *gorm.DB, model any, id uuid.UUID, statusColumn string, expected workflows.State, version *int) error {
	prev := *version
	*version = prev + 1
	res := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND "+statusColumn+" = ? AND version = ?", id, expected, prev).
		Select("*").
		Omit("ID", "CreatedAt", clause.Associations).
		Updates(model)
	if res.Error != nil {
		*version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		*version = prev
		return workflows.ErrConflict
	}
	return nil
}
