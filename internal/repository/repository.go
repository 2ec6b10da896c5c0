package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrRoomUnavailable is returned when a room status compare-and-set misses.
var ErrRoomUnavailable = errors.New("room status changed concurrently")

type MaintenanceRepository interface {
	Create(ctx context.Context, m *models.MaintenanceRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error)
	// Save persists every column when the stored status equals expected and
	// the version is unchanged; it bumps the version.
	Save(ctx context.Context, m *models.MaintenanceRequest, expected workflows.State) error
	ListOpen(ctx context.Context) ([]*models.MaintenanceRequest, error)
	ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.MaintenanceRequest, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Save(ctx context.Context, p *models.Payment, expected workflows.State) error
	ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Payment, error)
	// LastCompletedForAgreement returns the payment date of the most recent
	// completed payment, or nil.
	LastCompletedForAgreement(ctx context.Context, agreementID uuid.UUID) (*time.Time, error)
}

type RentalRepository interface {
	Create(ctx context.Context, r *models.RentalAgreement) error
	Get(ctx context.Context, id uuid.UUID) (*models.RentalAgreement, error)
	Save(ctx context.Context, r *models.RentalAgreement, expected workflows.State) error
	ListByStatus(ctx context.Context, status workflows.State) ([]*models.RentalAgreement, error)
	ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.RentalAgreement, error)
	CountActiveForTenant(ctx context.Context, tenantID, excludeID uuid.UUID) (int64, error)
}

type TenantRepository interface {
	Create(ctx context.Context, t *models.Tenant) error
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Tenant, error)
	Save(ctx context.Context, t *models.Tenant, expected workflows.State) error
	// AdjustBalance adds delta to the account balance atomically.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta float64) error
	SetTenantStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error
	ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Tenant, error)
}

type ComplaintRepository interface {
	Create(ctx context.Context, c *models.Complaint) error
	Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	Save(ctx context.Context, c *models.Complaint, expected workflows.State) error
	ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Complaint, error)
}

type RoomRepository interface {
	Create(ctx context.Context, r *models.Room) error
	Get(ctx context.Context, id uuid.UUID) (*models.Room, error)
	// SetStatus moves the room from one status to another, failing with
	// ErrRoomUnavailable when the stored status is not from.
	SetStatus(ctx context.Context, id uuid.UUID, from, to models.RoomStatus) error
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ListGroupMembers(ctx context.Context, group string) ([]*models.User, error)
	ListStaff(ctx context.Context) ([]*models.User, error)
	ListSuperusers(ctx context.Context) ([]*models.User, error)
}

// Repositories groups every entity repository bound to one connection or
// transaction.
type Repositories struct {
	Maintenance MaintenanceRepository
	Payments    PaymentRepository
	Rentals     RentalRepository
	Tenants     TenantRepository
	Complaints  ComplaintRepository
	Rooms       RoomRepository
	Users       UserRepository
}

// UnitOfWork hands out repositories and runs transactions over them.
type UnitOfWork interface {
	Repositories() *Repositories
	Do(ctx context.Context, fn func(ctx context.Context, tx *Repositories) error) error
}
