// Package memory is an in-process implementation of the repository
// interfaces. Transactions run against a copy of the data that replaces the
// live copy only when the callback succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
)

type state struct {
	users       map[uuid.UUID]models.User
	tenants     map[uuid.UUID]models.Tenant
	rooms       map[uuid.UUID]models.Room
	maintenance map[uuid.UUID]models.MaintenanceRequest
	payments    map[uuid.UUID]models.Payment
	rentals     map[uuid.UUID]models.RentalAgreement
	complaints  map[uuid.UUID]models.Complaint
}

func newState() *state {
	return &state{
		users:       map[uuid.UUID]models.User{},
		tenants:     map[uuid.UUID]models.Tenant{},
		rooms:       map[uuid.UUID]models.Room{},
		maintenance: map[uuid.UUID]models.MaintenanceRequest{},
		payments:    map[uuid.UUID]models.Payment{},
		rentals:     map[uuid.UUID]models.RentalAgreement{},
		complaints:  map[uuid.UUID]models.Complaint{},
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		users:       cloneMap(s.users),
		tenants:     cloneMap(s.tenants),
		rooms:       cloneMap(s.rooms),
		maintenance: cloneMap(s.maintenance),
		payments:    cloneMap(s.payments),
		rentals:     cloneMap(s.rentals),
		complaints:  cloneMap(s.complaints),
	}
}

// Store is a repository.UnitOfWork held entirely in memory.
type Store struct {
	mu    sync.Mutex
	st    *state
	now   func() time.Time
	repos *repository.Repositories
}

// New returns an empty store.
func New() *Store {
	s := &Store{st: newState(), now: time.Now}
	s.repos = s.bind(&binding{store: s})
	return s
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Repositories() *repository.Repositories {
	return s.repos
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx *repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.st.clone()
	if err := fn(ctx, s.bind(&binding{store: s, tx: working})); err != nil {
		return err
	}
	s.st = working
	return nil
}

func (s *Store) bind(b *binding) *repository.Repositories {
	return &repository.Repositories{
		Maintenance: &maintenanceRepo{b},
		Payments:    &paymentRepo{b},
		Rentals:     &rentalRepo{b},
		Tenants:     &tenantRepo{b},
		Complaints:  &complaintRepo{b},
		Rooms:       &roomRepo{b},
		Users:       &userRepo{b},
	}
}

// binding routes a repository call to the transaction copy when present,
// otherwise to the live data under the store lock.
type binding struct {
	store *Store
	tx    *state
}

func (b *binding) view(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.st)
}

func (b *binding) now() time.Time {
	return b.store.now()
}

// stamp fills identity and timestamps the way the database defaults would.
func stamp(id *uuid.UUID, created, updated *time.Time, now time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}
