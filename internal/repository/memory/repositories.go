package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

func withTenant(st *state, id *uuid.UUID) *models.Tenant {
	if id == nil {
		return nil
	}
	if t, ok := st.tenants[*id]; ok {
		return &t
	}
	return nil
}

func withRoom(st *state, id uuid.UUID) *models.Room {
	if r, ok := st.rooms[id]; ok {
		return &r
	}
	return nil
}

func newestFirst[T any](items []T, at func(T) time.Time, limit int) []T {
	sort.SliceStable(items, func(i, j int) bool { return at(items[i]).After(at(items[j])) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

type maintenanceRepo struct{ b *binding }

func (r *maintenanceRepo) Create(ctx context.Context, m *models.MaintenanceRequest) error {
	return r.b.view(func(st *state) error {
		stamp(&m.ID, &m.CreatedAt, &m.UpdatedAt, r.b.now())
		row := *m
		row.Room, row.Tenant = nil, nil
		st.maintenance[m.ID] = row
		return nil
	})
}

func (r *maintenanceRepo) Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	var out *models.MaintenanceRequest
	err := r.b.view(func(st *state) error {
		row, ok := st.maintenance[id]
		if !ok {
			return repository.ErrNotFound
		}
		row.Room = withRoom(st, row.RoomID)
		row.Tenant = withTenant(st, row.TenantID)
		out = &row
		return nil
	})
	return out, err
}

func (r *maintenanceRepo) Save(ctx context.Context, m *models.MaintenanceRequest, expected workflows.State) error {
	return r.b.view(func(st *state) error {
		stored, ok := st.maintenance[m.ID]
		if !ok || stored.Status != expected || stored.Version != m.Version {
			return workflows.ErrConflict
		}
		m.Version++
		m.UpdatedAt = r.b.now()
		row := *m
		row.Room, row.Tenant = nil, nil
		st.maintenance[m.ID] = row
		return nil
	})
}

func (r *maintenanceRepo) ListOpen(ctx context.Context) ([]*models.MaintenanceRequest, error) {
	var out []*models.MaintenanceRequest
	err := r.b.view(func(st *state) error {
		for _, row := range st.maintenance {
			row := row
			if row.IsOpen() {
				row.Tenant = withTenant(st, row.TenantID)
				out = append(out, &row)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *maintenanceRepo) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.MaintenanceRequest, error) {
	var out []*models.MaintenanceRequest
	err := r.b.view(func(st *state) error {
		for _, row := range st.maintenance {
			row := row
			if !row.UpdatedAt.Before(since) {
				row.Tenant = withTenant(st, row.TenantID)
				out = append(out, &row)
			}
		}
		return nil
	})
	return newestFirst(out, func(m *models.MaintenanceRequest) time.Time { return m.UpdatedAt }, limit), err
}

type paymentRepo struct{ b *binding }

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	return r.b.view(func(st *state) error {
		stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt, r.b.now())
		row := *p
		row.Tenant = nil
		st.payments[p.ID] = row
		return nil
	})
}

func (r *paymentRepo) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var out *models.Payment
	err := r.b.view(func(st *state) error {
		row, ok := st.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		row.Tenant = withTenant(st, &row.TenantID)
		out = &row
		return nil
	})
	return out, err
}

func (r *paymentRepo) Save(ctx context.Context, p *models.Payment, expected workflows.State) error {
	return r.b.view(func(st *state) error {
		stored, ok := st.payments[p.ID]
		if !ok || stored.Status != expected || stored.Version != p.Version {
			return workflows.ErrConflict
		}
		p.Version++
		p.UpdatedAt = r.b.now()
		row := *p
		row.Tenant = nil
		st.payments[p.ID] = row
		return nil
	})
}

func (r *paymentRepo) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Payment, error) {
	var out []*models.Payment
	err := r.b.view(func(st *state) error {
		for _, row := range st.payments {
			row := row
			if !row.UpdatedAt.Before(since) {
				row.Tenant = withTenant(st, &row.TenantID)
				out = append(out, &row)
			}
		}
		return nil
	})
	return newestFirst(out, func(p *models.Payment) time.Time { return p.UpdatedAt }, limit), err
}

func (r *paymentRepo) LastCompletedForAgreement(ctx context.Context, agreementID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := r.b.view(func(st *state) error {
		for _, row := range st.payments {
			if row.AgreementID == nil || *row.AgreementID != agreementID || row.Status != models.PaymentCompleted {
				continue
			}
			if last == nil || row.PaymentDate.After(*last) {
				d := row.PaymentDate
				last = &d
			}
		}
		return nil
	})
	return last, err
}

type rentalRepo struct{ b *binding }

func (r *rentalRepo) Create(ctx context.Context, a *models.RentalAgreement) error {
	return r.b.view(func(st *state) error {
		stamp(&a.ID, &a.CreatedAt, &a.UpdatedAt, r.b.now())
		row := *a
		row.Tenant, row.Room = nil, nil
		st.rentals[a.ID] = row
		return nil
	})
}

func (r *rentalRepo) Get(ctx context.Context, id uuid.UUID) (*models.RentalAgreement, error) {
	var out *models.RentalAgreement
	err := r.b.view(func(st *state) error {
		row, ok := st.rentals[id]
		if !ok {
			return repository.ErrNotFound
		}
		row.Tenant = withTenant(st, &row.TenantID)
		row.Room = withRoom(st, row.RoomID)
		out = &row
		return nil
	})
	return out, err
}

func (r *rentalRepo) Save(ctx context.Context, a *models.RentalAgreement, expected workflows.State) error {
	return r.b.view(func(st *state) error {
		stored, ok := st.rentals[a.ID]
		if !ok || stored.Status != expected || stored.Version != a.Version {
			return workflows.ErrConflict
		}
		a.Version++
		a.UpdatedAt = r.b.now()
		row := *a
		row.Tenant, row.Room = nil, nil
		st.rentals[a.ID] = row
		return nil
	})
}

func (r *rentalRepo) ListByStatus(ctx context.Context, status workflows.State) ([]*models.RentalAgreement, error) {
	var out []*models.RentalAgreement
	err := r.b.view(func(st *state) error {
		for _, row := range st.rentals {
			row := row
			if row.Status == status {
				row.Tenant = withTenant(st, &row.TenantID)
				out = append(out, &row)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, err
}

func (r *rentalRepo) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.RentalAgreement, error) {
	var out []*models.RentalAgreement
	err := r.b.view(func(st *state) error {
		for _, row := range st.rentals {
			row := row
			if !row.UpdatedAt.Before(since) {
				row.Tenant = withTenant(st, &row.TenantID)
				out = append(out, &row)
			}
		}
		return nil
	})
	return newestFirst(out, func(a *models.RentalAgreement) time.Time { return a.UpdatedAt }, limit), err
}

func (r *rentalRepo) CountActiveForTenant(ctx context.Context, tenantID, excludeID uuid.UUID) (int64, error) {
	var n int64
	err := r.b.view(func(st *state) error {
		for _, row := range st.rentals {
			if row.TenantID == tenantID && row.Status == models.RentalActive && row.ID != excludeID {
				n++
			}
		}
		return nil
	})
	return n, err
}

type tenantRepo struct{ b *binding }

func (r *tenantRepo) Create(ctx context.Context, t *models.Tenant) error {
	return r.b.view(func(st *state) error {
		stamp(&t.ID, &t.CreatedAt, &t.UpdatedAt, r.b.now())
		if t.ComplianceStatus == "" {
			t.ComplianceStatus = models.CompliancePendingDocuments
		}
		if t.TenantStatus == "" {
			t.TenantStatus = models.TenantProspective
		}
		st.tenants[t.ID] = *t
		return nil
	})
}

func (r *tenantRepo) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var out *models.Tenant
	err := r.b.view(func(st *state) error {
		row, ok := st.tenants[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &row
		return nil
	})
	return out, err
}

func (r *tenantRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Tenant, error) {
	var out *models.Tenant
	err := r.b.view(func(st *state) error {
		for _, row := range st.tenants {
			if row.UserID != nil && *row.UserID == userID {
				row := row
				out = &row
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *tenantRepo) Save(ctx context.Context, t *models.Tenant, expected workflows.State) error {
	return r.b.view(func(st *state) error {
		stored, ok := st.tenants[t.ID]
		if !ok || stored.ComplianceStatus != expected || stored.Version != t.Version {
			return workflows.ErrConflict
		}
		t.Version++
		t.UpdatedAt = r.b.now()
		st.tenants[t.ID] = *t
		return nil
	})
}

func (r *tenantRepo) AdjustBalance(ctx context.Context, id uuid.UUID, delta float64) error {
	return r.b.view(func(st *state) error {
		row, ok := st.tenants[id]
		if !ok {
			return repository.ErrNotFound
		}
		row.AccountBalance = models.Cents(row.AccountBalance + delta)
		row.Version++
		row.UpdatedAt = r.b.now()
		st.tenants[id] = row
		return nil
	})
}

func (r *tenantRepo) SetTenantStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) error {
	return r.b.view(func(st *state) error {
		row, ok := st.tenants[id]
		if !ok {
			return repository.ErrNotFound
		}
		row.TenantStatus = status
		row.Version++
		row.UpdatedAt = r.b.now()
		st.tenants[id] = row
		return nil
	})
}

func (r *tenantRepo) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Tenant, error) {
	var out []*models.Tenant
	err := r.b.view(func(st *state) error {
		for _, row := range st.tenants {
			row := row
			if !row.UpdatedAt.Before(since) {
				out = append(out, &row)
			}
		}
		return nil
	})
	return newestFirst(out, func(t *models.Tenant) time.Time { return t.UpdatedAt }, limit), err
}

type complaintRepo struct{ b *binding }

func (r *complaintRepo) Create(ctx context.Context, c *models.Complaint) error {
	return r.b.view(func(st *state) error {
		stamp(&c.ID, &c.CreatedAt, &c.UpdatedAt, r.b.now())
		row := *c
		row.Tenant = nil
		st.complaints[c.ID] = row
		return nil
	})
}

func (r *complaintRepo) Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var out *models.Complaint
	err := r.b.view(func(st *state) error {
		row, ok := st.complaints[id]
		if !ok {
			return repository.ErrNotFound
		}
		row.Tenant = withTenant(st, &row.TenantID)
		out = &row
		return nil
	})
	return out, err
}

func (r *complaintRepo) Save(ctx context.Context, c *models.Complaint, expected workflows.State) error {
	return r.b.view(func(st *state) error {
		stored, ok := st.complaints[c.ID]
		if !ok || stored.Status != expected || stored.Version != c.Version {
			return workflows.ErrConflict
		}
		c.Version++
		c.UpdatedAt = r.b.now()
		row := *c
		row.Tenant = nil
		st.complaints[c.ID] = row
		return nil
	})
}

func (r *complaintRepo) ListModifiedSince(ctx context.Context, since time.Time, limit int) ([]*models.Complaint, error) {
	var out []*models.Complaint
	err := r.b.view(func(st *state) error {
		for _, row := range st.complaints {
			row := row
			if !row.UpdatedAt.Before(since) {
				row.Tenant = withTenant(st, &row.TenantID)
				out = append(out, &row)
			}
		}
		return nil
	})
	return newestFirst(out, func(c *models.Complaint) time.Time { return c.UpdatedAt }, limit), err
}

type roomRepo struct{ b *binding }

func (r *roomRepo) Create(ctx context.Context, room *models.Room) error {
	return r.b.view(func(st *state) error {
		stamp(&room.ID, &room.CreatedAt, &room.UpdatedAt, r.b.now())
		if room.Status == "" {
			room.Status = models.RoomAvailable
		}
		st.rooms[room.ID] = *room
		return nil
	})
}

func (r *roomRepo) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var out *models.Room
	err := r.b.view(func(st *state) error {
		row, ok := st.rooms[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &row
		return nil
	})
	return out, err
}

func (r *roomRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to models.RoomStatus) error {
	return r.b.view(func(st *state) error {
		row, ok := st.rooms[id]
		if !ok {
			return repository.ErrNotFound
		}
		if row.Status != from {
			return repository.ErrRoomUnavailable
		}
		row.Status = to
		row.Version++
		row.UpdatedAt = r.b.now()
		st.rooms[id] = row
		return nil
	})
}

type userRepo struct{ b *binding }

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	return r.b.view(func(st *state) error {
		stamp(&u.ID, &u.CreatedAt, &u.UpdatedAt, r.b.now())
		if u.StaffProfile != nil {
			u.StaffProfile.UserID = u.ID
		}
		st.users[u.ID] = *u
		return nil
	})
}

func (r *userRepo) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := r.b.view(func(st *state) error {
		row, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &row
		return nil
	})
	return out, err
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	err := r.b.view(func(st *state) error {
		for _, row := range st.users {
			if row.Username == username {
				row := row
				out = &row
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *userRepo) filter(keep func(models.User) bool) ([]*models.User, error) {
	var out []*models.User
	err := r.b.view(func(st *state) error {
		for _, row := range st.users {
			row := row
			if row.IsActive && keep(row) {
				out = append(out, &row)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, err
}

func (r *userRepo) ListGroupMembers(ctx context.Context, group string) ([]*models.User, error) {
	return r.filter(func(u models.User) bool {
		for _, g := range u.Groups {
			if strings.EqualFold(g.Name, group) {
				return true
			}
		}
		return false
	})
}

func (r *userRepo) ListStaff(ctx context.Context) ([]*models.User, error) {
	return r.filter(func(u models.User) bool { return u.IsStaff })
}

func (r *userRepo) ListSuperusers(ctx context.Context) ([]*models.User, error) {
	return r.filter(func(u models.User) bool { return u.IsSuperuser })
}
