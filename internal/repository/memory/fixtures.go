package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// SeedStaff adds an active staff user holding role and belonging to groups.
func (s *Store) SeedStaff(username string, role workflows.Role, groups ...string) *models.User {
	u := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: username,
		IsStaff:   true,
		IsActive:  true,
	}
	for _, g := range groups {
		u.Groups = append(u.Groups, models.Group{ID: uuid.New(), Name: g})
	}
	if role != "" {
		u.StaffProfile = &models.Staff{ID: uuid.New(), Role: role, IsActiveStaff: true}
	}
	_ = s.repos.Users.Create(context.Background(), u)
	return u
}

// SeedSuperuser adds an active superuser.
func (s *Store) SeedSuperuser(username string) *models.User {
	u := &models.User{Username: username, Email: username + "@example.com", IsSuperuser: true, IsStaff: true, IsActive: true}
	_ = s.repos.Users.Create(context.Background(), u)
	return u
}

// SeedTenant adds a tenant with a linked, non-staff user account.
func (s *Store) SeedTenant(first string) (*models.Tenant, *models.User) {
	u := &models.User{Username: strings.ToLower(first), Email: strings.ToLower(first) + "@tenants.example.com", FirstName: first, IsActive: true}
	_ = s.repos.Users.Create(context.Background(), u)
	t := &models.Tenant{FirstName: first, LastName: "Tenant", UserID: &u.ID, Email: u.Email}
	_ = s.repos.Tenants.Create(context.Background(), t)
	return t, u
}

// SeedRoom adds a room in the given status.
func (s *Store) SeedRoom(number string, status models.RoomStatus) *models.Room {
	r := &models.Room{PropertyID: uuid.New(), Number: number, Status: status, MonthlyRent: 500}
	_ = s.repos.Rooms.Create(context.Background(), r)
	return r
}
