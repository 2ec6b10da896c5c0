package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

// User is an authenticated account. Staff and tenants are both users.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username     string    `json:"username" gorm:"not null;uniqueIndex"`
	Email        string    `json:"email" gorm:"index"`
	Phone        string    `json:"phone"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsSuperuser  bool      `json:"is_superuser" gorm:"default:false"`
	IsStaff      bool      `json:"is_staff" gorm:"default:false"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	Groups       []Group   `json:"groups,omitempty" gorm:"many2many:user_groups;"`
	StaffProfile *Staff    `json:"staff_profile,omitempty" gorm:"foreignKey:UserID"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Group is a named permission group (e.g. "Managers").
type Group struct {
	ID   uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name string    `json:"name" gorm:"not null;uniqueIndex"`
}

// Staff is the employment profile of a staff user.
type Staff struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID        uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`
	Role          workflows.Role `json:"role" gorm:"type:varchar(20);not null"`
	IsActiveStaff bool           `json:"is_active_staff" gorm:"default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Staff) TableName() string { return "staff" }

// DisplayName returns the full name, falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Actor projects the user onto the permission model used by workflows.
func (u *User) Actor() workflows.Actor {
	a := workflows.Actor{
		ID:        u.ID.String(),
		Name:      u.DisplayName(),
		Superuser: u.IsSuperuser,
		Staff:     u.IsStaff,
	}
	for _, g := range u.Groups {
		a.Groups = append(a.Groups, g.Name)
	}
	if u.StaffProfile != nil {
		a.Role = u.StaffProfile.Role
		a.ActiveStaff = u.StaffProfile.IsActiveStaff
	}
	return a
}
