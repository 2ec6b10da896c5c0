package workflows

import (
	"fmt"
	"strings"
)

// Role is a staff role within a subsystem.
type Role string

const (
	RoleManager   Role = "manager"
	RoleCaretaker Role = "caretaker"
	RoleCleaner   Role = "cleaner"
	RoleSecurity  Role = "security"
)

// PermissionKind selects how a Permission is evaluated.
type PermissionKind int

const (
	PermStaff PermissionKind = iota + 1
	PermSuperuser
	PermGroup
	PermRole
)

// Permission is a single requirement a transition places on the actor.
type Permission struct {
	Kind PermissionKind
	Name string
}

func RequireStaff() Permission            { return Permission{Kind: PermStaff} }
func RequireSuperuser() Permission        { return Permission{Kind: PermSuperuser} }
func RequireGroup(name string) Permission { return Permission{Kind: PermGroup, Name: name} }
func RequireRole(role Role) Permission    { return Permission{Kind: PermRole, Name: string(role)} }

func (p Permission) String() string {
	switch p.Kind {
	case PermStaff:
		return "staff"
	case PermSuperuser:
		return "superuser"
	case PermGroup:
		return "group:" + p.Name
	case PermRole:
		return "role:" + p.Name
	default:
		return "unknown"
	}
}

// Actor is the user a transition is attempted on behalf of.
type Actor struct {
	ID          string
	Name        string
	Superuser   bool
	Staff       bool
	Groups      []string
	Role        Role
	ActiveStaff bool
}

// SystemActor is used by scheduled jobs and triggers.
func SystemActor() Actor {
	return Actor{ID: "", Name: "system", Superuser: true, Staff: true}
}

// IsSystem reports whether the actor is the scheduler identity.
func (a Actor) IsSystem() bool {
	return a.ID == "" && a.Name == "system"
}

// InGroup reports group membership, case-insensitively.
func (a Actor) InGroup(name string) bool {
	for _, g := range a.Groups {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// Hierarchy maps a required role to the roles that satisfy it. A role with
// no entry is satisfied only by itself.
type Hierarchy struct {
	satisfiers map[Role]map[Role]bool
}

// NewHierarchy builds a hierarchy from required -> satisfying roles. The
// required role always satisfies itself.
func NewHierarchy(table map[Role][]Role) Hierarchy {
	h := Hierarchy{satisfiers: make(map[Role]map[Role]bool, len(table))}
	for required, roles := range table {
		set := map[Role]bool{required: true}
		for _, r := range roles {
			set[r] = true
		}
		h.satisfiers[required] = set
	}
	return h
}

// Satisfies reports whether holding actual meets a requirement for required.
func (h Hierarchy) Satisfies(required, actual Role) bool {
	if actual == "" {
		return false
	}
	if set, ok := h.satisfiers[required]; ok {
		return set[actual]
	}
	return required == actual
}

// CheckPermissions evaluates every permission against the actor. Superusers
// always pass; otherwise all permissions must hold. The returned reason
// names the first unmet requirement.
func CheckPermissions(h Hierarchy, actor Actor, perms []Permission) (bool, string) {
	if actor.Superuser {
		return true, ""
	}
	for _, p := range perms {
		if ok, reason := checkOne(h, actor, p); !ok {
			return false, reason
		}
	}
	return true, ""
}

func checkOne(h Hierarchy, actor Actor, p Permission) (bool, string) {
	switch p.Kind {
	case PermStaff:
		if actor.Staff {
			return true, ""
		}
		return false, "staff access required"
	case PermSuperuser:
		return false, "superuser access required"
	case PermGroup:
		if actor.InGroup(p.Name) {
			return true, ""
		}
		return false, fmt.Sprintf("membership in group %q required", p.Name)
	case PermRole:
		if !actor.ActiveStaff {
			return false, fmt.Sprintf("active %s role required", p.Name)
		}
		if h.Satisfies(Role(p.Name), actor.Role) {
			return true, ""
		}
		return false, fmt.Sprintf("role %s required (have %s)", p.Name, actor.Role)
	default:
		return false, "unknown permission requirement"
	}
}
