package notifications

import (
	"context"

	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
)

// Directory resolves users that can receive notifications. Only active
// users are returned.
type Directory interface {
	Lookup(ctx context.Context, id uuid.UUID) (*Recipient, error)
	GroupMembers(ctx context.Context, group string) ([]Recipient, error)
	Staff(ctx context.Context) ([]Recipient, error)
	Superusers(ctx context.Context) ([]Recipient, error)
}

type userDirectory struct {
	users repository.UserRepository
}

// NewUserDirectory reads recipients from the user table.
func NewUserDirectory(users repository.UserRepository) Directory {
	return &userDirectory{users: users}
}

func toRecipient(u *models.User) Recipient {
	return Recipient{ID: u.ID, Name: u.DisplayName(), Email: u.Email, Phone: u.Phone}
}

func toRecipients(users []*models.User) []Recipient {
	out := make([]Recipient, 0, len(users))
	for _, u := range users {
		out = append(out, toRecipient(u))
	}
	return out
}

func (d *userDirectory) Lookup(ctx context.Context, id uuid.UUID) (*Recipient, error) {
	u, err := d.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, repository.ErrNotFound
	}
	r := toRecipient(u)
	return &r, nil
}

func (d *userDirectory) GroupMembers(ctx context.Context, group string) ([]Recipient, error) {
	users, err := d.users.ListGroupMembers(ctx, group)
	if err != nil {
		return nil, err
	}
	return toRecipients(users), nil
}

func (d *userDirectory) Staff(ctx context.Context) ([]Recipient, error) {
	users, err := d.users.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	return toRecipients(users), nil
}

func (d *userDirectory) Superusers(ctx context.Context) ([]Recipient, error) {
	users, err := d.users.ListSuperusers(ctx)
	if err != nil {
		return nil, err
	}
	return toRecipients(users), nil
}
