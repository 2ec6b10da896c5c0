package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rentflow/property-portal/property-portal-backend/internal/config"
	"rentflow/property-portal/property-portal-backend/internal/models"
	"rentflow/property-portal/property-portal-backend/internal/repository"
	"rentflow/property-portal/property-portal-backend/pkg/workflows"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInactiveUser = errors.New("user account is inactive")
)

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Actor    workflows.Actor
	// TenantID is set when the user has a tenant profile.
	TenantID *uuid.UUID
}

// IsTenant reports whether the caller is a tenant without staff rights.
func (p *Principal) IsTenant() bool {
	return p.TenantID != nil && !p.Actor.Staff && !p.Actor.Superuser
}

// IsStaff reports whether the caller may use staff-only endpoints.
func (p *Principal) IsStaff() bool {
	return p.Actor.Staff || p.Actor.Superuser
}

// Service issues and verifies bearer tokens. Users are reloaded on every
// request so role and group changes apply immediately.
type Service struct {
	secret  []byte
	ttl     time.Duration
	users   repository.UserRepository
	tenants repository.TenantRepository
	now     func() time.Time
}

func NewService(cfg config.SecurityConfig, users repository.UserRepository, tenants repository.TenantRepository) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{secret: []byte(cfg.JWTSecret), ttl: ttl, users: users, tenants: tenants, now: time.Now}, nil
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// IssueToken signs a token for u.
func (s *Service) IssueToken(u *models.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		UserID:   u.ID.String(),
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates the signature and expiry of a token.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate resolves a token to a Principal.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*Principal, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}

	p := &Principal{UserID: u.ID, Username: u.Username, Actor: u.Actor()}
	if t, err := s.tenants.GetByUserID(ctx, u.ID); err == nil {
		p.TenantID = &t.ID
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load tenant profile: %w", err)
	}
	return p, nil
}
