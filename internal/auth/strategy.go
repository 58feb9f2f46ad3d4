// Package auth models login as a pluggable strategy selected at construction
// time: "dev" trusts the identifier outright, "email" checks an argon2id
// secret. Successful logins are issued short-lived PASETO access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/identity"
)

var ErrInvalidCredentials = errors.New("invalid login credentials")

// Strategy authenticates an identifier, optionally with a secret, and
// returns the matching user.
type Strategy interface {
	Login(ctx context.Context, identifier, secret string) (*identity.User, error)
}

// UserSource is the slice of the identity store strategies operate on.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*identity.User, error)
	CreateRegistered(ctx context.Context, displayName string, email, passwordHash *string) (*identity.User, error)
}

// NewStrategy selects a strategy by name. The choice is a startup decision,
// never inspected at request time.
func NewStrategy(name string, users UserSource) (Strategy, error) {
	switch name {
	case "dev":
		return &DevStrategy{users: users}, nil
	case "email":
		return &EmailStrategy{users: users}, nil
	default:
		return nil, fmt.Errorf("unknown auth strategy %q", name)
	}
}

// DevStrategy logs anyone in by display name, creating the user on first
// login. No secret involved. Development only.
type DevStrategy struct {
	users UserSource
}

func (s *DevStrategy) Login(ctx context.Context, identifier, _ string) (*identity.User, error) {
	if identifier == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByDisplayName(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	return s.users.CreateRegistered(ctx, identifier, nil, nil)
}

// EmailStrategy authenticates registered users by email and secret.
type EmailStrategy struct {
	users UserSource
}

func (s *EmailStrategy) Login(ctx context.Context, identifier, secret string) (*identity.User, error) {
	if identifier == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, identity.NormalizeEmail(identifier))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == "" || !verifySecret(user.PasswordHash, secret) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
