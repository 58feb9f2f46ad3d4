// Package session maps inbound opaque tokens to user identities, creating an
// anonymous user on first contact.
//
// The token is a random 256-bit value stored hashed server-side. It is not
// signed or encrypted: possession of the cookie value is identity, exactly as
// trusted as the prototype this replaces. Known gap, kept deliberately.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/identity"
)

// TokenStore abstracts the token binding store. *RedisRepository is the
// production implementation.
type TokenStore interface {
	Bind(ctx context.Context, token string, userID uuid.UUID) error
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
}

// UserSource is the slice of the identity store the resolver needs.
type UserSource interface {
	CreateAnonymous(ctx context.Context) (*identity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

type Resolver struct {
	tokens TokenStore
	users  UserSource
}

func NewResolver(tokens TokenStore, users UserSource) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve maps a token to a user, updating the activity timestamp. An empty
// token creates a fresh anonymous user with a new token. A token that no
// longer resolves (store reset, purged user) is self-healing: it is re-bound
// to a new anonymous user so long-lived browser cookies stay valid.
func (r *Resolver) Resolve(ctx context.Context, token string) (*identity.User, string, error) {
	if token == "" {
		return r.bootstrap(ctx, "")
	}

	userID, err := r.tokens.Resolve(ctx, token)
	if errors.Is(err, ErrTokenNotFound) {
		return r.bootstrap(ctx, token)
	}
	if err != nil {
		return nil, "", err
	}

	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		// The binding outlived the user row, e.g. a purged anonymous user
		// whose browser came back.
		return r.bootstrap(ctx, token)
	}
	if err != nil {
		return nil, "", err
	}

	if err := r.users.Touch(ctx, user.ID); err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// bootstrap creates an anonymous user and binds it to the token, minting a
// new token when none was presented.
func (r *Resolver) bootstrap(ctx context.Context, token string) (*identity.User, string, error) {
	user, err := r.users.CreateAnonymous(ctx)
	if err != nil {
		return nil, "", err
	}

	if token == "" {
		token, err = NewToken()
		if err != nil {
			return nil, "", err
		}
	}

	if err := r.tokens.Bind(ctx, token, user.ID); err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// NewToken creates a cryptographically secure random session token
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
