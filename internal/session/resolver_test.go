package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/identity"
)

type stubTokenStore struct {
	bindings map[string]uuid.UUID
}

func newStubTokenStore() *stubTokenStore {
	return &stubTokenStore{bindings: make(map[string]uuid.UUID)}
}

func (s *stubTokenStore) Bind(_ context.Context, token string, userID uuid.UUID) error {
	s.bindings[token] = userID
	return nil
}

func (s *stubTokenStore) Resolve(_ context.Context, token string) (uuid.UUID, error) {
	id, ok := s.bindings[token]
	if !ok {
		return uuid.Nil, ErrTokenNotFound
	}
	return id, nil
}

type stubUserSource struct {
	users   map[uuid.UUID]*identity.User
	touched map[uuid.UUID]int
	created int
}

func newStubUserSource() *stubUserSource {
	return &stubUserSource{
		users:   make(map[uuid.UUID]*identity.User),
		touched: make(map[uuid.UUID]int),
	}
}

func (s *stubUserSource) CreateAnonymous(_ context.Context) (*identity.User, error) {
	s.created++
	u := &identity.User{ID: uuid.New(), Kind: identity.KindAnonymous}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubUserSource) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user %s", id)
}

func (s *stubUserSource) Touch(_ context.Context, id uuid.UUID) error {
	s.touched[id]++
	return nil
}

func TestResolveEmptyTokenBootstraps(t *testing.T) {
	tokens := newStubTokenStore()
	users := newStubUserSource()
	r := NewResolver(tokens, users)

	user, token, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, identity.KindAnonymous, user.Kind)
	require.Equal(t, user.ID, tokens.bindings[token], "fresh token bound to the new user")
	require.Equal(t, 1, users.created)
}

func TestResolveKnownTokenTouches(t *testing.T) {
	tokens := newStubTokenStore()
	users := newStubUserSource()
	r := NewResolver(tokens, users)
	ctx := context.Background()

	_, token, err := r.Resolve(ctx, "")
	require.NoError(t, err)

	user, sameToken, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, token, sameToken, "an established token never changes")
	require.Equal(t, 1, users.created, "no second user for a known token")
	require.Equal(t, 1, users.touched[user.ID], "activity timestamp refreshed")
}

func TestResolveUnknownTokenSelfHeals(t *testing.T) {
	tokens := newStubTokenStore()
	users := newStubUserSource()
	r := NewResolver(tokens, users)

	user, token, err := r.Resolve(context.Background(), "stale-cookie-value")
	require.NoError(t, err)
	require.Equal(t, "stale-cookie-value", token, "presented token is re-bound, not replaced")
	require.Equal(t, identity.KindAnonymous, user.Kind)
	require.Equal(t, user.ID, tokens.bindings["stale-cookie-value"])
}

func TestResolvePurgedUserSelfHeals(t *testing.T) {
	tokens := newStubTokenStore()
	users := newStubUserSource()
	r := NewResolver(tokens, users)
	ctx := context.Background()

	original, token, err := r.Resolve(ctx, "")
	require.NoError(t, err)

	// Simulate the purge sweep removing the user but not the binding.
	delete(users.users, original.ID)

	replacement, sameToken, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, token, sameToken)
	require.NotEqual(t, original.ID, replacement.ID, "binding moved to a fresh anonymous user")
	require.Equal(t, replacement.ID, tokens.bindings[token])
}

func TestNewTokenIsUnique(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.GreaterOrEqual(t, len(a), 43, "256 bits of entropy, base64-encoded")
}
