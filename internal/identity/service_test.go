package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kassandra-app/kassandra/internal/apperr"
)

type stubIdentityStore struct {
	users map[uuid.UUID]*User

	purgeCutoff time.Time
	purged      int
}

func newStubIdentityStore() *stubIdentityStore {
	return &stubIdentityStore{users: make(map[uuid.UUID]*User)}
}

func (s *stubIdentityStore) CreateAnonymous(_ context.Context) (*User, error) {
	u := &User{ID: uuid.New(), Kind: KindAnonymous}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubIdentityStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user %s", id)
}

func (s *stubIdentityStore) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user with email %s", email)
}

func (s *stubIdentityStore) Upgrade(_ context.Context, id uuid.UUID, p UpgradeParams) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s", id)
	}
	u.Kind = p.Kind
	u.Email = p.Email
	u.DisplayName = p.DisplayName
	u.SubscribedWeekly = p.SubscribedWeekly
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	return u, nil
}

func (s *stubIdentityStore) PurgeAbandoned(_ context.Context, cutoff time.Time) (int, error) {
	s.purgeCutoff = cutoff
	return s.purged, nil
}

func TestUpgradeNormalizesEmail(t *testing.T) {
	store := newStubIdentityStore()
	svc := NewService(store)
	anon, _ := store.CreateAnonymous(context.Background())

	u, err := svc.UpgradeToRegistered(context.Background(), anon.ID, "  Jane.Doe@Example.COM ", " Jane ", nil, true)
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", u.Email)
	require.Equal(t, "Jane", u.DisplayName)
	require.Equal(t, KindRegistered, u.Kind)
	require.True(t, u.SubscribedWeekly)
}

func TestUpgradeRejectsInvalidEmail(t *testing.T) {
	store := newStubIdentityStore()
	svc := NewService(store)
	anon, _ := store.CreateAnonymous(context.Background())

	for _, email := range []string{"", "   ", "not-an-email", "missing@"} {
		_, err := svc.UpgradeToRegistered(context.Background(), anon.ID, email, "Jane", nil, false)
		require.ErrorIs(t, err, apperr.ErrValidation, "email %q", email)
	}
	require.Equal(t, KindAnonymous, store.users[anon.ID].Kind, "no mutation on validation failure")
}

func TestUpgradeUnknownUser(t *testing.T) {
	svc := NewService(newStubIdentityStore())

	_, err := svc.UpgradeToRegistered(context.Background(), uuid.New(), "jane@example.com", "Jane", nil, false)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpgradeClaimedEmailConflicts(t *testing.T) {
	store := newStubIdentityStore()
	svc := NewService(store)
	ctx := context.Background()

	first, _ := store.CreateAnonymous(ctx)
	_, err := svc.UpgradeToRegistered(ctx, first.ID, "jane@example.com", "Jane", nil, false)
	require.NoError(t, err)

	second, _ := store.CreateAnonymous(ctx)
	_, err = svc.UpgradeToRegistered(ctx, second.ID, "JANE@example.com", "Impostor", nil, false)
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.Equal(t, KindAnonymous, store.users[second.ID].Kind, "conflicting upgrade leaves the user untouched")
}

func TestUpgradeIsIdempotentForOwner(t *testing.T) {
	store := newStubIdentityStore()
	svc := NewService(store)
	ctx := context.Background()

	anon, _ := store.CreateAnonymous(ctx)
	_, err := svc.UpgradeToRegistered(ctx, anon.ID, "jane@example.com", "Jane", nil, false)
	require.NoError(t, err)

	// Re-upgrading with the owner's own email updates the profile.
	u, err := svc.UpgradeToRegistered(ctx, anon.ID, "jane@example.com", "Jane D.", nil, true)
	require.NoError(t, err)
	require.Equal(t, KindRegistered, u.Kind)
	require.Equal(t, "Jane D.", u.DisplayName)
	require.True(t, u.SubscribedWeekly)
}

func TestUpgradeStoresPasswordHash(t *testing.T) {
	store := newStubIdentityStore()
	svc := NewService(store)
	anon, _ := store.CreateAnonymous(context.Background())

	hash := "$argon2id$v=19$..."
	u, err := svc.UpgradeToRegistered(context.Background(), anon.ID, "jane@example.com", "Jane", &hash, false)
	require.NoError(t, err)
	require.Equal(t, hash, u.PasswordHash)
}

func TestUpgradeKeepsPremiumKind(t *testing.T) {
	store := newStubIdentityStore()
	svc := NewService(store)
	ctx := context.Background()

	premium, _ := store.CreateAnonymous(ctx)
	store.users[premium.ID].Kind = KindPremium

	u, err := svc.UpgradeToRegistered(ctx, premium.ID, "vip@example.com", "VIP", nil, false)
	require.NoError(t, err)
	require.Equal(t, KindPremium, u.Kind, "re-registering never demotes premium")
	require.Equal(t, "vip@example.com", u.Email)
}

func TestPurgeAbandonedCutoff(t *testing.T) {
	store := newStubIdentityStore()
	store.purged = 3
	svc := NewService(store)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	n, err := svc.PurgeAbandoned(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, base.Add(-24*time.Hour), store.purgeCutoff)
}

func TestPurgeAbandonedRejectsNonPositiveThreshold(t *testing.T) {
	store := newStubIdentityStore()
	svc := NewService(store)

	for _, threshold := range []time.Duration{0, -time.Hour} {
		_, err := svc.PurgeAbandoned(context.Background(), threshold)
		require.ErrorIs(t, err, apperr.ErrValidation)
	}
	require.True(t, store.purgeCutoff.IsZero(), "store never reached")
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "jane@example.com", NormalizeEmail("  JANE@Example.Com "))
	require.Equal(t, "", NormalizeEmail("   "))
}
