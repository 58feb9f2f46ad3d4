package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kassandra-app/kassandra/internal/apperr"
)

// UpgradeParams carries the profile fields written during an upgrade.
type UpgradeParams struct {
	Email            string
	DisplayName      string
	PasswordHash     *string
	SubscribedWeekly bool
	Kind             Kind
}

// Store abstracts the persistence operations the service needs.
// *Repository is the production implementation.
type Store interface {
	CreateAnonymous(ctx context.Context) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Upgrade(ctx context.Context, id uuid.UUID, p UpgradeParams) (*User, error)
	PurgeAbandoned(ctx context.Context, cutoff time.Time) (int, error)
}

// Service owns the identity lifecycle: upgrade and the abandoned-user sweep.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Get returns the user by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.GetByID(ctx, id)
}

// UpgradeToRegistered flips an anonymous user to registered. The transition
// is one-way: calling it on an already-registered user updates the profile
// but the kind never goes back, and a premium user is never demoted.
// passwordHash is optional; when set it becomes the user's login secret.
func (s *Service) UpgradeToRegistered(ctx context.Context, userID uuid.UUID, email, displayName string, passwordHash *string, subscribedWeekly bool) (*User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, apperr.Validation("email is required")
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		return nil, apperr.Validation("invalid email format %q", normalized)
	}

	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Reject before mutating when another user owns the email. The unique
	// index closes the remaining race inside Upgrade itself.
	owner, err := s.store.GetByEmail(ctx, normalized)
	if err == nil && owner.ID != userID {
		return nil, apperr.Conflict("email %s already claimed", normalized)
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	kind := KindRegistered
	if user.Kind == KindPremium {
		kind = KindPremium
	}

	return s.store.Upgrade(ctx, userID, UpgradeParams{
		Email:            normalized,
		DisplayName:      strings.TrimSpace(displayName),
		PasswordHash:     passwordHash,
		SubscribedWeekly: subscribedWeekly,
		Kind:             kind,
	})
}

// PurgeAbandoned removes anonymous users inactive for at least threshold that
// never produced an answer or a guidance. Returns the number deleted.
func (s *Service) PurgeAbandoned(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		return 0, apperr.Validation("purge threshold must be positive, got %s", threshold)
	}
	cutoff := s.now().Add(-threshold)
	return s.store.PurgeAbandoned(ctx, cutoff)
}
