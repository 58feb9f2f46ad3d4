package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/database"
)

// Repository handles user persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// CreateAnonymous inserts a fresh anonymous user
func (r *Repository) CreateAnonymous(ctx context.Context) (*User, error) {
	now := time.Now()
	dbUser := &database.User{
		ID:           uuid.New(),
		Kind:         string(KindAnonymous),
		CreatedAt:    now,
		LastActiveAt: now,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, apperr.Store("failed to create anonymous user", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// CreateRegistered inserts a registered user directly, used by the dev login
// strategy's get-or-create path.
func (r *Repository) CreateRegistered(ctx context.Context, displayName string, email, passwordHash *string) (*User, error) {
	now := time.Now()
	dbUser := &database.User{
		ID:           uuid.New(),
		DisplayName:  &displayName,
		Email:        email,
		PasswordHash: passwordHash,
		Kind:         string(KindRegistered),
		CreatedAt:    now,
		LastActiveAt: now,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("email %s already exists", derefOrEmpty(email))
		}
		return nil, apperr.Store("failed to create registered user", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user %s", id)
		}
		return nil, apperr.Store("failed to get user by id", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by normalized email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("u.email = ?", email).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user with email %s", email)
		}
		return nil, apperr.Store("failed to get user by email", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByDisplayName retrieves a user by display name, used by the dev strategy
func (r *Repository) GetByDisplayName(ctx context.Context, displayName string) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where("u.display_name = ?", displayName).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user with display name %s", displayName)
		}
		return nil, apperr.Store("failed to get user by display name", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// Touch updates the user's last activity timestamp
func (r *Repository) Touch(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("last_active_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Store("failed to touch user", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperr.Store("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound("user %s", id)
	}

	return nil
}

// Upgrade records the registered profile fields. The service decides the
// kind; the kind column is only ever written forward, never back.
func (r *Repository) Upgrade(ctx context.Context, id uuid.UUID, p UpgradeParams) (*User, error) {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("kind = ?", string(p.Kind)).
		Set("email = ?", p.Email).
		Set("display_name = ?", p.DisplayName).
		Set("subscribed_weekly = ?", p.SubscribedWeekly).
		Where("id = ?", id)
	if p.PasswordHash != nil {
		q = q.Set("password_hash = ?", *p.PasswordHash)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("email %s already exists", p.Email)
		}
		return nil, apperr.Store("failed to upgrade user", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apperr.Store("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apperr.NotFound("user %s", id)
	}

	return r.GetByID(ctx, id)
}

// MarkGuidanceGenerated records when the user last received fresh guidance
func (r *Repository) MarkGuidanceGenerated(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("last_guidance_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperr.Store("failed to mark guidance generated", err)
	}
	return nil
}

// PurgeAbandoned deletes anonymous users inactive since cutoff that own no
// answers and no guidance. Dependent rows would cascade, but the NOT EXISTS
// guards mean eligible users never have any.
func (r *Repository) PurgeAbandoned(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.NewDelete().
		Model((*database.User)(nil)).
		Where("u.kind = ?", string(KindAnonymous)).
		Where("u.last_active_at <= ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM answers a WHERE a.user_id = u.id)").
		Where("NOT EXISTS (SELECT 1 FROM guidances g WHERE g.user_id = u.id)").
		Exec(ctx)
	if err != nil {
		return 0, apperr.Store("failed to purge abandoned users", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.Store("failed to get rows affected", err)
	}

	return int(rowsAffected), nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	u := &User{
		ID:               dbu.ID,
		Kind:             Kind(dbu.Kind),
		SubscribedWeekly: dbu.SubscribedWeekly,
		CreatedAt:        dbu.CreatedAt,
		LastActiveAt:     dbu.LastActiveAt,
		LastGuidanceAt:   dbu.LastGuidanceAt,
	}
	if dbu.DisplayName != nil {
		u.DisplayName = *dbu.DisplayName
	}
	if dbu.Email != nil {
		u.Email = *dbu.Email
	}
	if dbu.PasswordHash != nil {
		u.PasswordHash = *dbu.PasswordHash
	}
	return u
}
