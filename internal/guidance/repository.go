package guidance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/database"
)

// Repository persists guidance rows. History is append-only; nothing here
// deletes.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// LatestDaily returns the most recent is_daily guidance for the user, or nil
// when none exists yet.
func (r *Repository) LatestDaily(ctx context.Context, userID uuid.UUID) (*Guidance, error) {
	dbGuidance := new(database.Guidance)
	err := r.db.NewSelect().
		Model(dbGuidance).
		Where("g.user_id = ?", userID).
		Where("g.is_daily = ?", true).
		Order("g.generated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("failed to get latest guidance", err)
	}

	return mapDBGuidanceToModel(dbGuidance), nil
}

// Insert appends a new guidance row
func (r *Repository) Insert(ctx context.Context, g *Guidance) error {
	dbGuidance := &database.Guidance{
		ID:          g.ID,
		UserID:      g.UserID,
		Text:        g.Text,
		IsDaily:     g.IsDaily,
		GeneratedAt: g.GeneratedAt,
	}

	_, err := r.db.NewInsert().
		Model(dbGuidance).
		Exec(ctx)
	if err != nil {
		return apperr.Store("failed to insert guidance", err)
	}

	return nil
}

// RecentTexts returns up to limit guidance texts for the user, newest first
func (r *Repository) RecentTexts(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	var texts []string
	err := r.db.NewSelect().
		Model((*database.Guidance)(nil)).
		Column("g.text").
		Where("g.user_id = ?", userID).
		Order("g.generated_at DESC").
		Limit(limit).
		Scan(ctx, &texts)
	if err != nil {
		return nil, apperr.Store("failed to list recent guidance", err)
	}

	return texts, nil
}

func mapDBGuidanceToModel(dbg *database.Guidance) *Guidance {
	return &Guidance{
		ID:          dbg.ID,
		UserID:      dbg.UserID,
		Text:        dbg.Text,
		IsDaily:     dbg.IsDaily,
		GeneratedAt: dbg.GeneratedAt,
	}
}
