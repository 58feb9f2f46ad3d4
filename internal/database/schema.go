package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// schema is applied in order on startup. Answers carry a composite primary
// key on (user_id, question_id) so submissions upsert instead of appending;
// answers and guidances cascade when a user is deleted.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		display_name TEXT,
		email TEXT,
		password_hash TEXT,
		kind TEXT NOT NULL DEFAULT 'anonymous',
		subscribed_weekly BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_active_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_guidance_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email) WHERE email IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS questions (
		id BIGINT PRIMARY KEY,
		text TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'general'
	)`,
	`CREATE TABLE IF NOT EXISTS choices (
		id BIGINT PRIMARY KEY,
		question_id BIGINT NOT NULL REFERENCES questions(id),
		text TEXT NOT NULL,
		metadata TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS choices_question_id_idx ON choices (question_id)`,
	`CREATE TABLE IF NOT EXISTS answers (
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		question_id BIGINT NOT NULL REFERENCES questions(id),
		choice_id BIGINT NOT NULL REFERENCES choices(id),
		answered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, question_id)
	)`,
	`CREATE TABLE IF NOT EXISTS guidances (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		is_daily BOOLEAN NOT NULL DEFAULT TRUE,
		generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS guidances_user_daily_idx ON guidances (user_id, generated_at DESC) WHERE is_daily`,
}

// CreateTables applies the schema. Safe to run on every startup.
func CreateTables(ctx context.Context, db *bun.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
