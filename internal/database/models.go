package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persistence model for a visitor identity, anonymous or upgraded.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               uuid.UUID  `bun:"id,pk,type:uuid"`
	DisplayName      *string    `bun:"display_name"`
	Email            *string    `bun:"email"`
	PasswordHash     *string    `bun:"password_hash"`
	Kind             string     `bun:"kind,notnull"`
	SubscribedWeekly bool       `bun:"subscribed_weekly,notnull"`
	CreatedAt        time.Time  `bun:"created_at,notnull"`
	LastActiveAt     time.Time  `bun:"last_active_at,notnull"`
	LastGuidanceAt   *time.Time `bun:"last_guidance_at"`
}

// Question is a catalog entry. The id is ordinal and defines traversal order.
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID       int64     `bun:"id,pk"`
	Text     string    `bun:"text,notnull"`
	Category string    `bun:"category,notnull"`
	Choices  []*Choice `bun:"rel:has-many,join:id=question_id"`
}

// Choice belongs to exactly one question. Metadata carries trait hints
// consumed by the guidance generator.
type Choice struct {
	bun.BaseModel `bun:"table:choices,alias:c"`

	ID         int64   `bun:"id,pk"`
	QuestionID int64   `bun:"question_id,notnull"`
	Text       string  `bun:"text,notnull"`
	Metadata   *string `bun:"metadata"`
}

// Answer holds the latest choice per (user, question). The composite primary
// key is the upsert target.
type Answer struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	UserID     uuid.UUID `bun:"user_id,pk,type:uuid"`
	QuestionID int64     `bun:"question_id,pk"`
	ChoiceID   int64     `bun:"choice_id,notnull"`
	AnsweredAt time.Time `bun:"answered_at,notnull"`
}

// Guidance rows are append-only history; the newest is_daily row within the
// cooldown window is the "current" one.
type Guidance struct {
	bun.BaseModel `bun:"table:guidances,alias:g"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	UserID      uuid.UUID `bun:"user_id,notnull,type:uuid"`
	Text        string    `bun:"text,notnull"`
	IsDaily     bool      `bun:"is_daily,notnull"`
	GeneratedAt time.Time `bun:"generated_at,notnull"`
}
