package assessment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/catalog"
	"github.com/kassandra-app/kassandra/internal/database"
)

// Repository persists answers and runs the progression query.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// UpsertAnswer records the latest choice for (user, question). The composite
// primary key makes concurrent submissions for the same pair collapse into
// one row; no application-level locking.
func (r *Repository) UpsertAnswer(ctx context.Context, userID uuid.UUID, questionID, choiceID int64, at time.Time) error {
	dbAnswer := &database.Answer{
		UserID:     userID,
		QuestionID: questionID,
		ChoiceID:   choiceID,
		AnsweredAt: at,
	}

	_, err := r.db.NewInsert().
		Model(dbAnswer).
		On("CONFLICT (user_id, question_id) DO UPDATE").
		Set("choice_id = EXCLUDED.choice_id").
		Set("answered_at = EXCLUDED.answered_at").
		Exec(ctx)
	if err != nil {
		return apperr.Store("failed to upsert answer", err)
	}

	return nil
}

// FirstUnanswered returns the lowest-id catalog question with no answer row
// for the user, or nil when the user has answered everything (or the catalog
// is empty). One anti-join query, not per-question round trips.
func (r *Repository) FirstUnanswered(ctx context.Context, userID uuid.UUID) (*catalog.Question, error) {
	dbQuestion := new(database.Question)
	err := r.db.NewSelect().
		Model(dbQuestion).
		Relation("Choices", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		}).
		Where("NOT EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id AND a.user_id = ?)", userID).
		Order("q.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("failed to find next question", err)
	}

	q := &catalog.Question{
		ID:       dbQuestion.ID,
		Text:     dbQuestion.Text,
		Category: dbQuestion.Category,
		Choices:  make([]catalog.Choice, 0, len(dbQuestion.Choices)),
	}
	for _, dbc := range dbQuestion.Choices {
		c := catalog.Choice{
			ID:         dbc.ID,
			QuestionID: dbc.QuestionID,
			Text:       dbc.Text,
		}
		if dbc.Metadata != nil {
			c.Metadata = *dbc.Metadata
		}
		q.Choices = append(q.Choices, c)
	}
	return q, nil
}

// ListAnswered returns the user's answers joined with question and choice
// text, in catalog order. Feeds the guidance context.
func (r *Repository) ListAnswered(ctx context.Context, userID uuid.UUID) ([]AnsweredQuestion, error) {
	var rows []AnsweredQuestion
	err := r.db.NewSelect().
		TableExpr("answers AS a").
		ColumnExpr("a.question_id AS question_id").
		ColumnExpr("q.text AS question").
		ColumnExpr("a.choice_id AS choice_id").
		ColumnExpr("c.text AS choice").
		ColumnExpr("COALESCE(c.metadata, '') AS metadata").
		ColumnExpr("a.answered_at AS answered_at").
		Join("JOIN questions AS q ON q.id = a.question_id").
		Join("JOIN choices AS c ON c.id = a.choice_id").
		Where("a.user_id = ?", userID).
		OrderExpr("a.question_id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperr.Store("failed to list answers", err)
	}

	return rows, nil
}
