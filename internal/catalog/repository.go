package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/database"
)

// Repository reads the question catalog. The catalog is write-once via Seed.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// List returns all questions with their choices in ascending id order
func (r *Repository) List(ctx context.Context) ([]*Question, error) {
	var dbQuestions []*database.Question
	err := r.db.NewSelect().
		Model(&dbQuestions).
		Relation("Choices", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		}).
		Order("q.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperr.Store("failed to list questions", err)
	}

	questions := make([]*Question, 0, len(dbQuestions))
	for _, dbq := range dbQuestions {
		questions = append(questions, mapDBQuestionToModel(dbq))
	}
	return questions, nil
}

// GetQuestion retrieves a single question with its choices
func (r *Repository) GetQuestion(ctx context.Context, id int64) (*Question, error) {
	dbQuestion := new(database.Question)
	err := r.db.NewSelect().
		Model(dbQuestion).
		Relation("Choices", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		}).
		Where("q.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("question %d", id)
		}
		return nil, apperr.Store("failed to get question", err)
	}

	return mapDBQuestionToModel(dbQuestion), nil
}

// GetChoice retrieves a single choice, including which question owns it
func (r *Repository) GetChoice(ctx context.Context, id int64) (*Choice, error) {
	dbChoice := new(database.Choice)
	err := r.db.NewSelect().
		Model(dbChoice).
		Where("c.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("choice %d", id)
		}
		return nil, apperr.Store("failed to get choice", err)
	}

	choice := mapDBChoiceToModel(dbChoice)
	return &choice, nil
}

// Seed inserts the catalog. Existing rows are left untouched, so re-running
// the seeder is harmless.
func (r *Repository) Seed(ctx context.Context, questions []*Question) error {
	for _, q := range questions {
		dbQuestion := &database.Question{
			ID:       q.ID,
			Text:     q.Text,
			Category: q.Category,
		}
		_, err := r.db.NewInsert().
			Model(dbQuestion).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return apperr.Store("failed to seed question", err)
		}

		for _, c := range q.Choices {
			dbChoice := &database.Choice{
				ID:         c.ID,
				QuestionID: q.ID,
				Text:       c.Text,
			}
			if c.Metadata != "" {
				meta := c.Metadata
				dbChoice.Metadata = &meta
			}
			_, err := r.db.NewInsert().
				Model(dbChoice).
				On("CONFLICT (id) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return apperr.Store("failed to seed choice", err)
			}
		}
	}
	return nil
}

func mapDBQuestionToModel(dbq *database.Question) *Question {
	q := &Question{
		ID:       dbq.ID,
		Text:     dbq.Text,
		Category: dbq.Category,
		Choices:  make([]Choice, 0, len(dbq.Choices)),
	}
	for _, dbc := range dbq.Choices {
		q.Choices = append(q.Choices, mapDBChoiceToModel(dbc))
	}
	return q
}

func mapDBChoiceToModel(dbc *database.Choice) Choice {
	c := Choice{
		ID:         dbc.ID,
		QuestionID: dbc.QuestionID,
		Text:       dbc.Text,
	}
	if dbc.Metadata != nil {
		c.Metadata = *dbc.Metadata
	}
	return c
}
