// Package assessment drives a user through the question catalog: the answer
// ledger records choices idempotently, the progression engine computes what
// to ask next.
package assessment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/catalog"
	"github.com/kassandra-app/kassandra/internal/identity"
)

// AnsweredQuestion is one answered catalog entry with the resolved texts.
type AnsweredQuestion struct {
	QuestionID int64     `bun:"question_id" json:"question_id"`
	Question   string    `bun:"question" json:"question"`
	ChoiceID   int64     `bun:"choice_id" json:"choice_id"`
	Choice     string    `bun:"choice" json:"choice"`
	Metadata   string    `bun:"metadata" json:"metadata,omitempty"`
	AnsweredAt time.Time `bun:"answered_at" json:"answered_at"`
}

// Ledger abstracts answer persistence. *Repository is the production
// implementation.
type Ledger interface {
	UpsertAnswer(ctx context.Context, userID uuid.UUID, questionID, choiceID int64, at time.Time) error
	FirstUnanswered(ctx context.Context, userID uuid.UUID) (*catalog.Question, error)
	ListAnswered(ctx context.Context, userID uuid.UUID) ([]AnsweredQuestion, error)
}

// Catalog is the slice of the question catalog the service validates against.
type Catalog interface {
	GetQuestion(ctx context.Context, id int64) (*catalog.Question, error)
	GetChoice(ctx context.Context, id int64) (*catalog.Choice, error)
}

// UserSource resolves user ids so submissions for unknown users fail fast.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

type Service struct {
	ledger  Ledger
	catalog Catalog
	users   UserSource
	now     func() time.Time
}

func NewService(ledger Ledger, cat Catalog, users UserSource) *Service {
	return &Service{
		ledger:  ledger,
		catalog: cat,
		users:   users,
		now:     time.Now,
	}
}

// RecordAnswer upserts the user's choice for a question. Resubmission
// overwrites; retries are safe. The choice must belong to the question.
func (s *Service) RecordAnswer(ctx context.Context, userID uuid.UUID, questionID, choiceID int64) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}

	if _, err := s.catalog.GetQuestion(ctx, questionID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("question %d does not exist", questionID)
		}
		return err
	}

	choice, err := s.catalog.GetChoice(ctx, choiceID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("choice %d does not exist", choiceID)
		}
		return err
	}
	if choice.QuestionID != questionID {
		return apperr.Validation("choice %d does not belong to question %d", choiceID, questionID)
	}

	return s.ledger.UpsertAnswer(ctx, userID, questionID, choiceID, s.now())
}

// NextQuestion returns the first catalog question the user has not answered,
// or nil when the assessment is complete. A pure read: repeated calls without
// intervening answers return the same result.
func (s *Service) NextQuestion(ctx context.Context, userID uuid.UUID) (*catalog.Question, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	return s.ledger.FirstUnanswered(ctx, userID)
}

// Answers lists everything the user has answered so far, in catalog order.
func (s *Service) Answers(ctx context.Context, userID uuid.UUID) ([]AnsweredQuestion, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	return s.ledger.ListAnswered(ctx, userID)
}
