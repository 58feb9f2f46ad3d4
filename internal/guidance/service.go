// Package guidance gates generation of the daily guidance text behind a
// per-user cooldown: a read-through cache over the guidance history.
package guidance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kassandra-app/kassandra/internal/assessment"
	"github.com/kassandra-app/kassandra/internal/identity"
	"github.com/kassandra-app/kassandra/internal/logging"
)

const historyLimit = 5

// Store abstracts guidance persistence. *Repository is the production
// implementation.
type Store interface {
	LatestDaily(ctx context.Context, userID uuid.UUID) (*Guidance, error)
	Insert(ctx context.Context, g *Guidance) error
	RecentTexts(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
}

// AnswerSource supplies the user's answer list for the generator context.
type AnswerSource interface {
	ListAnswered(ctx context.Context, userID uuid.UUID) ([]assessment.AnsweredQuestion, error)
}

// UserSource resolves users and records the last generation time.
type UserSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	MarkGuidanceGenerated(ctx context.Context, id uuid.UUID, at time.Time) error
}

type Service struct {
	store    Store
	answers  AnswerSource
	users    UserSource
	logger   *logging.Logger
	cooldown time.Duration
	now      func() time.Time

	// Per-user serialization of the check-then-insert sequence so two
	// concurrent requests cannot both invoke the generator. In-process
	// only; a restart drops the locks and most-recent-wins still holds.
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

func NewService(store Store, answers AnswerSource, users UserSource, logger *logging.Logger, cooldown time.Duration) *Service {
	return &Service{
		store:    store,
		answers:  answers,
		users:    users,
		logger:   logger,
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (s *Service) userLock(userID uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetOrGenerate returns the current daily guidance for the user, invoking gen
// only when the cooldown window has elapsed. Within the window the cached row
// is returned unchanged and gen is never called.
func (s *Service) GetOrGenerate(ctx context.Context, userID uuid.UUID, gen Generator) (*Guidance, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	latest, err := s.store.LatestDaily(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest != nil && s.now().Sub(latest.GeneratedAt) < s.cooldown {
		return latest, nil
	}

	gc, err := s.buildContext(ctx, user)
	if err != nil {
		return nil, err
	}

	text, err := gen.Generate(ctx, gc)
	if err != nil {
		return nil, fmt.Errorf("guidance generation failed: %w", err)
	}

	g := &Guidance{
		ID:          uuid.New(),
		UserID:      userID,
		Text:        text,
		IsDaily:     true,
		GeneratedAt: s.now(),
	}
	if err := s.store.Insert(ctx, g); err != nil {
		return nil, err
	}

	if err := s.users.MarkGuidanceGenerated(ctx, userID, g.GeneratedAt); err != nil {
		// The guidance row is the source of truth for the cooldown;
		// last_guidance_at is informational.
		s.logger.Warn("failed to record last guidance time", "user_id", userID, "error", err)
	}

	return g, nil
}

// buildContext aggregates the generator input fresh from the store
func (s *Service) buildContext(ctx context.Context, user *identity.User) (Context, error) {
	answers, err := s.answers.ListAnswered(ctx, user.ID)
	if err != nil {
		return Context{}, err
	}

	history, err := s.store.RecentTexts(ctx, user.ID, historyLimit)
	if err != nil {
		return Context{}, err
	}

	return Context{
		Profile: BuildProfile(user, answers),
		Answers: answers,
		History: history,
	}, nil
}
