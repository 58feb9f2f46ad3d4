// Package core assembles the assessment engine behind a single facade for
// the presentation layer.
package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kassandra-app/kassandra/internal/assessment"
	"github.com/kassandra-app/kassandra/internal/auth"
	"github.com/kassandra-app/kassandra/internal/catalog"
	"github.com/kassandra-app/kassandra/internal/guidance"
	"github.com/kassandra-app/kassandra/internal/identity"
	"github.com/kassandra-app/kassandra/internal/session"
)

// Catalog is the slice of the question catalog the engine exposes.
type Catalog interface {
	List(ctx context.Context) ([]*catalog.Question, error)
}

type Engine struct {
	sessions    *session.Resolver
	assessments *assessment.Service
	guidances   *guidance.Service
	identities  *identity.Service
	catalog     Catalog
}

func NewEngine(sessions *session.Resolver, assessments *assessment.Service, guidances *guidance.Service, identities *identity.Service, cat Catalog) *Engine {
	return &Engine{
		sessions:    sessions,
		assessments: assessments,
		guidances:   guidances,
		identities:  identities,
		catalog:     cat,
	}
}

// ResolveSession maps an inbound opaque token (possibly empty) to a user,
// returning the token the caller should carry forward.
func (e *Engine) ResolveSession(ctx context.Context, token string) (*identity.User, string, error) {
	return e.sessions.Resolve(ctx, token)
}

// GetUser returns the user by id, used when an access token names the
// identity directly instead of a session cookie.
func (e *Engine) GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	return e.identities.Get(ctx, id)
}

// ListQuestions returns the full question catalog in order.
func (e *Engine) ListQuestions(ctx context.Context) ([]*catalog.Question, error) {
	return e.catalog.List(ctx)
}

// NextQuestion returns the first unanswered catalog question, nil when done.
func (e *Engine) NextQuestion(ctx context.Context, userID uuid.UUID) (*catalog.Question, error) {
	return e.assessments.NextQuestion(ctx, userID)
}

// RecordAnswer records (or overwrites) the user's choice for a question.
func (e *Engine) RecordAnswer(ctx context.Context, userID uuid.UUID, questionID, choiceID int64) error {
	return e.assessments.RecordAnswer(ctx, userID, questionID, choiceID)
}

// GetOrGenerateGuidance returns the cooldown-gated daily guidance.
func (e *Engine) GetOrGenerateGuidance(ctx context.Context, userID uuid.UUID, gen guidance.Generator) (*guidance.Guidance, error) {
	return e.guidances.GetOrGenerate(ctx, userID, gen)
}

// UpgradeToRegistered promotes an anonymous user. One-way. A non-empty
// secret is hashed and becomes the user's credential for the email login
// strategy.
func (e *Engine) UpgradeToRegistered(ctx context.Context, userID uuid.UUID, email, displayName, secret string, subscribedWeekly bool) (*identity.User, error) {
	var passwordHash *string
	if secret != "" {
		hash, err := auth.HashSecret(secret)
		if err != nil {
			return nil, err
		}
		passwordHash = &hash
	}

	return e.identities.UpgradeToRegistered(ctx, userID, email, displayName, passwordHash, subscribedWeekly)
}

// PurgeAbandoned sweeps dataless anonymous users inactive for threshold.
func (e *Engine) PurgeAbandoned(ctx context.Context, threshold time.Duration) (int, error) {
	return e.identities.PurgeAbandoned(ctx, threshold)
}
