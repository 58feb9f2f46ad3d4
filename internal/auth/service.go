package auth

import (
	"context"
	"time"

	"github.com/kassandra-app/kassandra/internal/identity"
	"github.com/kassandra-app/kassandra/internal/logging"
)

// Service runs logins through the configured strategy and issues access
// tokens for the result.
type Service struct {
	strategy       Strategy
	tokens         *PasetoService
	logger         *logging.Logger
	accessDuration time.Duration
}

func NewService(strategy Strategy, tokens *PasetoService, logger *logging.Logger, accessDuration time.Duration) *Service {
	return &Service{
		strategy:       strategy,
		tokens:         tokens,
		logger:         logger,
		accessDuration: accessDuration,
	}
}

// Login authenticates via the strategy and returns the user with a fresh
// access token.
func (s *Service) Login(ctx context.Context, identifier, secret string) (*identity.User, string, error) {
	user, err := s.strategy.Login(ctx, identifier, secret)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.CreateToken(user.ID, string(user.Kind), s.accessDuration)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user logged in", "user_id", user.ID, "kind", user.Kind)

	return user, token, nil
}
