package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kassandra-app/kassandra/internal/apperr"
)

// ErrTokenNotFound means the presented token has no binding in the store.
var ErrTokenNotFound = errors.New("session token not found")

// RedisRepository maps hashed session tokens to user ids. Entries carry one
// long fixed TTL; nothing refreshes or rotates them.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

// hashToken hashes a token for storage, the raw value never touches the store
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func sessionKey(tokenHash string) string {
	return fmt.Sprintf("session:%s", tokenHash)
}

// Bind associates a token with a user id
func (r *RedisRepository) Bind(ctx context.Context, token string, userID uuid.UUID) error {
	key := sessionKey(hashToken(token))

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    userID.String(),
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Store("failed to bind session token", err)
	}

	return nil
}

// Resolve returns the user id bound to a token
func (r *RedisRepository) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	key := sessionKey(hashToken(token))

	userIDStr, err := r.client.HGet(ctx, key, "user_id").Result()
	if err == redis.Nil {
		return uuid.Nil, ErrTokenNotFound
	}
	if err != nil {
		return uuid.Nil, apperr.Store("failed to resolve session token", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		// A corrupt binding is indistinguishable from a missing one to
		// the caller; it will self-heal.
		return uuid.Nil, ErrTokenNotFound
	}

	return userID, nil
}
