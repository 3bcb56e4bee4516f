package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks issued tokens so they can be revoked before expiry.
type SessionStore interface {
	Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	Active(ctx context.Context, sessionID string) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
}

// NopSessionStore treats every well-signed, unexpired token as active.
type NopSessionStore struct{}

func (NopSessionStore) Save(context.Context, string, string, time.Duration) error { return nil }
func (NopSessionStore) Active(context.Context, string) (bool, error)              { return true, nil }
func (NopSessionStore) Revoke(context.Context, string) error                      { return nil }

const sessionKeyPrefix = "auth_"

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore stores sessions as "auth_<session id>" -> user id with the token's TTL.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, userID, ttl).Err(); err != nil {
		return fmt.Errorf("save session failed: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Active(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup session failed: %w", err)
	}
	return true, nil
}

func (s *redisSessionStore) Revoke(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("revoke session failed: %w", err)
	}
	return nil
}
