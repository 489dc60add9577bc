package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps sessions in Redis with a TTL, so tokens survive
// restarts and expire without any sweeper. Two keys exist per session: the
// token mapping and a per-user reverse mapping used to evict the previous
// session on login.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *RedisSessionStore) Create(ctx context.Context, username string) (string, error) {
	old, err := s.rdb.Get(ctx, userSessionKey(username)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis get previous session: %w", err)
	}
	if old != "" {
		if err := s.rdb.Del(ctx, sessionKey(old)).Err(); err != nil {
			return "", fmt.Errorf("redis evict previous session: %w", err)
		}
	}

	token := uuid.New().String()
	if err := s.rdb.Set(ctx, sessionKey(token), username, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set session: %w", err)
	}
	if err := s.rdb.Set(ctx, userSessionKey(username), token, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set user session: %w", err)
	}
	return token, nil
}

func (s *RedisSessionStore) Resolve(ctx context.Context, token string) (string, error) {
	username, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get session: %w", err)
	}
	return username, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, token string) error {
	username, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get session: %w", err)
	}
	if err := s.rdb.Del(ctx, sessionKey(token), userSessionKey(username)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// --- Key builders ---

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func userSessionKey(username string) string {
	return fmt.Sprintf("usersession:%s", username)
}
