/**
 * @description
 * Redis-backed session store. Each session is one key whose value is the
 * operator id; the sliding expiry piggybacks on Redis key TTLs, so the
 * periodic sweep has nothing to do here.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: The Redis client library.
 * - github.com/google/uuid: Session tokens and operator identifiers.
 */
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so any service replica can resolve them.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store with the given TTL.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "autoprint:session"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisStore{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}

func (s *RedisStore) Create(ctx context.Context, operatorID uuid.UUID) (string, error) {
	token := uuid.New().String()
	if err := s.client.Set(ctx, s.key(token), operatorID.String(), s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisStore) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	value, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}

	operatorID, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt session value for token: %w", err)
	}

	// Refresh the sliding expiry. A failed refresh does not invalidate the
	// session; the key just keeps its previous TTL.
	s.client.Expire(ctx, s.key(token), s.ttl)

	return operatorID, nil
}

func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(token)).Err()
}

// Sweep is a no-op: Redis expires session keys natively.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}
