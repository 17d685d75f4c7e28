package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key for shared token storage.
const redisKeyToken = "meridian:auth:token"

// TokenStore persists the session token between refreshes. Implementations
// return a zero Token (not an error) when no token is stored.
type TokenStore interface {
	Get(ctx context.Context) (Token, error)
	Set(ctx context.Context, token Token) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process memory. It is the default store.
type MemoryStore struct {
	mu    sync.RWMutex
	token Token
}

// NewMemoryStore creates an empty in-process token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored token, or a zero Token when none is set.
func (s *MemoryStore) Get(ctx context.Context) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// Set stores the token.
func (s *MemoryStore) Set(ctx context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear drops the stored token.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = Token{}
	return nil
}

// RedisStore shares the token across processes via Redis. The entry expires
// with the token, so a stale token is never served after its lifetime.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed token store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

// Get retrieves the shared token. Returns a zero Token when no token exists.
func (s *RedisStore) Get(ctx context.Context) (Token, error) {
	data, err := s.redis.Get(ctx, redisKeyToken).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Token{}, nil
		}
		return Token{}, fmt.Errorf("redis get token: %w", err)
	}

	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return Token{}, fmt.Errorf("unmarshal stored token: %w", err)
	}
	return token, nil
}

// Set stores the token with a TTL matching its remaining lifetime.
func (s *RedisStore) Set(ctx context.Context, token Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, redisKeyToken, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

// Clear removes the shared token.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, redisKeyToken).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}
