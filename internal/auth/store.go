package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

const tokenKey = "access_token"

// Store holds at most one token and replaces it as a whole.
type Store interface {
	Load(ctx context.Context) (Token, bool, error)
	Save(ctx context.Context, tok Token, ttl time.Duration) error
}

// MemoryStore keeps the token in process memory.
type MemoryStore struct {
	cache *ttlcache.Cache[string, Token]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: ttlcache.New[string, Token](
			ttlcache.WithDisableTouchOnHit[string, Token](),
		),
	}
}

func (s *MemoryStore) Load(_ context.Context) (Token, bool, error) {
	item := s.cache.Get(tokenKey)
	if item == nil {
		return Token{}, false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Save(_ context.Context, tok Token, ttl time.Duration) error {
	s.cache.Set(tokenKey, tok, ttl)
	return nil
}

// RedisStore shares one token between processes.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	key := tokenKey
	if prefix != "" {
		key = prefix + ":gcs:" + tokenKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (Token, bool, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(payload, &tok); err != nil {
		return Token{}, false, fmt.Errorf("decode cached token: %w", err)
	}
	return tok, true, nil
}

func (s *RedisStore) Save(ctx context.Context, tok Token, ttl time.Duration) error {
	payload, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
