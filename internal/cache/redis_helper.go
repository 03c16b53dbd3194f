package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/docsync/internal/auth"
	"github.com/andresuchdata/docsync/internal/config"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// NewTokenStore returns the store backing the credential cache: Redis when
// caching is enabled, process memory otherwise.
func NewTokenStore(cfg config.CacheConfig) (auth.Store, func() error, error) {
	if !cfg.Enabled {
		return auth.NewMemoryStore(), func() error { return nil }, nil
	}

	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	return auth.NewRedisStore(client, cfg.KeyPrefix), client.Close, nil
}

// NewRedisClient connects and pings once so a bad address fails at startup.
func NewRedisClient(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}

	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
