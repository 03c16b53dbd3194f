package auth

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/rs/zerolog"
)

// RefreshMargin is the minimum remaining validity of a token handed out.
const RefreshMargin = 5 * time.Minute

// TokenSource hands out bearer tokens for the destination store.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Issuer mints a fresh token. *Minter implements it.
type Issuer interface {
	Mint(ctx context.Context) (Token, error)
}

// TokenCache returns the stored token while it is fresh and mints a new
// one otherwise. Concurrent callers may both mint; the last save wins.
type TokenCache struct {
	issuer Issuer
	store  Store
	now    func() time.Time
	log    zerolog.Logger

	mu    sync.Mutex
	mints int
}

type CacheOption func(*TokenCache)

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *TokenCache) { c.now = now }
}

func WithCacheLogger(l zerolog.Logger) CacheOption {
	return func(c *TokenCache) { c.log = l }
}

func NewTokenCache(issuer Issuer, store Store, opts ...CacheOption) *TokenCache {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &TokenCache{
		issuer: issuer,
		store:  store,
		now:    time.Now,
		log:    logger.Log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TokenCache) Token(ctx context.Context) (string, error) {
	now := c.now()

	tok, ok, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("token store unavailable, minting a new token")
	} else if ok && tok.Expiry.Sub(now) > RefreshMargin {
		return tok.AccessToken, nil
	}

	tok, err = c.issuer.Mint(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.mints++
	c.mu.Unlock()

	if ttl := tok.Expiry.Sub(now); ttl > 0 {
		if err := c.store.Save(ctx, tok, ttl); err != nil {
			c.log.Warn().Err(err).Msg("failed to store minted token")
		}
	}

	c.log.Debug().Time("expiry", tok.Expiry).Msg("minted new access token")
	return tok.AccessToken, nil
}

// Mints returns how many exchanges this cache has performed.
func (c *TokenCache) Mints() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mints
}
