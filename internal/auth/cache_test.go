package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type countingIssuer struct {
	clock *fakeClock
	ttl   time.Duration
	calls int
	err   error
}

func (i *countingIssuer) Mint(context.Context) (Token, error) {
	i.calls++
	if i.err != nil {
		return Token{}, i.err
	}
	return Token{
		AccessToken: "tok-" + string(rune('0'+i.calls)),
		Expiry:      i.clock.Now().Add(i.ttl),
	}, nil
}

type brokenStore struct{}

func (brokenStore) Load(context.Context) (Token, bool, error) {
	return Token{}, false, errors.New("connection refused")
}

func (brokenStore) Save(context.Context, Token, time.Duration) error {
	return errors.New("connection refused")
}

// staticStore never expires entries on its own so the cache's margin check is what decides.
type staticStore struct {
	tok Token
	ok  bool
}

func (s *staticStore) Load(context.Context) (Token, bool, error) { return s.tok, s.ok, nil }

func (s *staticStore) Save(_ context.Context, tok Token, _ time.Duration) error {
	s.tok, s.ok = tok, true
	return nil
}

func TestTokenCache_ReusesWithinWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := &countingIssuer{clock: clock, ttl: time.Hour}
	cache := NewTokenCache(issuer, &staticStore{}, WithCacheClock(clock.Now), WithCacheLogger(zerolog.Nop()))

	ctx := context.Background()
	first, err := cache.Token(ctx)
	require.NoError(t, err)

	clock.Advance(54 * time.Minute)
	second, err := cache.Token(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, issuer.calls)
	assert.Equal(t, 1, cache.Mints())
}

func TestTokenCache_RefreshesInsideMargin(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := &countingIssuer{clock: clock, ttl: time.Hour}
	cache := NewTokenCache(issuer, &staticStore{}, WithCacheClock(clock.Now), WithCacheLogger(zerolog.Nop()))

	ctx := context.Background()
	first, err := cache.Token(ctx)
	require.NoError(t, err)

	// exactly five minutes left is not enough
	clock.Advance(55 * time.Minute)
	second, err := cache.Token(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, issuer.calls)
}

func TestTokenCache_StoreFailureFallsThroughToMint(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	issuer := &countingIssuer{clock: clock, ttl: time.Hour}
	cache := NewTokenCache(issuer, brokenStore{}, WithCacheClock(clock.Now), WithCacheLogger(zerolog.Nop()))

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestTokenCache_PropagatesMintError(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	issuer := &countingIssuer{clock: clock, err: &AuthExchangeError{StatusCode: 401, Body: "denied"}}
	cache := NewTokenCache(issuer, nil, WithCacheLogger(zerolog.Nop()))

	_, err := cache.Token(context.Background())
	assert.True(t, IsFatal(err))
	assert.Equal(t, 0, cache.Mints())
}

func TestTokenCache_OneExchangeAgainstTokenEndpoint(t *testing.T) {
	var exchanges int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		_, _ = w.Write([]byte(`{"access_token":"live","expires_in":3600}`))
	}))
	defer srv.Close()

	m, err := NewMinter(keyJSON(t, pkcs8PEM(t, newRSAKey(t)), srv.URL), DefaultScope)
	require.NoError(t, err)
	cache := NewTokenCache(m, NewMemoryStore(), WithCacheLogger(zerolog.Nop()))

	for i := 0; i < 5; i++ {
		tok, err := cache.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "live", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges))
}

func TestMemoryStore_Expires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, Token{AccessToken: "a"}, 20*time.Millisecond))
	tok, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", tok.AccessToken)

	time.Sleep(50 * time.Millisecond)
	_, ok, _ = store.Load(ctx)
	assert.False(t, ok)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	store := NewRedisStore(client, "docsync-test")
	ctx := context.Background()
	defer client.Del(ctx, store.key)

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Save(ctx, Token{AccessToken: "shared", Expiry: expiry}, time.Minute))

	tok, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "shared", tok.AccessToken)
	assert.True(t, expiry.Equal(tok.Expiry))
}
