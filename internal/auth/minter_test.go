package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinter_Mint(t *testing.T) {
	rsaKey := newRSAKey(t)
	now := time.Now().Truncate(time.Second)

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))

		parsed, err := jwt.Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (any, error) {
			return &rsaKey.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		assert.Equal(t, "kid-123", parsed.Header["kid"])
		assert.Equal(t, "JWT", parsed.Header["typ"])
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "sync@proj.iam.gserviceaccount.com", claims["iss"])
		assert.Equal(t, "scope-a", claims["scope"])
		assert.Equal(t, srvURL, claims["aud"])
		assert.Equal(t, float64(now.Unix()), claims["iat"])
		assert.Equal(t, float64(now.Add(time.Hour).Unix()), claims["exp"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":1800}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	m, err := NewMinter(keyJSON(t, pkcs8PEM(t, rsaKey), srv.URL), "scope-a",
		WithHTTPClient(srv.Client()),
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	tok, err := m.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, now.Add(30*time.Minute), tok.Expiry)
}

func TestMinter_DefaultExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok-1"}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m, err := NewMinter(keyJSON(t, pkcs8PEM(t, newRSAKey(t)), srv.URL), DefaultScope,
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	tok, err := m.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), tok.Expiry)
}

func TestMinter_ExchangeRejected(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	m, err := NewMinter(keyJSON(t, pkcs8PEM(t, newRSAKey(t)), srv.URL), DefaultScope)
	require.NoError(t, err)

	_, err = m.Mint(context.Background())
	require.Error(t, err)

	var aerr *AuthExchangeError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, http.StatusBadRequest, aerr.StatusCode)
	assert.Contains(t, aerr.Body, "invalid_grant")
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMinter_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m, err := NewMinter(keyJSON(t, pkcs8PEM(t, newRSAKey(t)), url), DefaultScope)
	require.NoError(t, err)

	_, err = m.Mint(context.Background())
	require.Error(t, err)

	var terr *TransportError
	assert.True(t, errors.As(err, &terr))
	assert.False(t, IsFatal(err))
}

func TestNewMinter_RejectsBadKey(t *testing.T) {
	_, err := NewMinter([]byte(`{"client_email":"a@b","private_key":"nope"}`), DefaultScope)

	var kerr *KeyFormatError
	assert.True(t, errors.As(err, &kerr))
}
