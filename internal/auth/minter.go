package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultScope grants read and write access to Cloud Storage objects.
const DefaultScope = "https://www.googleapis.com/auth/devstorage.read_write"

const (
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionTTL    = time.Hour
	defaultTokenTTL = time.Hour
)

// Token is a minted bearer credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	Expiry      time.Time `json:"expiry"`
}

// Minter exchanges a self-signed JWT assertion for an access token.
type Minter struct {
	key    *ServiceAccountKey
	signer *rsa.PrivateKey
	scope  string
	client *http.Client
	now    func() time.Time
}

type MinterOption func(*Minter)

func WithHTTPClient(c *http.Client) MinterOption {
	return func(m *Minter) { m.client = c }
}

func WithClock(now func() time.Time) MinterOption {
	return func(m *Minter) { m.now = now }
}

// NewMinter parses keyJSON up front so a bad key fails before any request.
func NewMinter(keyJSON []byte, scope string, opts ...MinterOption) (*Minter, error) {
	key, signer, err := ParseKey(keyJSON)
	if err != nil {
		return nil, err
	}

	m := &Minter{
		key:    key,
		signer: signer,
		scope:  scope,
		client: http.DefaultClient,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Key returns the parsed key material.
func (m *Minter) Key() *ServiceAccountKey {
	return m.key
}

// Assertion builds the signed JWT sent to the token endpoint.
func (m *Minter) Assertion() (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"iss":   m.key.ClientEmail,
		"scope": m.scope,
		"aud":   m.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if m.key.PrivateKeyID != "" {
		token.Header["kid"] = m.key.PrivateKeyID
	}

	signed, err := token.SignedString(m.signer)
	if err != nil {
		return "", &KeyFormatError{Reason: "signing assertion", Err: err}
	}
	return signed, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Mint performs one exchange. It never retries.
func (m *Minter) Mint(ctx context.Context) (Token, error) {
	assertion, err := m.Assertion()
	if err != nil {
		return Token{}, err
	}

	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.key.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &TransportError{Op: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return Token{}, &TransportError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, &TransportError{Op: "read token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return Token{}, &AuthExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, &AuthExchangeError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("undecodable response: %v", err)}
	}
	if tr.AccessToken == "" {
		return Token{}, &AuthExchangeError{StatusCode: resp.StatusCode, Body: "response has no access_token"}
	}

	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}

	return Token{
		AccessToken: tr.AccessToken,
		Expiry:      m.now().Add(ttl),
	}, nil
}
