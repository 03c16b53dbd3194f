package auth

import (
	"crypto/rsa"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenURI is used when the key file does not name a token endpoint.
const DefaultTokenURI = "https://oauth2.googleapis.com/token"

// ServiceAccountKey is the JSON key file issued for a service account.
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// ParseKey decodes raw key JSON and checks the signing key is usable.
func ParseKey(raw []byte) (*ServiceAccountKey, *rsa.PrivateKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, nil, &KeyFormatError{Reason: "malformed JSON", Err: err}
	}

	if strings.TrimSpace(key.ClientEmail) == "" {
		return nil, nil, &KeyFormatError{Reason: "client_email is missing"}
	}
	if strings.TrimSpace(key.PrivateKey) == "" {
		return nil, nil, &KeyFormatError{Reason: "private_key is missing"}
	}
	if key.TokenURI == "" {
		key.TokenURI = DefaultTokenURI
	}

	// Keys pasted into env vars often carry literal "\n" sequences.
	pem := strings.ReplaceAll(key.PrivateKey, `\n`, "\n")
	signer, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, nil, &KeyFormatError{Reason: "private_key is not a PEM encoded RSA key", Err: err}
	}

	return &key, signer, nil
}
