package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func pkcs8PEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func pkcs1PEM(key *rsa.PrivateKey) string {
	der := x509.MarshalPKCS1PrivateKey(key)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}))
}

func keyJSON(t *testing.T, privatePEM, tokenURI string) []byte {
	t.Helper()
	raw, err := json.Marshal(ServiceAccountKey{
		Type:         "service_account",
		ProjectID:    "proj",
		PrivateKeyID: "kid-123",
		PrivateKey:   privatePEM,
		ClientEmail:  "sync@proj.iam.gserviceaccount.com",
		TokenURI:     tokenURI,
	})
	require.NoError(t, err)
	return raw
}
