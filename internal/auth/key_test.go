package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey_PKCS8AndPKCS1(t *testing.T) {
	rsaKey := newRSAKey(t)

	for name, pemText := range map[string]string{
		"pkcs8": pkcs8PEM(t, rsaKey),
		"pkcs1": pkcs1PEM(rsaKey),
	} {
		t.Run(name, func(t *testing.T) {
			key, signer, err := ParseKey(keyJSON(t, pemText, "https://example.test/token"))
			require.NoError(t, err)
			assert.Equal(t, "sync@proj.iam.gserviceaccount.com", key.ClientEmail)
			assert.Equal(t, rsaKey.N, signer.N)
		})
	}
}

func TestParseKey_EscapedNewlines(t *testing.T) {
	pemText := strings.ReplaceAll(pkcs8PEM(t, newRSAKey(t)), "\n", `\n`)

	_, _, err := ParseKey(keyJSON(t, pemText, ""))
	require.NoError(t, err)
}

func TestParseKey_DefaultsTokenURI(t *testing.T) {
	key, _, err := ParseKey(keyJSON(t, pkcs8PEM(t, newRSAKey(t)), ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenURI, key.TokenURI)
}

func TestParseKey_Invalid(t *testing.T) {
	validPEM := pkcs8PEM(t, newRSAKey(t))

	tests := []struct {
		name string
		raw  []byte
	}{
		{"malformed json", []byte("{not json")},
		{"missing email", []byte(`{"private_key":"x"}`)},
		{"missing private key", []byte(`{"client_email":"a@b"}`)},
		{"not pem", keyJSON(t, "garbage", "")},
		{"truncated pem", keyJSON(t, validPEM[:len(validPEM)/2], "")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseKey(tc.raw)
			require.Error(t, err)

			var kerr *KeyFormatError
			assert.True(t, errors.As(err, &kerr))
			assert.True(t, IsFatal(err))
		})
	}
}
