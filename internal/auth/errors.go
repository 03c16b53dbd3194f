package auth

import (
	"errors"
	"fmt"
)

// KeyFormatError means the service-account key material cannot be used.
type KeyFormatError struct {
	Reason string
	Err    error
}

func (e *KeyFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid service account key: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid service account key: %s", e.Reason)
}

func (e *KeyFormatError) Unwrap() error { return e.Err }

// AuthExchangeError is a non-200 answer from the token endpoint.
type AuthExchangeError struct {
	StatusCode int
	Body       string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps a network failure talking to the token endpoint.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a credential failure that no retry can fix.
func IsFatal(err error) bool {
	var kerr *KeyFormatError
	var aerr *AuthExchangeError
	return errors.As(err, &kerr) || errors.As(err, &aerr)
}
