package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	MethodServiceAccount = "service_account"
	MethodAmbient        = "ambient"
)

// Method describes which credential mode the process runs in.
type Method struct {
	Name        string `json:"method"`
	Description string `json:"description"`
}

// AmbientSource passes through to Application Default Credentials.
type AmbientSource struct {
	ts oauth2.TokenSource
}

func NewAmbientSource(ctx context.Context, scope string) (*AmbientSource, error) {
	ts, err := google.DefaultTokenSource(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("find default credentials: %w", err)
	}
	return &AmbientSource{ts: ts}, nil
}

func (a *AmbientSource) Token(_ context.Context) (string, error) {
	tok, err := a.ts.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", &AuthExchangeError{StatusCode: rerr.Response.StatusCode, Body: string(rerr.Body)}
		}
		return "", &TransportError{Op: "ambient token", Err: err}
	}
	return tok.AccessToken, nil
}

// Options selects and configures the credential mode.
type Options struct {
	KeyJSON    []byte
	Scope      string
	Store      Store
	HTTPClient *http.Client
}

// NewTokenSource picks the self-minted mode when key material is present
// and ambient credentials otherwise. The choice is fixed for the process.
func NewTokenSource(ctx context.Context, opts Options) (TokenSource, Method, error) {
	if len(opts.KeyJSON) == 0 {
		src, err := NewAmbientSource(ctx, opts.Scope)
		if err != nil {
			return nil, Method{}, err
		}
		return src, Method{
			Name:        MethodAmbient,
			Description: "Using application default credentials",
		}, nil
	}

	var minterOpts []MinterOption
	if opts.HTTPClient != nil {
		minterOpts = append(minterOpts, WithHTTPClient(opts.HTTPClient))
	}
	minter, err := NewMinter(opts.KeyJSON, opts.Scope, minterOpts...)
	if err != nil {
		return nil, Method{}, err
	}

	return NewTokenCache(minter, opts.Store), Method{
		Name:        MethodServiceAccount,
		Description: "Using service account: " + minter.Key().ClientEmail,
	}, nil
}
