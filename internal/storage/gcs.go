package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/docsync/internal/auth"
	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	gcs "google.golang.org/api/storage/v1"
)

const (
	defaultGCSEndpoint = "https://storage.googleapis.com"
	maxErrorBody       = 4 << 10
)

// GCSConfig encapsulates what the Cloud Storage client needs.
type GCSConfig struct {
	Bucket     string
	Endpoint   string
	HTTPClient *http.Client
	Retry      RetryPolicy
	Location   *time.Location
}

// GCSClient implements ObjectStore over the Cloud Storage JSON and XML APIs.
type GCSClient struct {
	bucket   string
	endpoint string
	tokens   auth.TokenSource
	client   *http.Client
	retry    RetryPolicy
	loc      *time.Location
	log      zerolog.Logger
}

func NewGCSClient(cfg GCSConfig, tokens auth.TokenSource) (*GCSClient, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}
	if tokens == nil {
		return nil, fmt.Errorf("gcs token source must be provided")
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultGCSEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	policy := cfg.Retry
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	return &GCSClient{
		bucket:   cfg.Bucket,
		endpoint: endpoint,
		tokens:   tokens,
		client:   client,
		retry:    policy,
		loc:      cfg.Location,
		log:      logger.Log.With().Str("component", "gcs").Logger(),
	}, nil
}

// WithLogger returns a copy of c logging to l.
func (c *GCSClient) WithLogger(l zerolog.Logger) *GCSClient {
	cp := *c
	cp.log = l
	return &cp
}

func (c *GCSClient) Authorize(ctx context.Context) error {
	if _, err := c.tokens.Token(ctx); err != nil {
		return fmt.Errorf("authorize gcs: %w", err)
	}
	return nil
}

func (c *GCSClient) Exists(ctx context.Context, name string) bool {
	found, err := c.exists(ctx, name)
	if err != nil {
		c.log.Warn().Err(err).Str("object", name).Msg("existence check failed, treating as absent")
		return false
	}
	return found
}

// exists follows nextPageToken: a glob-filtered page may be empty even
// when later pages hold a match.
func (c *GCSClient) exists(ctx context.Context, name string) (bool, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	pageToken := ""
	for {
		objects, err := c.listPage(ctx, token, name, pageToken)
		if err != nil {
			return false, err
		}
		if len(objects.Items) > 0 {
			return true, nil
		}
		if objects.NextPageToken == "" || objects.NextPageToken == pageToken {
			return false, nil
		}
		pageToken = objects.NextPageToken
	}
}

func (c *GCSClient) listPage(ctx context.Context, token, name, pageToken string) (*gcs.Objects, error) {
	q := url.Values{
		"matchGlob": {"**/" + name},
		"fields":    {"items(name),nextPageToken"},
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u := fmt.Sprintf("%s/storage/v1/b/%s/o?%s", c.endpoint, url.PathEscape(c.bucket), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list objects: unexpected HTTP %d", resp.StatusCode)
	}

	var objects gcs.Objects
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("decode object list: %w", err)
	}
	return &objects, nil
}

func (c *GCSClient) Upload(ctx context.Context, in UploadInput) UploadOutcome {
	key := ObjectKey(in.FileID, in.ModifiedTime, c.loc)

	attempts, err := c.retry.Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		retryable, err := c.put(ctx, key, in)
		if err != nil && retryable {
			c.log.Warn().Err(err).
				Str("file", in.FileName).
				Int("attempt", attempt).
				Int("of", c.retry.Attempts).
				Msg("upload attempt failed")
		}
		return retryable, err
	})
	if err != nil {
		var uerr *UploadError
		if errors.As(err, &uerr) {
			uerr.Attempts = attempts
		}
		return UploadOutcome{Attempts: attempts, Err: err}
	}

	return UploadOutcome{
		Path:     fmt.Sprintf("gs://%s/%s", c.bucket, key),
		Attempts: attempts,
	}
}

// put makes one PUT and reports whether a failure is worth retrying.
func (c *GCSClient) put(ctx context.Context, key string, in UploadInput) (bool, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return !auth.IsFatal(err), err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(key), bytes.NewReader(in.Data))
	if err != nil {
		return false, err
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	req.ContentLength = int64(len(in.Data))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-goog-meta-original-filename", url.PathEscape(in.FileName))
	req.Header.Set("x-goog-meta-drive-file-id", in.FileID)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, &UploadError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}

	uerr := &UploadError{StatusCode: resp.StatusCode}
	if err := googleapi.CheckResponse(resp); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			uerr.Message = fmt.Sprintf("HTTP %d: %s", gerr.Code, truncate(strings.TrimSpace(gerr.Body)))
		}
		uerr.Err = err
	}
	if uerr.Message == "" {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		uerr.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if retryableStatus(resp.StatusCode) {
		return true, uerr
	}
	uerr.Permanent = true
	return false, uerr
}

func (c *GCSClient) objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.endpoint + "/" + url.PathEscape(c.bucket) + "/" + strings.Join(segments, "/")
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "... (" + strconv.Itoa(len(s)-maxErrorBody) + " bytes truncated)"
}

var _ ObjectStore = (*GCSClient)(nil)
