package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/docsync/internal/config"
	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// S3Client implements ObjectStore for S3-compatible services.
//
// S3 has no glob listing, so finding "<id>.pdf" under any date prefix needs
// a full bucket listing. Authorize lists once and keeps the object names;
// Exists answers from that index and falls back to a full listing only
// when the index could not be built.
type S3Client struct {
	client *minio.Client
	bucket string
	retry  RetryPolicy
	loc    *time.Location
	log    zerolog.Logger

	mu    sync.Mutex
	index map[string]struct{}
}

// S3Options carries the non-connection settings shared with GCSClient.
type S3Options struct {
	Retry     RetryPolicy
	Location  *time.Location
	Transport http.RoundTripper
}

func NewS3Client(cfg config.S3Config, opts S3Options) (*S3Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	endpoint, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       region,
		Transport:    opts.Transport,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	policy := opts.Retry
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	return &S3Client{
		client: client,
		bucket: cfg.Bucket,
		retry:  policy,
		loc:    opts.Location,
		log:    logger.Log.With().Str("component", "s3").Logger(),
	}, nil
}

// normalizeEndpoint strips any scheme, which also decides TLS when present.
func normalizeEndpoint(raw string, useSSL bool) (string, bool) {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u.Host, u.Scheme == "https"
	}
	return strings.TrimSuffix(strings.TrimPrefix(raw, "//"), "/"), useSSL
}

// Authorize checks the bucket and rebuilds the name index for this run.
func (c *S3Client) Authorize(ctx context.Context) error {
	ok, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("authorize s3: %w", err)
	}
	if !ok {
		return fmt.Errorf("authorize s3: bucket %q does not exist", c.bucket)
	}

	index, err := c.listNames(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to index bucket, existence checks will list per file")
	}
	c.mu.Lock()
	c.index = index
	c.mu.Unlock()
	return nil
}

func (c *S3Client) Exists(ctx context.Context, name string) bool {
	c.mu.Lock()
	index := c.index
	_, found := index[name]
	c.mu.Unlock()
	if index != nil {
		return found
	}

	names, err := c.listNames(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("object", name).Msg("existence check failed, treating as absent")
		return false
	}
	_, found = names[name]
	return found
}

// listNames returns the base names of every object in the bucket.
func (c *S3Client) listNames(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make(map[string]struct{})
	for object := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, object.Err
		}
		names[path.Base(object.Key)] = struct{}{}
	}
	return names, nil
}

func (c *S3Client) remember(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index != nil {
		c.index[path.Base(key)] = struct{}{}
	}
}

func (c *S3Client) Upload(ctx context.Context, in UploadInput) UploadOutcome {
	key := ObjectKey(in.FileID, in.ModifiedTime, c.loc)
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	attempts, err := c.retry.Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(in.Data), int64(len(in.Data)), minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"original-filename": url.PathEscape(in.FileName),
				"drive-file-id":     in.FileID,
			},
		})
		if err == nil {
			return false, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		uerr := classifyS3Error(err)
		if !uerr.Permanent {
			c.log.Warn().Err(err).
				Str("file", in.FileName).
				Int("attempt", attempt).
				Int("of", c.retry.Attempts).
				Msg("upload attempt failed")
		}
		return !uerr.Permanent, uerr
	})
	if err != nil {
		var uerr *UploadError
		if errors.As(err, &uerr) {
			uerr.Attempts = attempts
		}
		return UploadOutcome{Attempts: attempts, Err: err}
	}

	c.remember(key)
	return UploadOutcome{
		Path:     fmt.Sprintf("s3://%s/%s", c.bucket, key),
		Attempts: attempts,
	}
}

func classifyS3Error(err error) *UploadError {
	resp := minio.ToErrorResponse(err)
	uerr := &UploadError{StatusCode: resp.StatusCode, Err: err}
	if resp.StatusCode == 0 {
		uerr.Message = err.Error()
		return uerr
	}

	uerr.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(resp.Code+" "+resp.Message))
	uerr.Permanent = !retryableStatus(resp.StatusCode)
	return uerr
}

var _ ObjectStore = (*S3Client)(nil)
