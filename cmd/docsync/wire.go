package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andresuchdata/docsync/internal/auth"
	"github.com/andresuchdata/docsync/internal/cache"
	"github.com/andresuchdata/docsync/internal/config"
	"github.com/andresuchdata/docsync/internal/drive"
	"github.com/andresuchdata/docsync/internal/pipeline"
	"github.com/andresuchdata/docsync/internal/repository/postgres"
	"github.com/andresuchdata/docsync/internal/storage"
	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/minio/minio-go/v7"
)

// components holds everything a sync run needs, built once per process.
type components struct {
	cfg          *config.Config
	tokens       auth.TokenSource
	method       auth.Method
	drive        *drive.Service
	store        storage.ObjectStore
	ledger       *pipeline.Repository
	orchestrator *pipeline.Orchestrator

	closers []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Log.Warn().Err(err).Msg("failed to release resource")
		}
	}
}

// buildCredentials wires the token store and picks the credential mode.
func buildCredentials(ctx context.Context, cfg *config.Config) (auth.TokenSource, auth.Method, func() error, error) {
	store, closeStore, err := cache.NewTokenStore(cfg.Cache)
	if err != nil {
		return nil, auth.Method{}, nil, fmt.Errorf("token store: %w", err)
	}

	var keyJSON []byte
	if cfg.HasServiceAccountKey() {
		keyJSON = []byte(cfg.Auth.ServiceAccountKey)
	}

	tokens, method, err := auth.NewTokenSource(ctx, auth.Options{
		KeyJSON:    keyJSON,
		Scope:      cfg.Auth.Scope,
		Store:      store,
		HTTPClient: &http.Client{Timeout: cfg.Destination.HTTPTimeout},
	})
	if err != nil {
		_ = closeStore()
		return nil, auth.Method{}, nil, fmt.Errorf("credentials: %w", err)
	}

	return tokens, method, closeStore, nil
}

func buildObjectStore(cfg *config.Config, tokens auth.TokenSource) (storage.ObjectStore, error) {
	policy := storage.NewRetryPolicy(cfg.Sync.RetryCount, cfg.Sync.RetryDelay)

	switch cfg.Destination.Provider {
	case config.ProviderS3:
		// attempts are counted by the retry policy, not by the SDK
		minio.MaxRetry = 1
		return storage.NewS3Client(cfg.Destination.S3, storage.S3Options{
			Retry:    policy,
			Location: cfg.Sync.KeyLocation,
		})
	default:
		return storage.NewGCSClient(storage.GCSConfig{
			Bucket:     cfg.Destination.GCSBucket,
			Endpoint:   cfg.Destination.GCSEndpoint,
			HTTPClient: &http.Client{Timeout: cfg.Destination.HTTPTimeout},
			Retry:      policy,
			Location:   cfg.Sync.KeyLocation,
		}, tokens)
	}
}

func buildLedger(ctx context.Context, cfg *config.Config) (*pipeline.Repository, func() error, error) {
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect ledger database: %w", err)
	}

	repo := pipeline.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return repo, db.Close, nil
}

// buildComponents validates cfg and wires the full sync stack.
func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &components{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	tokens, method, closeStore, err := buildCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.tokens, c.method = tokens, method
	c.closers = append(c.closers, closeStore)
	logger.Log.Info().Str("method", method.Name).Msg(method.Description)

	c.store, err = buildObjectStore(cfg, tokens)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	c.drive, err = drive.NewService(ctx, cfg.Drive.CredentialsJSON, cfg.Drive.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("drive: %w", err)
	}
	source := drive.NewEnumerator(c.drive, cfg.Sync.SourceFolderID, cfg.Sync.ArchiveFolderID, cfg.Sync.MaxFilesPerRun)

	opts := []pipeline.Option{pipeline.WithLogger(logger.Log)}
	if cfg.Sync.LedgerEnabled {
		ledger, closeDB, err := buildLedger(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.ledger = ledger
		c.closers = append(c.closers, closeDB)
		opts = append(opts, pipeline.WithRecorder(ledger))
	}

	c.orchestrator = pipeline.NewOrchestrator(source, c.store, opts...)
	ok = true
	return c, nil
}
