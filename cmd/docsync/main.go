package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/docsync/internal/api"
	"github.com/andresuchdata/docsync/internal/config"
	"github.com/andresuchdata/docsync/internal/drive"
	"github.com/andresuchdata/docsync/internal/pipeline"
	"github.com/andresuchdata/docsync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var cfg *config.Config

	app := &cli.App{
		Name:  "docsync",
		Usage: "Copy new PDFs from a Drive folder into object storage",
		Before: func(c *cli.Context) error {
			cfg = config.Load()
			logger.Configure(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a single sync and exit",
				Action: func(c *cli.Context) error {
					return runOnce(c.Context, cfg)
				},
			},
			{
				Name:  "serve",
				Usage: "Sync on a schedule and serve the HTTP trigger",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg)
				},
			},
			{
				Name:  "auth-info",
				Usage: "Print which credential mode would be used",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Also fetch a token to prove the credentials work",
					},
				},
				Action: func(c *cli.Context) error {
					return authInfo(c.Context, cfg, c.Bool("check"))
				},
			},
			{
				Name:  "resolve-folder",
				Usage: "Resolve a Drive folder path such as Invoices/2024 to its ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "path",
						Usage:    "Slash separated folder path from My Drive",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					return resolveFolder(c.Context, cfg, c.String("path"))
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("docsync failed")
		stop()
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	result, err := comps.orchestrator.Run(ctx)
	if result != nil {
		logger.Log.Info().
			Int("processed", result.Processed).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("sync finished")
	}
	return err
}

func serve(ctx context.Context, cfg *config.Config) error {
	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	scheduler := pipeline.NewScheduler(comps.orchestrator, cfg.Sync.Interval).WithLogger(logger.Log)

	services := &api.Services{
		Sync:   scheduler,
		Auth:   comps.method,
		Config: cfg.Public(),
		Drive:  drive.NewHandler(comps.drive, cfg.Sync.SourceFolderID).Router(),
	}
	if comps.ledger != nil {
		services.Ledger = comps.ledger
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(services, cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Log.Info().Msg("Server exiting")
	return nil
}

func authInfo(ctx context.Context, cfg *config.Config, check bool) error {
	tokens, method, closeStore, err := buildCredentials(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Printf("%s: %s\n", method.Name, method.Description)
	if !check {
		return nil
	}
	if _, err := tokens.Token(ctx); err != nil {
		return fmt.Errorf("fetch token: %w", err)
	}
	fmt.Println("token: ok")
	return nil
}

func resolveFolder(ctx context.Context, cfg *config.Config, path string) error {
	svc, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON, cfg.Drive.Endpoint)
	if err != nil {
		return fmt.Errorf("drive: %w", err)
	}

	id, err := svc.FindFolderByPath(ctx, path)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}
