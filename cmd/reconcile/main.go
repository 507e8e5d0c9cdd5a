// Command reconcile runs a single reconciliation sweep and exits.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/romariotrain/video-ingest/internal/app"
	"github.com/romariotrain/video-ingest/internal/config"
	"github.com/romariotrain/video-ingest/internal/logging"
	"github.com/romariotrain/video-ingest/internal/media/blobstore"
	"github.com/romariotrain/video-ingest/internal/media/reconcile"
)

func main() {
	os.Exit(app.Run("reconcile", run))
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Service: "video-reconcile"})

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("metadata store: %w", err)
	}
	defer stores.Close()
	if err := stores.Shared(); err != nil {
		return err
	}

	store, err := blobstore.NewFS(blobstore.Config{
		Root:      cfg.UploadDir,
		URLPrefix: cfg.StaticURLPrefix,
		MaxBytes:  cfg.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	rec, err := reconcile.New(reconcile.Config{
		Repo:      stores.Videos,
		Store:     store,
		Interval:  cfg.ReconcileInterval,
		Grace:     cfg.OrphanGrace,
		BatchSize: cfg.ReconcileBatch,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("reconciler: %w", err)
	}

	rep, err := rec.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	logger.Info().
		Int("stale_failed", rep.StaleFailed).
		Int("orphans_removed", rep.OrphansRemoved).
		Int("errors", rep.Errors).
		Msg("sweep finished")
	return nil
}
