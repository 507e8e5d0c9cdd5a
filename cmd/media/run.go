package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/video-ingest/internal/app"
	"github.com/romariotrain/video-ingest/internal/config"
	"github.com/romariotrain/video-ingest/internal/logging"
	"github.com/romariotrain/video-ingest/internal/media/blobstore"
	"github.com/romariotrain/video-ingest/internal/media/httpapi"
	"github.com/romariotrain/video-ingest/internal/media/reconcile"
	"github.com/romariotrain/video-ingest/internal/media/service"
	"github.com/romariotrain/video-ingest/internal/media/thumbnail"
	"github.com/romariotrain/video-ingest/internal/telemetry"
)

const serviceName = "video-ingest"

var version = "dev"

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Service: serviceName})

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Exporter:       cfg.OTelExporter,
		Endpoint:       cfg.OTelEndpoint,
		SamplingRate:   cfg.OTelSampling,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("metadata store: %w", err)
	}
	defer stores.Close()

	store, err := blobstore.NewFS(blobstore.Config{
		Root:      cfg.UploadDir,
		URLPrefix: cfg.StaticURLPrefix,
		MaxBytes:  cfg.MaxUploadBytes,
	})
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}

	frames := thumbnail.NewFrameExtractor(cfg.FFmpegPath, cfg.FFprobePath, cfg.FrameAt)
	if !frames.Available() {
		logger.Warn().Str("ffmpeg", cfg.FFmpegPath).Str("ffprobe", cfg.FFprobePath).
			Msg("ffmpeg not found, thumbnails only from supplied images")
	}
	deriver := thumbnail.NewDeriver(thumbnail.Config{
		Box:     thumbnail.Box{Width: cfg.ThumbWidth, Height: cfg.ThumbHeight, Quality: cfg.ThumbQuality},
		Workers: cfg.DecodeWorkers,
		Timeout: cfg.DecodeTimeout,
	}, frames)

	svc := service.New(stores.Videos, store, deriver, logger)

	tracingService := ""
	if cfg.OTelExporter != "none" && cfg.OTelExporter != "" {
		tracingService = serviceName
	}
	router := httpapi.NewRouter(httpapi.New(svc, cfg.MaxUploadBytes, logger), httpapi.RouterConfig{
		StaticDir:       store.Root(),
		StaticPrefix:    cfg.StaticURLPrefix,
		UploadRateLimit: cfg.UploadRateLimit,
		TracingService:  tracingService,
		Logger:          logger,
	})

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

	bus, err := app.OpenEventBus(cfg, logger)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("driver", stores.Driver).Str("bus", cfg.EventBus).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return rec.Start(gctx)
	})

	if bus != nil {
		pub, err := app.NewOutboxPublisher(cfg, stores, bus, logger)
		if err != nil {
			_ = bus.Close()
			return fmt.Errorf("outbox publisher: %w", err)
		}
		g.Go(func() error {
			defer func() {
				if err := bus.Close(); err != nil {
					logger.Warn().Err(err).Msg("event bus close")
				}
			}()
			return pub.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
