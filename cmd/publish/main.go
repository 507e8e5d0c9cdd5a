// Command publish relays outbox events to the configured bus. It is the
// standalone form of the publisher loop embedded in cmd/media.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/romariotrain/video-ingest/internal/app"
	"github.com/romariotrain/video-ingest/internal/config"
	"github.com/romariotrain/video-ingest/internal/logging"
)

func main() {
	os.Exit(app.Run("publish", run))
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Service: "video-publish"})

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("metadata store: %w", err)
	}
	defer stores.Close()
	if err := stores.Shared(); err != nil {
		return err
	}

	bus, err := app.OpenEventBus(cfg, logger)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	if bus == nil {
		return errors.New("EVENT_BUS must be kafka or nats")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("event bus close")
		}
	}()

	if err := bus.HealthCheck(ctx); err != nil {
		logger.Warn().Err(err).Msg("event bus not reachable yet")
	}

	pub, err := app.NewOutboxPublisher(cfg, stores, bus, logger)
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}
	if err := pub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
