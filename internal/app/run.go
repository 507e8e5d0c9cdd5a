// Package app holds the process lifecycle and dependency wiring shared by
// the commands under cmd/.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/video-ingest/internal/logging"
)

// DefaultShutdownTimeout bounds how long a runner may take to stop after a
// signal.
const DefaultShutdownTimeout = 15 * time.Second

type Runner func(ctx context.Context) error

// Run executes run until it returns or SIGINT/SIGTERM arrives, and returns the
// process exit code.
func Run(serviceName string, run Runner) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, serviceName, DefaultShutdownTimeout, run)
}

// RunContext is Run with an explicit parent context. After ctx is done the
// runner gets shutdownTimeout to return.
func RunContext(ctx context.Context, serviceName string, shutdownTimeout time.Duration, run Runner) int {
	logger := logging.WithComponent("app").With().Str("process", serviceName).Logger()
	logger.Info().Msg("starting")

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case err := <-errCh:
		return exitCode(logger, err)
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	select {
	case err := <-errCh:
		return exitCode(logger, err)
	case <-time.After(shutdownTimeout):
		logger.Error().Dur("timeout", shutdownTimeout).Msg("shutdown timed out")
		return 1
	}
}

func exitCode(logger zerolog.Logger, err error) int {
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("failed")
		return 1
	}
	logger.Info().Msg("stopped")
	return 0
}
