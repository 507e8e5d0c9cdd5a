// Package logging configures the process wide zerolog logger.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string    // debug, info, warn, error; defaults to info
	Output  io.Writer // defaults to os.Stdout
	Service string
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Configure replaces the base logger. Unknown levels fall back to info.
func Configure(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	l := ctx.Logger()

	mu.Lock()
	base = l
	mu.Unlock()
	return l
}

func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child of the base logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}
