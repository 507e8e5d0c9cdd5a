// Package natsbus publishes outbox events on a NATS subject.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// KeyHeader carries the aggregate id of the event.
const KeyHeader = "Video-Id"

type Config struct {
	URL     string
	Subject string
	Timeout time.Duration
	Logger  zerolog.Logger
}

type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  zerolog.Logger
}

func Connect(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is empty")
	}
	if cfg.Subject == "" {
		return nil, errors.New("nats subject is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	logger := cfg.Logger.With().Str("component", "nats_publisher").Str("subject", cfg.Subject).Logger()
	nc, err := nats.Connect(cfg.URL,
		nats.Name("video-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{nc: nc, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends value and waits for the server to acknowledge the flush, so a
// nil error means the message left the client buffer.
func (p *Publisher) Publish(ctx context.Context, key string, value []byte) error {
	msg := nats.NewMsg(p.subject)
	msg.Header.Set(KeyHeader, key)
	msg.Data = value

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (p *Publisher) HealthCheck(context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected: %s", p.nc.Status())
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.nc.Drain()
}
