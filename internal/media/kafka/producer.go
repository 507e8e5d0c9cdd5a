// Package kafka publishes outbox events to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int           // attempts after the first one
	RetryBackoff time.Duration // grows linearly per attempt
	WriteTimeout time.Duration
	BatchSize    int
	Logger       zerolog.Logger
}

// messageWriter is the part of kafkago.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Metrics is a snapshot of producer counters.
type Metrics struct {
	MessagesPublished int64
	MessagesFailed    int64
	RetriesTotal      int64
	AvgPublishTime    time.Duration
}

type producerMetrics struct {
	MessagesPublished atomic.Int64
	MessagesFailed    atomic.Int64
	RetriesTotal      atomic.Int64
	PublishDuration   atomic.Int64 // nanoseconds, successful writes only
}

type Producer struct {
	writer  messageWriter
	config  ProducerConfig
	logger  zerolog.Logger
	metrics producerMetrics
	closed  atomic.Bool
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid producer config: %w", err)
	}
	setDefaults(&cfg)

	w := &kafkago.Writer{
		Addr:  kafkago.TCP(cfg.Brokers...),
		Topic: cfg.Topic,
		// same key, same partition: events of one video stay ordered
		Balancer:     &kafkago.Hash{},
		MaxAttempts:  1,
		BatchSize:    cfg.BatchSize,
		// Publish is synchronous, one event at a time
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkago.RequireAll,
	}

	return &Producer{
		writer: w,
		config: cfg,
		logger: cfg.Logger.With().Str("component", "kafka_producer").Str("topic", cfg.Topic).Logger(),
	}, nil
}

// Publish writes one event keyed by key, retrying temporary broker errors
// with a linear backoff.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	if p.closed.Load() {
		return errors.New("producer is closed")
	}
	return p.write(ctx, kafkago.Message{Key: []byte(key), Value: value})
}

func (p *Producer) write(ctx context.Context, msg kafkago.Message) error {
	var err error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		start := time.Now()
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			p.metrics.MessagesPublished.Add(1)
			p.metrics.PublishDuration.Add(int64(time.Since(start)))
			return nil
		}
		if !isRetriableError(err) || attempt == p.config.MaxRetries {
			break
		}

		p.metrics.RetriesTotal.Add(1)
		backoff := p.config.RetryBackoff * time.Duration(attempt+1)
		p.logger.Warn().Err(err).Str("key", string(msg.Key)).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("retrying publish")

		select {
		case <-ctx.Done():
			p.metrics.MessagesFailed.Add(1)
			return fmt.Errorf("kafka publish: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	p.metrics.MessagesFailed.Add(1)
	return fmt.Errorf("kafka publish: %w", err)
}

// HealthCheck dials the brokers until one answers.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return errors.New("producer is closed")
	}

	var lastErr error
	for _, broker := range p.config.Brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no broker reachable: %w", lastErr)
}

func (p *Producer) GetMetrics() Metrics {
	m := Metrics{
		MessagesPublished: p.metrics.MessagesPublished.Load(),
		MessagesFailed:    p.metrics.MessagesFailed.Load(),
		RetriesTotal:      p.metrics.RetriesTotal.Load(),
	}
	if m.MessagesPublished > 0 {
		m.AvgPublishTime = time.Duration(p.metrics.PublishDuration.Load() / m.MessagesPublished)
	}
	return m
}

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return errors.New("producer already closed")
	}
	m := p.GetMetrics()
	p.logger.Info().
		Int64("published", m.MessagesPublished).
		Int64("failed", m.MessagesFailed).
		Int64("retries", m.RetriesTotal).
		Msg("kafka producer closed")
	return p.writer.Close()
}

func validateConfig(cfg *ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("brokers list is empty")
	}
	if cfg.Topic == "" {
		return errors.New("topic is empty")
	}
	if cfg.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	if cfg.RetryBackoff < 0 {
		return errors.New("retry_backoff cannot be negative")
	}
	if cfg.WriteTimeout < 0 {
		return errors.New("write_timeout cannot be negative")
	}
	return nil
}

func setDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
}

func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"invalid message", "message too large", "authorization failed"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
