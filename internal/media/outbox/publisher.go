// Package outbox relays committed status-change events from the outbox table
// to the configured event bus.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/video-ingest/internal/media/repository"
	"github.com/romariotrain/video-ingest/internal/metrics"
)

// EventPublisher is implemented by the Kafka producer and the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Publisher polls the outbox and hands events to the bus. Delivery is
// at-least-once: an event published but not marked is sent again.
type Publisher struct {
	outboxRepo repository.OutboxRepository
	producer   EventPublisher
	interval   time.Duration
	batchSize  int
	logger     zerolog.Logger
}

type PublisherConfig struct {
	OutboxRepo repository.OutboxRepository
	Producer   EventPublisher
	Interval   time.Duration
	BatchSize  int
	Logger     zerolog.Logger
}

// BatchResult summarizes one pass over the outbox.
type BatchResult struct {
	Total     int
	Published int
	Failed    int
	Marked    int
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.OutboxRepo == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("event producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		outboxRepo: cfg.OutboxRepo,
		producer:   cfg.Producer,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		logger:     cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start polls until ctx is canceled. Batch errors are logged and the loop
// keeps going.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Err(ctx.Err()).Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

// PublishBatch processes one batch of unprocessed records in id order.
func (p *Publisher) PublishBatch(ctx context.Context) (BatchResult, error) {
	records, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return BatchResult{}, fmt.Errorf("get pending records: %w", err)
	}

	res := BatchResult{Total: len(records)}
	if len(records) == 0 {
		p.logger.Debug().Msg("no pending events to publish")
		return res, nil
	}

	for _, record := range records {
		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("aggregate_id", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		// keyed by aggregate so events of one video stay ordered on the bus
		if err := p.producer.Publish(ctx, record.AggregateID, record.Payload); err != nil {
			eventLogger.Error().Err(err).Msg("failed to publish event")
			metrics.RecordOutbox("failed")
			res.Failed++
			continue
		}
		res.Published++
		metrics.RecordOutbox("published")

		if err := p.outboxRepo.MarkProcessed(ctx, record.ID); err != nil {
			// it will be published again; consumers must be idempotent
			eventLogger.Warn().Err(err).Msg("failed to mark event as processed")
			continue
		}
		res.Marked++
		eventLogger.Debug().Msg("event published")
	}

	p.logger.Info().
		Int("total", res.Total).
		Int("published", res.Published).
		Int("failed", res.Failed).
		Int("marked", res.Marked).
		Msg("batch processing completed")

	return res, nil
}

// Drain publishes batches until the outbox is empty or a batch makes no
// progress.
func (p *Publisher) Drain(ctx context.Context) (BatchResult, error) {
	var total BatchResult
	for {
		res, err := p.PublishBatch(ctx)
		total.Total += res.Total
		total.Published += res.Published
		total.Failed += res.Failed
		total.Marked += res.Marked
		if err != nil {
			return total, err
		}
		if res.Total < p.batchSize || res.Marked == 0 {
			return total, nil
		}
	}
}
