package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/romariotrain/video-ingest/internal/config"
	"github.com/romariotrain/video-ingest/internal/media/kafka"
	"github.com/romariotrain/video-ingest/internal/media/natsbus"
	"github.com/romariotrain/video-ingest/internal/media/outbox"
	"github.com/romariotrain/video-ingest/internal/media/repository"
	"github.com/romariotrain/video-ingest/internal/storage/sqlstore"
)

// ErrSharedStoreRequired is returned when a standalone process is started
// against the in-process memory store, which it cannot share.
var ErrSharedStoreRequired = errors.New("memory metadata store cannot be shared between processes")

// Stores bundles the metadata repositories of one process.
type Stores struct {
	Videos repository.VideoRepository
	Outbox repository.OutboxRepository
	Driver string

	db *sqlx.DB
}

// OpenStores connects the configured metadata driver and applies the schema.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.MetadataDriver {
	case config.DriverMemory:
		repo := repository.NewMemoryRepository()
		return &Stores{Videos: repo, Outbox: repo, Driver: cfg.MetadataDriver}, nil
	case config.DriverPostgres:
		db, err = sqlstore.ConnectPostgres(ctx, cfg.DatabaseURL)
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath, sqlstore.DefaultSQLiteConfig())
	default:
		return nil, fmt.Errorf("unknown metadata driver %q", cfg.MetadataDriver)
	}
	if err != nil {
		return nil, err
	}

	if err := sqlstore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	outboxRepo := sqlstore.NewOutboxRepo(db)
	return &Stores{
		Videos: sqlstore.NewVideoRepo(db, outboxRepo),
		Outbox: outboxRepo,
		Driver: cfg.MetadataDriver,
		db:     db,
	}, nil
}

// Shared fails for stores that live only inside this process.
func (s *Stores) Shared() error {
	if s.db == nil {
		return ErrSharedStoreRequired
	}
	return nil
}

func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EventBus is an outbox sink with a lifecycle.
type EventBus interface {
	outbox.EventPublisher
	HealthCheck(ctx context.Context) error
	Close() error
}

// OpenEventBus returns nil when no bus is configured.
func OpenEventBus(cfg *config.Config, logger zerolog.Logger) (EventBus, error) {
	switch cfg.EventBus {
	case config.BusNone, "":
		return nil, nil
	case config.BusKafka:
		p, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BusNATS:
		p, err := natsbus.Connect(natsbus.Config{
			URL:     cfg.NATSURL,
			Subject: cfg.NATSSubject,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event bus %q", cfg.EventBus)
	}
}

// NewOutboxPublisher wires the outbox of stores to bus.
func NewOutboxPublisher(cfg *config.Config, stores *Stores, bus EventBus, logger zerolog.Logger) (*outbox.Publisher, error) {
	return outbox.NewPublisher(outbox.PublisherConfig{
		OutboxRepo: stores.Outbox,
		Producer:   bus,
		Interval:   cfg.OutboxInterval,
		BatchSize:  cfg.OutboxBatch,
		Logger:     logger,
	})
}
