package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/video-ingest/internal/media/models"
	"github.com/romariotrain/video-ingest/internal/media/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

type OutboxRepo struct {
	db    *sqlx.DB
	clock func() time.Time
}

func NewOutboxRepo(db *sqlx.DB) *OutboxRepo {
	return &OutboxRepo{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// Add writes the event inside the caller's transaction.
func (r *OutboxRepo) Add(ctx context.Context, tx *sqlx.Tx, event models.DomainEvent) error {
	q := tx.Rebind(`
		INSERT INTO outbox (event_id, event_type, aggregate_id, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = tx.ExecContext(ctx, q,
		event.EventID().String(),
		event.EventType(),
		event.AggregateID(),
		payload,
		event.OccurredAt().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func (r *OutboxRepo) GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	q := r.db.Rebind(`
		SELECT id, event_id, event_type, aggregate_id, payload, occurred_at, processed_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY id ASC
		LIMIT ?
	`)

	var records []models.OutboxRecord
	if err := r.db.SelectContext(ctx, &records, q, limit); err != nil {
		return nil, fmt.Errorf("get pending: %w", err)
	}
	return records, nil
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id int64) error {
	q := r.db.Rebind(`
		UPDATE outbox
		SET processed_at = ?
		WHERE id = ?
	`)

	if _, err := r.db.ExecContext(ctx, q, r.clock(), id); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}
