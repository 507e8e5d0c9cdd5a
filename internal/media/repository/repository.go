package repository

import (
	"context"
	"time"

	"github.com/romariotrain/video-ingest/internal/media/models"
)

// VideoRepository is the metadata store behind the upload pipeline.
// Allocate must take its ids from an atomic store primitive so concurrent
// callers never share one.
type VideoRepository interface {
	Allocate(ctx context.Context, name string, description *string) (int64, error)
	Finalize(ctx context.Context, p models.FinalizeParams) (*models.Video, error)
	MarkFailed(ctx context.Context, id int64, event models.DomainEvent) error
	GetByID(ctx context.Context, id int64) (*models.Video, error)
	// List returns committed records ordered by id.
	List(ctx context.Context) ([]models.Video, error)
	// ListStalePending returns pending records created before the cutoff.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Video, error)
	Ping(ctx context.Context) error
}

type OutboxRepository interface {
	GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
}
