// Package reconcile cleans up after uploads that never reached a terminal
// state: stale pending records are failed and payloads nobody references are
// removed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/video-ingest/internal/media/blobstore"
	"github.com/romariotrain/video-ingest/internal/media/domain"
	"github.com/romariotrain/video-ingest/internal/media/models"
	"github.com/romariotrain/video-ingest/internal/media/repository"
	"github.com/romariotrain/video-ingest/internal/metrics"
)

type ObjectStore interface {
	Scan(ctx context.Context) ([]blobstore.Object, error)
	Remove(ctx context.Context, id int64) (int, error)
}

type Config struct {
	Repo      repository.VideoRepository
	Store     ObjectStore
	Interval  time.Duration
	Grace     time.Duration // minimum age before anything is touched
	BatchSize int
	Logger    zerolog.Logger
}

// Report summarizes one sweep.
type Report struct {
	StaleFailed    int
	OrphansRemoved int
	Errors         int
}

type Reconciler struct {
	repo      repository.VideoRepository
	store     ObjectStore
	interval  time.Duration
	grace     time.Duration
	batchSize int
	logger    zerolog.Logger
	clock     func() time.Time
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("video repository is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.Grace <= 0 {
		return nil, fmt.Errorf("grace must be positive, got: %v", cfg.Grace)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Reconciler{
		repo:      cfg.Repo,
		store:     cfg.Store,
		interval:  cfg.Interval,
		grace:     cfg.Grace,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "reconciler").Logger(),
		clock:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start sweeps every interval until ctx is canceled.
func (r *Reconciler) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.interval).
		Dur("grace", r.grace).
		Int("batch_size", r.batchSize).
		Msg("reconciler started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Err(ctx.Err()).Msg("reconciler stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep runs one reconciliation pass. Per item errors are logged and counted;
// only failures to list records or objects abort the pass.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	var rep Report
	cutoff := r.clock().Add(-r.grace)

	if err := r.failStale(ctx, cutoff, &rep); err != nil {
		return rep, err
	}
	if err := r.removeOrphans(ctx, cutoff, &rep); err != nil {
		return rep, err
	}

	metrics.RecordReconciled("stale_pending", rep.StaleFailed)
	metrics.RecordReconciled("orphan_object", rep.OrphansRemoved)
	if rep.StaleFailed > 0 || rep.OrphansRemoved > 0 || rep.Errors > 0 {
		r.logger.Info().
			Int("stale_failed", rep.StaleFailed).
			Int("orphans_removed", rep.OrphansRemoved).
			Int("errors", rep.Errors).
			Msg("sweep completed")
	}
	return rep, nil
}

func (r *Reconciler) failStale(ctx context.Context, cutoff time.Time, rep *Report) error {
	stale, err := r.repo.ListStalePending(ctx, cutoff, r.batchSize)
	if err != nil {
		return fmt.Errorf("list stale pending: %w", err)
	}

	for _, v := range stale {
		log := r.logger.With().Int64("video_id", v.ID).Logger()

		if err := domain.ValidateTransition(domain.Status(v.Status), domain.Failed); err != nil {
			log.Warn().Err(err).Msg("skip stale record")
			rep.Errors++
			continue
		}

		// mark first: a finalize racing with us wins and keeps its payload
		event := models.NewVideoStatusChanged(v.ID, v.Status, models.FailedStatus, r.clock())
		if err := r.repo.MarkFailed(ctx, v.ID, event); err != nil {
			if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrNotFound) {
				log.Debug().Err(err).Msg("record left pending state meanwhile")
				continue
			}
			log.Error().Err(err).Msg("mark stale record failed")
			rep.Errors++
			continue
		}
		rep.StaleFailed++

		if n, err := r.store.Remove(ctx, v.ID); err != nil {
			log.Error().Err(err).Msg("remove payload of failed record")
			rep.Errors++
		} else if n > 0 {
			rep.OrphansRemoved += n
		}
	}
	return nil
}

func (r *Reconciler) removeOrphans(ctx context.Context, cutoff time.Time, rep *Report) error {
	objects, err := r.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan objects: %w", err)
	}

	checked := map[int64]bool{}
	for _, o := range objects {
		if !o.ModTime.Before(cutoff) || checked[o.ID] {
			continue
		}
		checked[o.ID] = true

		orphan, err := r.isOrphan(ctx, o.ID)
		if err != nil {
			r.logger.Error().Err(err).Int64("video_id", o.ID).Msg("look up object owner")
			rep.Errors++
			continue
		}
		if !orphan {
			continue
		}

		n, err := r.store.Remove(ctx, o.ID)
		if err != nil {
			r.logger.Error().Err(err).Int64("video_id", o.ID).Msg("remove orphan payload")
			rep.Errors++
			continue
		}
		rep.OrphansRemoved += n
		r.logger.Debug().Int64("video_id", o.ID).Int("files", n).Msg("orphan payload removed")
	}
	return nil
}

// isOrphan reports whether no live record references id. Pending records are
// handled by failStale once they are old enough.
func (r *Reconciler) isOrphan(ctx context.Context, id int64) (bool, error) {
	v, err := r.repo.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return v.Status == models.FailedStatus, nil
}
