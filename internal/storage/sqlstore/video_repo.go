package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/video-ingest/internal/media/models"
	"github.com/romariotrain/video-ingest/internal/media/repository"
)

var _ repository.VideoRepository = (*VideoRepo)(nil)

const videoColumns = `id, name, description, url, thumbnail, status, created_at, updated_at`

// VideoRepo stores video records in Postgres or SQLite. Queries are written
// with '?' placeholders and rebound for the connected driver.
type VideoRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
	clock  func() time.Time
}

func NewVideoRepo(db *sqlx.DB, outbox *OutboxRepo) *VideoRepo {
	return &VideoRepo{
		db:     db,
		outbox: outbox,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *VideoRepo) Allocate(ctx context.Context, name string, description *string) (int64, error) {
	if name == "" {
		return 0, models.ErrInvalidArgument
	}

	q := r.db.Rebind(`
		INSERT INTO video (name, description, url, status, created_at, updated_at)
		VALUES (?, ?, '', ?, ?, ?)
		RETURNING id
	`)

	now := r.clock()
	var id int64
	if err := r.db.GetContext(ctx, &id, q, name, description, models.PendingStatus, now, now); err != nil {
		return 0, fmt.Errorf("video allocate: %w: %w", models.ErrStoreUnavailable, err)
	}
	return id, nil
}

func (r *VideoRepo) Finalize(ctx context.Context, p models.FinalizeParams) (*models.Video, error) {
	if p.ID <= 0 || p.URL == "" {
		return nil, models.ErrInvalidArgument
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("video finalize begin: %w: %w", models.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	q := tx.Rebind(`
		UPDATE video
		SET url = ?, thumbnail = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?
		RETURNING ` + videoColumns)

	var v models.Video
	err = tx.GetContext(ctx, &v, q, p.URL, p.Thumbnail, models.CommittedStatus, r.clock(), p.ID, models.PendingStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.notPending(ctx, tx, p.ID)
		}
		return nil, fmt.Errorf("video finalize: %w: %w", models.ErrStoreUnavailable, err)
	}

	if p.Event != nil {
		if err := r.outbox.Add(ctx, tx, p.Event); err != nil {
			return nil, fmt.Errorf("video finalize outbox: %w: %w", models.ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("video finalize commit: %w: %w", models.ErrStoreUnavailable, err)
	}
	return &v, nil
}

func (r *VideoRepo) MarkFailed(ctx context.Context, id int64, event models.DomainEvent) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("video mark failed begin: %w: %w", models.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	q := tx.Rebind(`
		UPDATE video
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	res, err := tx.ExecContext(ctx, q, models.FailedStatus, r.clock(), id, models.PendingStatus)
	if err != nil {
		return fmt.Errorf("video mark failed: %w: %w", models.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("video mark failed rows: %w", err)
	}
	if n == 0 {
		return r.notPending(ctx, tx, id)
	}

	if event != nil {
		if err := r.outbox.Add(ctx, tx, event); err != nil {
			return fmt.Errorf("video mark failed outbox: %w: %w", models.ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("video mark failed commit: %w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *VideoRepo) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	if id <= 0 {
		return nil, models.ErrInvalidArgument
	}

	q := r.db.Rebind(`SELECT ` + videoColumns + ` FROM video WHERE id = ?`)

	var v models.Video
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video get by id: %w: %w", models.ErrStoreUnavailable, err)
	}
	return &v, nil
}

func (r *VideoRepo) List(ctx context.Context) ([]models.Video, error) {
	q := r.db.Rebind(`SELECT ` + videoColumns + ` FROM video WHERE status = ? ORDER BY id ASC`)

	videos := []models.Video{}
	if err := r.db.SelectContext(ctx, &videos, q, models.CommittedStatus); err != nil {
		return nil, fmt.Errorf("video list: %w: %w", models.ErrStoreUnavailable, err)
	}
	return videos, nil
}

func (r *VideoRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Video, error) {
	q := r.db.Rebind(`
		SELECT ` + videoColumns + `
		FROM video
		WHERE status = ? AND created_at < ?
		ORDER BY id ASC
		LIMIT ?
	`)

	var videos []models.Video
	if err := r.db.SelectContext(ctx, &videos, q, models.PendingStatus, before.UTC(), limit); err != nil {
		return nil, fmt.Errorf("video list stale: %w: %w", models.ErrStoreUnavailable, err)
	}
	return videos, nil
}

func (r *VideoRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

// notPending tells a missing record apart from one that already left pending.
func (r *VideoRepo) notPending(ctx context.Context, tx *sqlx.Tx, id int64) error {
	var status models.Status
	err := tx.GetContext(ctx, &status, tx.Rebind(`SELECT status FROM video WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("video status: %w: %w", models.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: video %d is %s", models.ErrConflict, id, status)
}
