package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/romariotrain/video-ingest/internal/media/models"
)

var (
	_ VideoRepository  = (*MemoryRepository)(nil)
	_ OutboxRepository = (*MemoryRepository)(nil)
)

// MemoryRepository keeps records and outbox rows in process memory.
// It is used for local runs (METADATA_DRIVER=memory) and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	seq      int64
	data     map[int64]*models.Video
	outbox   []models.OutboxRecord
	outboxID int64
	clock    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		data:  make(map[int64]*models.Video),
		clock: time.Now,
	}
}

func (r *MemoryRepository) Allocate(ctx context.Context, name string, description *string) (int64, error) {
	if name == "" {
		return 0, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := r.clock()
	r.data[r.seq] = &models.Video{
		ID:          r.seq,
		Name:        name,
		Description: cloneString(description),
		Status:      models.PendingStatus,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.seq, nil
}

func (r *MemoryRepository) Finalize(ctx context.Context, p models.FinalizeParams) (*models.Video, error) {
	if p.ID <= 0 || p.URL == "" {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.pendingLocked(p.ID)
	if err != nil {
		return nil, err
	}
	if err := r.addEventLocked(p.Event); err != nil {
		return nil, err
	}

	v.URL = p.URL
	v.Thumbnail = cloneString(p.Thumbnail)
	v.Status = models.CommittedStatus
	v.UpdatedAt = r.clock()

	cp := copyVideo(v)
	return &cp, nil
}

func (r *MemoryRepository) MarkFailed(ctx context.Context, id int64, event models.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.pendingLocked(id)
	if err != nil {
		return err
	}
	if err := r.addEventLocked(event); err != nil {
		return err
	}
	v.Status = models.FailedStatus
	v.UpdatedAt = r.clock()
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	if id <= 0 {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := copyVideo(v)
	return &cp, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Video, 0, len(r.data))
	for _, v := range r.data {
		if v.Status == models.CommittedStatus {
			out = append(out, copyVideo(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Video
	for _, v := range r.data {
		if v.Status == models.PendingStatus && v.CreatedAt.Before(before) {
			out = append(out, copyVideo(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) GetPending(ctx context.Context, limit int) ([]models.OutboxRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.OutboxRecord
	for _, rec := range r.outbox {
		if rec.ProcessedAt != nil {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) MarkProcessed(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.outbox {
		if r.outbox[i].ID == id {
			now := r.clock()
			r.outbox[i].ProcessedAt = &now
			return nil
		}
	}
	return models.ErrNotFound
}

func (r *MemoryRepository) pendingLocked(id int64) (*models.Video, error) {
	v, ok := r.data[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if v.Status != models.PendingStatus {
		return nil, fmt.Errorf("%w: video %d is %s", models.ErrConflict, id, v.Status)
	}
	return v, nil
}

func (r *MemoryRepository) addEventLocked(event models.DomainEvent) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	r.outboxID++
	r.outbox = append(r.outbox, models.OutboxRecord{
		ID:          r.outboxID,
		EventID:     event.EventID().String(),
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		Payload:     payload,
		OccurredAt:  event.OccurredAt(),
	})
	return nil
}

// callers get copies and cannot mutate stored records
func copyVideo(v *models.Video) models.Video {
	cp := *v
	cp.Description = cloneString(v.Description)
	cp.Thumbnail = cloneString(v.Thumbnail)
	return cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
