package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/video-ingest/internal/media/models"
)

func TestMemoryRepository_AllocateFinalize(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	desc := "first clip"
	id, err := r.Allocate(ctx, "Test", &desc)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	// Pending records are invisible to listing.
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	thumb := "aGVsbG8="
	ev := models.NewVideoStatusChanged(id, models.PendingStatus, models.CommittedStatus, time.Now())
	v, err := r.Finalize(ctx, models.FinalizeParams{ID: id, URL: "/static/uploads/video_1.mp4", Thumbnail: &thumb, Event: ev})
	require.NoError(t, err)
	require.Equal(t, models.CommittedStatus, v.Status)
	require.Equal(t, "/static/uploads/video_1.mp4", v.URL)
	require.Equal(t, thumb, *v.Thumbnail)

	list, err = r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	pending, err := r.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "1", pending[0].AggregateID)

	require.NoError(t, r.MarkProcessed(ctx, pending[0].ID))
	pending, err = r.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMemoryRepository_FinalizeTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	id, err := r.Allocate(ctx, "Test", nil)
	require.NoError(t, err)

	_, err = r.Finalize(ctx, models.FinalizeParams{ID: id, URL: "/u/video_1.mp4"})
	require.NoError(t, err)

	_, err = r.Finalize(ctx, models.FinalizeParams{ID: id, URL: "/u/video_1.mp4"})
	require.ErrorIs(t, err, models.ErrConflict)

	_, err = r.Finalize(ctx, models.FinalizeParams{ID: 99, URL: "/u/video_99.mp4"})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryRepository_MarkFailedAndStale(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	r.clock = func() time.Time { return base }

	id, err := r.Allocate(ctx, "Old", nil)
	require.NoError(t, err)

	stale, err := r.ListStalePending(ctx, base.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	stale, err = r.ListStalePending(ctx, base.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Empty(t, stale)

	require.NoError(t, r.MarkFailed(ctx, id, nil))
	got, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.FailedStatus, got.Status)

	require.ErrorIs(t, r.MarkFailed(ctx, id, nil), models.ErrConflict)
}

func TestMemoryRepository_ConcurrentAllocateUnique(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Allocate(ctx, "concurrent", nil)
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	for i := int64(1); i <= n; i++ {
		require.True(t, seen[i], "missing id %d", i)
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	id, err := r.Allocate(ctx, "Test", nil)
	require.NoError(t, err)

	got, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Test", again.Name)
}
