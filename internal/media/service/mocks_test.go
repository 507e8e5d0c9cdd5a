package service

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/video-ingest/internal/media/blobstore"
	"github.com/romariotrain/video-ingest/internal/media/models"
	"github.com/romariotrain/video-ingest/internal/media/thumbnail"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) Allocate(ctx context.Context, name string, description *string) (int64, error) {
	args := m.Called(ctx, name, description)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepoMock) Finalize(ctx context.Context, p models.FinalizeParams) (*models.Video, error) {
	args := m.Called(ctx, p)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) MarkFailed(ctx context.Context, id int64, event models.DomainEvent) error {
	args := m.Called(ctx, id, event)
	return args.Error(0)
}

func (m *RepoMock) GetByID(ctx context.Context, id int64) (*models.Video, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) List(ctx context.Context) ([]models.Video, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Video, error) {
	args := m.Called(ctx, before, limit)
	if v := args.Get(0); v != nil {
		return v.([]models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type StorageMock struct {
	mock.Mock
	maxBytes int64
}

func (m *StorageMock) Write(ctx context.Context, id int64, ext string, r io.Reader) (blobstore.Location, error) {
	args := m.Called(ctx, id, ext, r)
	return args.Get(0).(blobstore.Location), args.Error(1)
}

func (m *StorageMock) Remove(ctx context.Context, id int64) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *StorageMock) MaxBytes() int64 {
	if m.maxBytes == 0 {
		return blobstore.DefaultMaxBytes
	}
	return m.maxBytes
}

type DeriverMock struct {
	mock.Mock
}

func (m *DeriverMock) Derive(ctx context.Context, supplied io.Reader, videoPath string) thumbnail.Result {
	args := m.Called(ctx, supplied, videoPath)
	return args.Get(0).(thumbnail.Result)
}
