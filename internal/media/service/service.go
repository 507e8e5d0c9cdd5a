package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/romariotrain/video-ingest/internal/logging"
	"github.com/romariotrain/video-ingest/internal/media/blobstore"
	"github.com/romariotrain/video-ingest/internal/media/domain"
	"github.com/romariotrain/video-ingest/internal/media/models"
	"github.com/romariotrain/video-ingest/internal/media/repository"
	"github.com/romariotrain/video-ingest/internal/media/thumbnail"
	"github.com/romariotrain/video-ingest/internal/metrics"
)

// Storage is the payload store the pipeline writes to.
type Storage interface {
	Write(ctx context.Context, id int64, ext string, r io.Reader) (blobstore.Location, error)
	Remove(ctx context.Context, id int64) (int, error)
	MaxBytes() int64
}

type ThumbnailDeriver interface {
	Derive(ctx context.Context, supplied io.Reader, videoPath string) thumbnail.Result
}

// File is one uploaded multipart file. Open may be called once.
type File struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type UploadInput struct {
	Name        string
	Description *string
	Video       *File
	Thumbnail   *File
}

type Service struct {
	repo   repository.VideoRepository
	store  Storage
	thumbs ThumbnailDeriver
	logger zerolog.Logger
	tracer trace.Tracer
	clock  func() time.Time
}

func New(repo repository.VideoRepository, store Storage, thumbs ThumbnailDeriver, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		thumbs: thumbs,
		logger: logger.With().Str("component", "pipeline").Logger(),
		tracer: otel.Tracer("video-ingest/service"),
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Upload runs the ingestion pipeline: validate, allocate an id, store the
// payload, derive a thumbnail and commit the record. Input errors are
// returned before anything is persisted.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*models.Video, error) {
	ctx, span := s.tracer.Start(ctx, "video.upload")
	defer span.End()
	log := logging.WithContext(ctx, s.logger)

	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate(in); err != nil {
		metrics.RecordUpload(metrics.OutcomeRejected)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	id, err := s.allocate(ctx, in)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("allocate: %w", err))
	}
	span.SetAttributes(attribute.Int64("video.id", id))
	log = log.With().Int64("video_id", id).Logger()

	loc, err := s.write(ctx, id, in.Video)
	if err != nil {
		log.Warn().Err(err).Msg("store payload failed")
		s.markFailed(ctx, id)
		return nil, s.fail(span, err)
	}
	metrics.UploadBytes.Observe(float64(loc.Size))

	res := s.derive(ctx, in.Thumbnail, loc.Path)
	if res.OK() {
		metrics.RecordThumbnail(string(res.Source))
		log.Debug().Str("source", string(res.Source)).Int("bytes", len(res.JPEG)).Msg("thumbnail derived")
	} else {
		metrics.RecordThumbnail(string(res.Reason))
		log.Info().Str("reason", string(res.Reason)).AnErr("cause", res.Err).Msg("thumbnail unavailable")
	}

	v, err := s.finalize(ctx, id, loc, res)
	if err != nil {
		// the record stays pending and the reconciler removes the payload
		log.Error().Err(err).Str("path", loc.Path).Msg("finalize failed")
		return nil, s.fail(span, err)
	}

	metrics.RecordUpload(metrics.OutcomeCommitted)
	log.Info().Str("url", v.URL).Bool("has_thumbnail", v.Thumbnail != nil).Msg("video committed")
	return v, nil
}

// GetVideo returns a committed record. Pending and failed records are reported
// as not found.
func (s *Service) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	if id <= 0 {
		return nil, models.ErrInvalidArgument
	}
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != models.CommittedStatus {
		return nil, models.ErrNotFound
	}
	return v, nil
}

func (s *Service) ListVideos(ctx context.Context) ([]models.Video, error) {
	return s.repo.List(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) validate(in UploadInput) error {
	if in.Video == nil {
		return models.ErrMissingVideo
	}
	if in.Video.Filename == "" {
		return models.ErrEmptyFilename
	}
	if in.Name == "" || utf8.RuneCountInString(in.Name) > models.MaxNameLength {
		return fmt.Errorf("%w: name must be 1..%d characters", models.ErrInvalidArgument, models.MaxNameLength)
	}
	if in.Video.Open == nil {
		return models.ErrMissingVideo
	}
	if limit := s.store.MaxBytes(); in.Video.Size > limit {
		return fmt.Errorf("%w: %d > %d bytes", models.ErrPayloadTooLarge, in.Video.Size, limit)
	}
	return nil
}

func (s *Service) allocate(ctx context.Context, in UploadInput) (int64, error) {
	defer observe("allocate", time.Now())
	return s.repo.Allocate(ctx, in.Name, in.Description)
}

func (s *Service) write(ctx context.Context, id int64, f *File) (blobstore.Location, error) {
	defer observe("store", time.Now())

	rc, err := f.Open()
	if err != nil {
		return blobstore.Location{}, fmt.Errorf("%w: open upload: %w", models.ErrStorageIO, err)
	}
	defer rc.Close()

	return s.store.Write(ctx, id, filepath.Ext(f.Filename), rc)
}

func (s *Service) derive(ctx context.Context, f *File, videoPath string) thumbnail.Result {
	defer observe("thumbnail", time.Now())
	ctx, span := s.tracer.Start(ctx, "video.thumbnail")
	defer span.End()

	var supplied io.Reader
	if f != nil && f.Filename != "" && f.Open != nil {
		rc, err := f.Open()
		if err == nil {
			defer rc.Close()
			supplied = rc
		} else {
			l := logging.WithContext(ctx, s.logger)
			l.Warn().Err(err).Msg("open supplied thumbnail")
		}
	}

	res := s.thumbs.Derive(ctx, supplied, videoPath)
	if res.OK() {
		span.SetAttributes(attribute.String("thumbnail.source", string(res.Source)))
	} else {
		span.SetAttributes(attribute.String("thumbnail.reason", string(res.Reason)))
	}
	return res
}

func (s *Service) finalize(ctx context.Context, id int64, loc blobstore.Location, res thumbnail.Result) (*models.Video, error) {
	defer observe("finalize", time.Now())

	event, err := s.transition(id, models.PendingStatus, models.CommittedStatus)
	if err != nil {
		return nil, err
	}
	thumb := res.Base64()
	event.WithArtifact(loc.URL, thumb != nil)

	v, err := s.repo.Finalize(ctx, models.FinalizeParams{
		ID:        id,
		URL:       loc.URL,
		Thumbnail: thumb,
		Event:     event,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize video %d: %w", id, err)
	}
	return v, nil
}

// markFailed is best effort; the reconciler retries stale pending records.
func (s *Service) markFailed(ctx context.Context, id int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	event, err := s.transition(id, models.PendingStatus, models.FailedStatus)
	if err == nil {
		err = s.repo.MarkFailed(ctx, id, event)
	}
	if err != nil {
		l := logging.WithContext(ctx, s.logger)
		l.Warn().Err(err).Int64("video_id", id).Msg("mark failed")
	}
}

func (s *Service) transition(id int64, from, to models.Status) (*models.VideoStatusChanged, error) {
	if err := domain.ValidateTransition(domain.Status(from), domain.Status(to)); err != nil {
		return nil, err
	}
	return models.NewVideoStatusChanged(id, from, to, s.clock()), nil
}

func (s *Service) fail(span trace.Span, err error) error {
	metrics.RecordUpload(metrics.OutcomeFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func observe(stage string, start time.Time) {
	metrics.ObserveStage(stage, time.Since(start).Seconds())
}
