package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/romariotrain/video-ingest/internal/logging"
	"github.com/romariotrain/video-ingest/internal/media/models"
	"github.com/romariotrain/video-ingest/internal/media/service"
)

const (
	// multipartMemory is how much of a multipart body is kept in memory;
	// larger parts spool to temporary files.
	multipartMemory = 32 << 20
	// formOverhead leaves room for the thumbnail and text fields on top of
	// the video size cap.
	formOverhead = 1 << 20
)

type VideoService interface {
	Upload(ctx context.Context, in service.UploadInput) (*models.Video, error)
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
	ListVideos(ctx context.Context) ([]models.Video, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	svc            VideoService
	maxUploadBytes int64
	logger         zerolog.Logger
}

func New(svc VideoService, maxUploadBytes int64, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		l := logging.WithContext(ctx, h.logger)
		l.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Upload accepts multipart/form-data with a required "video" file, an
// optional "thumbnail" image and the "name" and "description" fields.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "Video file too large")
			return
		}
		// not multipart at all: there is no video part
		writeErrorJSON(w, http.StatusBadRequest, "No video file uploaded")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := r.MultipartForm
	in := service.UploadInput{
		Name:      formValue(form, "name"),
		Video:     formFile(form, "video"),
		Thumbnail: formFile(form, "thumbnail"),
	}
	if vals, ok := form.Value["description"]; ok && len(vals) > 0 {
		d := vals[0]
		in.Description = &d
	}

	v, err := h.svc.Upload(r.Context(), in)
	if err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message: "Video uploaded successfully",
		Video:   toVideoResponse(v),
	})
}

func (h *Handler) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrMissingVideo):
		writeErrorJSON(w, http.StatusBadRequest, "No video file uploaded")
	case errors.Is(err, models.ErrEmptyFilename):
		writeErrorJSON(w, http.StatusBadRequest, "No selected video file")
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, "Missing video name")
	case errors.Is(err, models.ErrPayloadTooLarge):
		writeErrorJSON(w, http.StatusRequestEntityTooLarge, "Video file too large")
	default:
		l := logging.WithContext(r.Context(), h.logger)
		l.Error().Err(err).Msg("upload failed")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.ListVideos(r.Context())
	if err != nil {
		l := logging.WithContext(r.Context(), h.logger)
		l.Error().Err(err).Msg("list videos")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]VideoResponse, 0, len(videos))
	for i := range videos {
		out = append(out, toVideoResponse(&videos[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, VideoDetailResponse{
		VideoResponse: toVideoResponse(v),
		HasThumbnail:  v.Thumbnail != nil,
	})
}

func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if v.Thumbnail == nil {
		writeErrorJSON(w, http.StatusNotFound, "not found")
		return
	}

	img, err := base64.StdEncoding.DecodeString(*v.Thumbnail)
	if err != nil {
		l := logging.WithContext(r.Context(), h.logger)
		l.Error().Err(err).Int64("video_id", v.ID).Msg("corrupt thumbnail")
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	v, err := h.svc.GetVideo(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			writeErrorJSON(w, http.StatusNotFound, "not found")
		case errors.Is(err, models.ErrInvalidArgument):
			writeErrorJSON(w, http.StatusBadRequest, "invalid id")
		default:
			l := logging.WithContext(r.Context(), h.logger)
			l.Error().Err(err).Int64("video_id", id).Msg("get video")
			writeErrorJSON(w, http.StatusInternalServerError, "internal error")
		}
		return nil, false
	}
	return v, true
}

func formValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// formFile maps a multipart field to a service file. A part sent with an
// empty filename is parsed as a plain value, which still counts as present.
func formFile(form *multipart.Form, key string) *service.File {
	if fhs := form.File[key]; len(fhs) > 0 {
		fh := fhs[0]
		return &service.File{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}
	if _, ok := form.Value[key]; ok {
		return &service.File{}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
