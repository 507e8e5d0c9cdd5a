package httpapi

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/romariotrain/video-ingest/internal/logging"
	"github.com/romariotrain/video-ingest/internal/metrics"
)

type RouterConfig struct {
	// StaticDir is served under StaticPrefix, e.g. static/uploads at /static/uploads.
	StaticDir    string
	StaticPrefix string
	// UploadRateLimit is uploads per minute per client IP; 0 disables it.
	UploadRateLimit int
	// TracingService enables otelhttp spans when set.
	TracingService string
	Logger         zerolog.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer(cfg.Logger))
	r.Use(RequestID)
	r.Use(metrics.Middleware)
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	r.Use(logging.Middleware(cfg.Logger.With().Str("component", "http").Logger()))

	r.Get("/health", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.UploadRateLimit > 0 {
				r.Use(UploadRateLimit(cfg.UploadRateLimit, time.Minute))
			}
			r.Post("/upload", h.Upload)
		})
		r.Get("/videos", h.ListVideos)
		r.Get("/videos/{id}", h.GetVideo)
		r.Get("/videos/{id}/thumbnail", h.GetThumbnail)
	})

	if cfg.StaticDir != "" && cfg.StaticPrefix != "" {
		prefix := strings.TrimSuffix(cfg.StaticPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, noListing(http.FileServer(http.Dir(cfg.StaticDir)))))
	}

	return r
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// directories and in-flight temp files are not served
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") || strings.HasPrefix(path.Base(r.URL.Path), ".") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
