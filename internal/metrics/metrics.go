// Package metrics holds the Prometheus collectors of the ingest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values stay bounded: outcomes, stages, sources and reasons are fixed enums.
var (
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video_ingest_uploads_total",
		Help: "Upload requests by outcome (committed, rejected, failed).",
	}, []string{"outcome"})

	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "video_ingest_upload_bytes",
		Help:    "Size of stored video payloads.",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "video_ingest_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ThumbnailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video_ingest_thumbnails_total",
		Help: "Thumbnail derivations by source, or by reason when unavailable.",
	}, []string{"result"})

	ReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video_ingest_reconciled_total",
		Help: "Items cleaned by the reconciler, by kind (stale_pending, orphan_object).",
	}, []string{"kind"})

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video_ingest_outbox_events_total",
		Help: "Outbox events handed to the event bus, by result.",
	}, []string{"result"})
)

const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

func RecordUpload(outcome string) {
	UploadsTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

func RecordThumbnail(result string) {
	ThumbnailsTotal.WithLabelValues(result).Inc()
}

func RecordReconciled(kind string, n int) {
	if n > 0 {
		ReconciledTotal.WithLabelValues(kind).Add(float64(n))
	}
}

func RecordOutbox(result string) {
	OutboxPublishedTotal.WithLabelValues(result).Inc()
}
