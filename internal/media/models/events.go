package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

type VideoStatusChanged struct {
	eventID      uuid.UUID
	videoID      int64
	from         Status
	to           Status
	url          string
	hasThumbnail bool
	occurredAt   time.Time
}

func NewVideoStatusChanged(videoID int64, from, to Status, occurredAt time.Time) *VideoStatusChanged {
	return &VideoStatusChanged{
		eventID:    uuid.New(),
		videoID:    videoID,
		from:       from,
		to:         to,
		occurredAt: occurredAt,
	}
}

// WithArtifact records where the committed video landed.
func (e *VideoStatusChanged) WithArtifact(url string, hasThumbnail bool) *VideoStatusChanged {
	e.url = url
	e.hasThumbnail = hasThumbnail
	return e
}

func (e *VideoStatusChanged) EventID() uuid.UUID    { return e.eventID }
func (e *VideoStatusChanged) EventType() string     { return "VideoStatusChanged" }
func (e *VideoStatusChanged) AggregateID() string   { return strconv.FormatInt(e.videoID, 10) }
func (e *VideoStatusChanged) OccurredAt() time.Time { return e.occurredAt }

func (e *VideoStatusChanged) VideoID() int64 { return e.videoID }
func (e *VideoStatusChanged) From() Status   { return e.from }
func (e *VideoStatusChanged) To() Status     { return e.to }

func (e *VideoStatusChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID      uuid.UUID `json:"event_id"`
		VideoID      int64     `json:"video_id"`
		From         Status    `json:"from"`
		To           Status    `json:"to"`
		URL          string    `json:"url,omitempty"`
		HasThumbnail bool      `json:"has_thumbnail"`
		OccurredAt   time.Time `json:"occurred_at"`
	}{
		EventID:      e.eventID,
		VideoID:      e.videoID,
		From:         e.from,
		To:           e.to,
		URL:          e.url,
		HasThumbnail: e.hasThumbnail,
		OccurredAt:   e.occurredAt,
	})
}

// OutboxRecord is one row of the transactional outbox.
type OutboxRecord struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	AggregateID string     `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	OccurredAt  time.Time  `db:"occurred_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
