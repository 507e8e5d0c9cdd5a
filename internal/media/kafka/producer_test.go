package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/video-ingest/internal/media/models"
	"github.com/romariotrain/video-ingest/internal/media/outbox"
	"github.com/romariotrain/video-ingest/internal/media/repository"
)

// fakeWriter fails with errs in order, then accepts every message.
type fakeWriter struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	written []kafkago.Message
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func newTestProducer(t *testing.T, cfg ProducerConfig, w *fakeWriter) *Producer {
	t.Helper()
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}
	if cfg.Topic == "" {
		cfg.Topic = "video-events"
	}
	cfg.Logger = zerolog.Nop()

	p, err := NewProducer(cfg)
	require.NoError(t, err)
	p.writer = w
	return p
}

func committedEvent(id int64) *models.VideoStatusChanged {
	return models.NewVideoStatusChanged(id, models.PendingStatus, models.CommittedStatus, time.Now().UTC()).
		WithArtifact("/static/uploads/video_42.mp4", true)
}

func TestNewProducer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  ProducerConfig
		wantErr string
	}{
		{"empty brokers", ProducerConfig{Topic: "video-events"}, "brokers list is empty"},
		{"empty topic", ProducerConfig{Brokers: []string{"localhost:9092"}}, "topic is empty"},
		{"negative max retries", ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "video-events", MaxRetries: -1}, "max_retries cannot be negative"},
		{"negative backoff", ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "video-events", RetryBackoff: -time.Second}, "retry_backoff cannot be negative"},
		{"negative write timeout", ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "video-events", WriteTimeout: -time.Second}, "write_timeout cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			producer, err := NewProducer(tt.config)
			require.Error(t, err)
			assert.Nil(t, producer)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewProducer_Defaults(t *testing.T) {
	producer, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "video-events"})
	require.NoError(t, err)

	assert.Equal(t, 3, producer.config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, producer.config.RetryBackoff)
	assert.Equal(t, 10*time.Second, producer.config.WriteTimeout)
	assert.Equal(t, 100, producer.config.BatchSize)

	w, ok := producer.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.IsType(t, &kafkago.Hash{}, w.Balancer)
	assert.Equal(t, kafkago.RequireAll, w.RequiredAcks)
}

func TestProducer_PublishKeysByVideoID(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(t, ProducerConfig{}, w)

	event := committedEvent(42)
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), event.AggregateID(), payload))

	require.Len(t, w.written, 1)
	assert.Equal(t, "42", string(w.written[0].Key))

	var body struct {
		VideoID      int64  `json:"video_id"`
		From         string `json:"from"`
		To           string `json:"to"`
		URL          string `json:"url"`
		HasThumbnail bool   `json:"has_thumbnail"`
	}
	require.NoError(t, json.Unmarshal(w.written[0].Value, &body))
	assert.Equal(t, int64(42), body.VideoID)
	assert.Equal(t, "pending", body.From)
	assert.Equal(t, "committed", body.To)
	assert.Equal(t, "/static/uploads/video_42.mp4", body.URL)
	assert.True(t, body.HasThumbnail)

	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesPublished)
	assert.Zero(t, m.MessagesFailed)
	assert.Zero(t, m.RetriesTotal)
}

func TestProducer_RetriesTemporaryErrors(t *testing.T) {
	w := &fakeWriter{errs: []error{kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable}}
	p := newTestProducer(t, ProducerConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, w)

	require.NoError(t, p.Publish(context.Background(), "7", []byte(`{}`)))

	assert.Equal(t, 3, w.calls)
	assert.Len(t, w.written, 1)
	m := p.GetMetrics()
	assert.Equal(t, int64(2), m.RetriesTotal)
	assert.Equal(t, int64(1), m.MessagesPublished)
}

func TestProducer_GivesUpAfterMaxRetries(t *testing.T) {
	w := &fakeWriter{errs: []error{
		kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable,
	}}
	p := newTestProducer(t, ProducerConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, w)

	err := p.Publish(context.Background(), "7", []byte(`{}`))
	require.ErrorIs(t, err, kafkago.LeaderNotAvailable)

	assert.Equal(t, 3, w.calls)
	m := p.GetMetrics()
	assert.Equal(t, int64(2), m.RetriesTotal)
	assert.Equal(t, int64(1), m.MessagesFailed)
	assert.Zero(t, m.MessagesPublished)
}

func TestProducer_DoesNotRetryPermanentErrors(t *testing.T) {
	w := &fakeWriter{errs: []error{kafkago.MessageSizeTooLarge}}
	p := newTestProducer(t, ProducerConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, w)

	err := p.Publish(context.Background(), "7", []byte(`{}`))
	require.ErrorIs(t, err, kafkago.MessageSizeTooLarge)

	assert.Equal(t, 1, w.calls)
	assert.Zero(t, p.GetMetrics().RetriesTotal)
	assert.Equal(t, int64(1), p.GetMetrics().MessagesFailed)
}

func TestProducer_CanceledDuringBackoff(t *testing.T) {
	w := &fakeWriter{errs: []error{kafkago.LeaderNotAvailable}}
	p := newTestProducer(t, ProducerConfig{MaxRetries: 3, RetryBackoff: time.Hour}, w)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, "7", []byte(`{}`))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, w.calls)
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(t, ProducerConfig{}, w)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "producer already closed")

	err = p.Publish(context.Background(), "1", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "producer is closed")
	assert.Zero(t, w.calls)

	err = p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "producer is closed")
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"wrapped deadline", errors.Join(errors.New("write"), context.DeadlineExceeded), false},
		{"leader not available", kafkago.LeaderNotAvailable, true},
		{"not leader for partition", kafkago.NotLeaderForPartition, true},
		{"message too large", kafkago.MessageSizeTooLarge, false},
		{"topic authorization", kafkago.TopicAuthorizationFailed, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"invalid message text", errors.New("invalid message"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retriable, isRetriableError(tt.err))
		})
	}
}

func TestProducer_RelaysOutboxEvents(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	id, err := repo.Allocate(ctx, "clip", nil)
	require.NoError(t, err)
	_, err = repo.Finalize(ctx, models.FinalizeParams{
		ID:    id,
		URL:   "/static/uploads/video_1.mp4",
		Event: models.NewVideoStatusChanged(id, models.PendingStatus, models.CommittedStatus, time.Now().UTC()).WithArtifact("/static/uploads/video_1.mp4", false),
	})
	require.NoError(t, err)

	w := &fakeWriter{errs: []error{kafkago.LeaderNotAvailable}}
	p := newTestProducer(t, ProducerConfig{RetryBackoff: time.Millisecond}, w)

	pub, err := outbox.NewPublisher(outbox.PublisherConfig{
		OutboxRepo: repo,
		Producer:   p,
		Interval:   time.Second,
		BatchSize:  10,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	res, err := pub.PublishBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 1, res.Marked)

	require.Len(t, w.written, 1)
	assert.Equal(t, "1", string(w.written[0].Key))
	assert.Contains(t, string(w.written[0].Value), `"to":"committed"`)

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProducer_HealthCheckUnreachable(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "video-events", Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = p.HealthCheck(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no broker reachable")
}
