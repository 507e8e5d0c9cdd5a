package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/video-ingest/internal/config"
	"github.com/romariotrain/video-ingest/internal/logging"
)

func TestRunContext_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		run  Runner
		want int
	}{
		{"clean exit", func(context.Context) error { return nil }, 0},
		{"failure", func(context.Context) error { return errors.New("boom") }, 1},
		{"canceled is clean", func(context.Context) error { return context.Canceled }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunContext(context.Background(), "test", time.Second, tt.run))
		})
	}
}

func TestRunContext_WaitsForRunner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	code := RunContext(ctx, "test", time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		close(stopped)
		return nil
	})

	assert.Equal(t, 0, code)
	select {
	case <-stopped:
	default:
		t.Fatal("RunContext returned before the runner finished")
	}
}

func TestRunContext_ShutdownTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)

	code := RunContext(ctx, "test", 20*time.Millisecond, func(context.Context) error {
		<-release
		return nil
	})
	assert.Equal(t, 1, code)
}

func TestOpenStores_Memory(t *testing.T) {
	stores, err := OpenStores(context.Background(), &config.Config{MetadataDriver: config.DriverMemory})
	require.NoError(t, err)
	defer stores.Close()

	assert.NotNil(t, stores.Videos)
	assert.NotNil(t, stores.Outbox)
	assert.ErrorIs(t, stores.Shared(), ErrSharedStoreRequired)
}

func TestOpenStores_SQLite(t *testing.T) {
	path := t.TempDir() + "/meta/videos.db"
	stores, err := OpenStores(context.Background(), &config.Config{MetadataDriver: config.DriverSQLite, SQLitePath: path})
	require.NoError(t, err)
	defer stores.Close()

	require.NoError(t, stores.Shared())
	require.NoError(t, stores.Videos.Ping(context.Background()))

	id, err := stores.Videos.Allocate(context.Background(), "clip", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestOpenEventBus(t *testing.T) {
	bus, err := OpenEventBus(&config.Config{EventBus: config.BusNone}, logging.Base())
	require.NoError(t, err)
	assert.Nil(t, bus)

	bus, err = OpenEventBus(&config.Config{EventBus: config.BusKafka, KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "video-events"}, logging.Base())
	require.NoError(t, err)
	require.NotNil(t, bus)
	assert.NoError(t, bus.Close())

	_, err = OpenEventBus(&config.Config{EventBus: "rabbit"}, logging.Base())
	assert.Error(t, err)
}
