package natsbus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Validation(t *testing.T) {
	_, err := Connect(Config{Subject: "video.events"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats url is empty")

	_, err = Connect(Config{URL: "nats://127.0.0.1:4222"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats subject is empty")
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(Config{
		URL:     "nats://127.0.0.1:1",
		Subject: "video.events",
		Timeout: 200 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats connect")
}
