package thumbnail

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireFFmpeg(t *testing.T) *FrameExtractor {
	t.Helper()
	fx := NewFrameExtractor("", "", time.Second)
	if !fx.Available() {
		t.Skip("ffmpeg/ffprobe not installed")
	}
	return fx
}

func makeClip(t *testing.T, seconds string) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=size=320x240:rate=10",
		"-t", seconds, "-pix_fmt", "yuv420p", "-y", out)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot synthesize clip: %v: %s", err, b)
	}
	return out
}

func TestFrameExtractor_Frame(t *testing.T) {
	fx := requireFFmpeg(t)
	clip := makeClip(t, "2")

	frame, err := fx.Frame(context.Background(), clip)
	require.NoError(t, err)

	d := NewDeriver(Config{}, fx)
	res := d.Derive(context.Background(), nil, clip)
	require.True(t, res.OK(), "reason: %s err: %v", res.Reason, res.Err)
	assert.Equal(t, SourceFrame, res.Source)
	assert.NotEmpty(t, frame)
}

func TestFrameExtractor_TooShort(t *testing.T) {
	fx := requireFFmpeg(t)
	clip := makeClip(t, "0.5")

	_, err := fx.Frame(context.Background(), clip)
	require.ErrorIs(t, err, ErrVideoTooShort)
}

func TestFrameExtractor_Corrupt(t *testing.T) {
	fx := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "junk.mp4")
	require.NoError(t, os.WriteFile(path, []byte("this is not a video container"), 0o644))

	_, err := fx.Frame(context.Background(), path)
	require.ErrorIs(t, err, ErrProbe)
}

func TestFrameExtractor_MissingBinary(t *testing.T) {
	fx := NewFrameExtractor("/nonexistent/ffmpeg", "/nonexistent/ffprobe", time.Second)
	assert.False(t, fx.Available())

	_, err := fx.Frame(context.Background(), "whatever.mp4")
	require.ErrorIs(t, err, ErrDecoderAbsent)
}
