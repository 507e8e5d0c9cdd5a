package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyVideo    = errors.New("video is empty")
	ErrVideoTooShort = errors.New("video shorter than frame offset")
	ErrProbe         = errors.New("probe failed")
	ErrDecoderAbsent = errors.New("ffmpeg not available")
)

// FrameExtractor grabs a single still from a video file by running ffprobe and
// ffmpeg as subprocesses.
type FrameExtractor struct {
	FFmpegPath  string
	FFprobePath string
	// At is the offset of the extracted frame.
	At time.Duration
}

func NewFrameExtractor(ffmpegPath, ffprobePath string, at time.Duration) *FrameExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if at <= 0 {
		at = time.Second
	}
	return &FrameExtractor{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, At: at}
}

// Available reports whether both binaries can be resolved.
func (f *FrameExtractor) Available() bool {
	if _, err := exec.LookPath(f.FFmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.FFprobePath)
	return err == nil
}

// Duration returns the container duration reported by ffprobe.
func (f *FrameExtractor) Duration(ctx context.Context, input string) (time.Duration, error) {
	if _, err := exec.LookPath(f.FFprobePath); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecoderAbsent, err)
	}

	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		input,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %w: %s", ErrProbe, err, strings.TrimSpace(string(out)))
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unparsable duration %q", ErrProbe, strings.TrimSpace(string(out)))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Frame returns the frame at f.At encoded as PNG. Videos shorter than the
// offset yield ErrVideoTooShort; there is no fallback timestamp.
func (f *FrameExtractor) Frame(ctx context.Context, input string) ([]byte, error) {
	dur, err := f.Duration(ctx, input)
	if err != nil {
		return nil, err
	}
	if dur < f.At {
		return nil, fmt.Errorf("%w: %s < %s", ErrVideoTooShort, dur, f.At)
	}

	if _, err := exec.LookPath(f.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecoderAbsent, err)
	}

	// -ss before -i seeks on the demuxer; the frame goes to stdout as PNG
	args := []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(f.At.Seconds(), 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.FFmpegPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame")
	}
	return stdout.Bytes(), nil
}
