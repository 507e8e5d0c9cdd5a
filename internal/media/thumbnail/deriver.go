package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// FrameSource extracts a still image (any format imaging can decode) from a
// stored video.
type FrameSource interface {
	Frame(ctx context.Context, videoPath string) ([]byte, error)
}

type Config struct {
	Box     Box
	Workers int
	Timeout time.Duration
}

type Deriver struct {
	box    Box
	frames FrameSource
	pool   *Pool
}

// NewDeriver builds a deriver. frames may be nil, in which case only supplied
// images produce thumbnails.
func NewDeriver(cfg Config, frames FrameSource) *Deriver {
	return &Deriver{
		box:    cfg.Box.normalize(),
		frames: frames,
		pool:   NewPool(cfg.Workers, cfg.Timeout),
	}
}

// Derive prefers the supplied image and falls back to a frame of the stored
// video. It never fails; an unusable input yields an Unavailable result.
func (d *Deriver) Derive(ctx context.Context, supplied io.Reader, videoPath string) Result {
	var suppliedErr error
	if supplied != nil {
		jpeg, err := EncodeImage(supplied, d.box)
		if err == nil {
			return Derived(jpeg, SourceSupplied)
		}
		suppliedErr = err
	}

	res := d.fromFrame(ctx, videoPath)
	if !res.OK() && res.Err == nil {
		res.Err = suppliedErr
	}
	return res
}

func (d *Deriver) fromFrame(ctx context.Context, videoPath string) Result {
	if videoPath == "" || d.frames == nil {
		return Unavailable(ReasonNoSource, nil)
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return Unavailable(ReasonUnsupported, err)
	}
	if info.Size() == 0 {
		return Unavailable(ReasonEmpty, ErrEmptyVideo)
	}

	var jpeg []byte
	err = d.pool.Do(ctx, func(ctx context.Context) error {
		frame, err := d.frames.Frame(ctx, videoPath)
		if err != nil {
			return err
		}
		jpeg, err = EncodeImage(bytes.NewReader(frame), d.box)
		return err
	})
	if err != nil {
		return Unavailable(reasonFor(err), err)
	}
	return Derived(jpeg, SourceFrame)
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, ErrEmptyVideo):
		return ReasonEmpty
	case errors.Is(err, ErrVideoTooShort):
		return ReasonTooShort
	case errors.Is(err, ErrDecoderAbsent):
		return ReasonDecoderAbsent
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout
	default:
		return ReasonUnsupported
	}
}
