package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// MaxSourceBytes caps how much of a supplied image is read before decoding.
const MaxSourceBytes int64 = 20 << 20

var ErrImageTooLarge = errors.New("source image too large")

// Box is the bounding box and JPEG quality of produced thumbnails.
type Box struct {
	Width   int
	Height  int
	Quality int
}

func DefaultBox() Box {
	return Box{Width: 640, Height: 360, Quality: 85}
}

func (b Box) normalize() Box {
	d := DefaultBox()
	if b.Width <= 0 {
		b.Width = d.Width
	}
	if b.Height <= 0 {
		b.Height = d.Height
	}
	if b.Quality <= 0 || b.Quality > 100 {
		b.Quality = d.Quality
	}
	return b
}

// EncodeImage decodes any image format known to imaging, fits it into the box
// without upscaling and re-encodes it as JPEG.
func EncodeImage(r io.Reader, box Box) ([]byte, error) {
	box = box.normalize()

	lr := &io.LimitedReader{R: r, N: MaxSourceBytes + 1}
	src, err := imaging.Decode(lr, imaging.AutoOrientation(true))
	if lr.N <= 0 {
		return nil, ErrImageTooLarge
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	thumb := imaging.Fit(src, box.Width, box.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(box.Quality)); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
