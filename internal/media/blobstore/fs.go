// Package blobstore persists uploaded video payloads on the local filesystem.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/romariotrain/video-ingest/internal/media/models"
)

// DefaultMaxBytes is the default cap on a single stored payload (100 MiB).
const DefaultMaxBytes int64 = 100 << 20

// Location describes where a payload landed.
type Location struct {
	Name string // video_<id><ext>
	Path string // filesystem path
	URL  string // path under the static prefix
	Size int64
}

// Object is a stored payload found by Scan.
type Object struct {
	ID      int64
	Name    string
	Size    int64
	ModTime time.Time
}

type Config struct {
	Root      string // directory holding the payloads, created on demand
	URLPrefix string // e.g. /static/uploads
	MaxBytes  int64
}

type FS struct {
	root      string
	urlPrefix string
	maxBytes  int64
}

func NewFS(cfg Config) (*FS, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	prefix := cfg.URLPrefix
	if prefix == "" {
		prefix = "/" + filepath.ToSlash(filepath.Clean(cfg.Root))
	}
	return &FS{
		root:      filepath.Clean(cfg.Root),
		urlPrefix: prefix,
		maxBytes:  cfg.MaxBytes,
	}, nil
}

func (s *FS) Root() string    { return s.root }
func (s *FS) MaxBytes() int64 { return s.maxBytes }

// Locate computes the location for id and ext without touching the disk.
func (s *FS) Locate(id int64, ext string) Location {
	name := ObjectName(id, ext)
	return Location{
		Name: name,
		Path: filepath.Join(s.root, name),
		URL:  path.Join(s.urlPrefix, name),
	}
}

// Write streams r into video_<id><ext>. The payload goes to a temporary file
// first and is renamed into place only after it was fully written and stayed
// within the size cap, so a rejected or failed write never leaves bytes under
// the final name. Writing the same id again replaces the previous payload.
func (s *FS) Write(ctx context.Context, id int64, ext string, r io.Reader) (Location, error) {
	if id <= 0 || r == nil {
		return Location{}, models.ErrInvalidArgument
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return Location{}, fmt.Errorf("%w: mkdir %s: %w", models.ErrStorageIO, s.root, err)
	}

	loc := s.Locate(id, ext)
	pf, err := renameio.NewPendingFile(loc.Path,
		renameio.WithTempDir(s.root),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return Location{}, fmt.Errorf("%w: create temp for %s: %w", models.ErrStorageIO, loc.Name, err)
	}
	defer pf.Cleanup()

	n, err := io.Copy(pf, io.LimitReader(&ctxReader{ctx: ctx, r: r}, s.maxBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Location{}, err
		}
		return Location{}, fmt.Errorf("%w: write %s: %w", models.ErrStorageIO, loc.Name, err)
	}
	if n > s.maxBytes {
		return Location{}, fmt.Errorf("%w: %s exceeds %d bytes", models.ErrPayloadTooLarge, loc.Name, s.maxBytes)
	}

	if err := pf.CloseAtomicallyReplace(); err != nil {
		return Location{}, fmt.Errorf("%w: commit %s: %w", models.ErrStorageIO, loc.Name, err)
	}

	loc.Size = n
	return loc, nil
}

// Remove deletes every stored payload of id regardless of extension.
// It returns the number of removed files.
func (s *FS) Remove(ctx context.Context, id int64) (int, error) {
	if id <= 0 {
		return 0, models.ErrInvalidArgument
	}

	objects, err := s.Scan(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, o := range objects {
		if o.ID != id {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, o.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("%w: remove %s: %w", models.ErrStorageIO, o.Name, err)
		}
		removed++
	}
	return removed, nil
}

// Scan lists stored payloads. A missing root yields no objects.
func (s *FS) Scan(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", models.ErrStorageIO, s.root, err)
	}

	var out []Object
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// temp files of in-flight writes start with a dot
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id, ok := ParseObjectName(e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Object{ID: id, Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
