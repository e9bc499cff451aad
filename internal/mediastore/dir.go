package mediastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// HeadSize is the number of leading bytes kept for content sniffing.
const HeadSize = 8192

// ErrTooLarge is returned when staged content exceeds the configured limit.
var ErrTooLarge = errors.New("content exceeds size limit")

var extPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]{0,15}$`)

// Dir stores media files flat under root, with in-progress bytes under root/tmp.
type Dir struct {
	root string
}

// New creates a media directory rooted at root.
func New(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("media path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute media directory.
func (d *Dir) Root() string {
	return d.root
}

// Stage streams r into root/tmp/{id}.tmp while computing its SHA-256 digest
// and capturing the first HeadSize bytes. A positive limit caps the size.
// The caller must Commit or Discard the result.
func (d *Dir) Stage(ctx context.Context, id string, r io.Reader, limit int64) (*Staged, error) {
	if d == nil {
		return nil, fmt.Errorf("media store is not configured")
	}
	if r == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if err := validID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpPath := filepath.Join(d.root, "tmp", id+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}

	h := sha256.New()
	head := &headBuffer{max: HeadSize}
	n, err := io.Copy(io.MultiWriter(tmp, h, head), src)
	if err != nil {
		cleanup()
		return nil, err
	}
	if limit > 0 && n > limit {
		cleanup()
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, err
	}

	return &Staged{
		dir:    d,
		ID:     id,
		Path:   tmpPath,
		Digest: hex.EncodeToString(h.Sum(nil)),
		Size:   n,
		Head:   head.buf,
	}, nil
}

// Open returns a reader for a media file inside root.
func (d *Dir) Open(ctx context.Context, path string) (*os.File, error) {
	if d == nil {
		return nil, fmt.Errorf("media store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := d.contain(path)
	if err != nil {
		return nil, err
	}
	return os.Open(clean)
}

// Remove deletes a media file inside root. Missing files are ignored.
func (d *Dir) Remove(ctx context.Context, path string) error {
	if d == nil {
		return fmt.Errorf("media store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := d.contain(path)
	if err != nil {
		return err
	}
	if err := os.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) contain(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("media path is required")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(d.root, clean)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the media directory", path)
	}
	return clean, nil
}

func validID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("staging id is required")
	}
	if filepath.Base(id) != id || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid staging id %q", id)
	}
	return nil
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

type headBuffer struct {
	buf []byte
	max int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.max - len(h.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		h.buf = append(h.buf, p[:room]...)
	}
	return len(p), nil
}
