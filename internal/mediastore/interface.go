package mediastore

import (
	"context"
	"io"
	"os"
)

// Store is the byte-storage abstraction behind uploads and downloads.
type Store interface {
	Stage(ctx context.Context, id string, r io.Reader, limit int64) (*Staged, error)
	Open(ctx context.Context, path string) (*os.File, error)
	Remove(ctx context.Context, path string) error
}

var _ Store = (*Dir)(nil)
