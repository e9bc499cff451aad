// Package repository persists staged content by SHA-256 digest so identical
// bytes are stored once.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"stowage/internal/mediastore"
	"stowage/internal/models"
	"stowage/internal/store"
)

// FilesPathPrefix is the public URL prefix under which stored files are served.
const FilesPathPrefix = "/files/"

var filesStoredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stowage_files_stored_total",
		Help: "Content submissions by outcome (new, duplicate).",
	},
	[]string{"outcome"},
)

// Result is the outcome of storing content.
type Result struct {
	File      *models.File
	Duplicate bool
}

// Repository deduplicates staged content against the file table.
type Repository struct {
	files store.FileStore
	media mediastore.Store
}

// New constructs a Repository.
func New(files store.FileStore, media mediastore.Store) *Repository {
	return &Repository{files: files, media: media}
}

// FileURL returns the public retrieval path for a file id.
func FileURL(id string) string {
	return FilesPathPrefix + id
}

// Store records staged content under ext unless a file with the same digest
// already exists, in which case the staged bytes are discarded and the
// existing file is returned with Duplicate set.
func (r *Repository) Store(ctx context.Context, staged *mediastore.Staged, ext string) (Result, error) {
	if r == nil || r.files == nil || r.media == nil {
		return Result{}, fmt.Errorf("repository is not configured")
	}
	if staged == nil {
		return Result{}, fmt.Errorf("staged content is required")
	}

	existing, err := r.files.GetFileByHash(ctx, staged.Digest)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		_ = staged.Discard()
		filesStoredTotal.WithLabelValues("duplicate").Inc()
		return Result{File: existing, Duplicate: true}, nil
	}

	finalPath, err := staged.Commit(ext)
	if err != nil {
		return Result{}, err
	}

	file := &models.File{
		ID:        staged.ID,
		Filepath:  finalPath,
		URL:       FileURL(staged.ID),
		Hash:      staged.Digest,
		SizeBytes: staged.Size,
	}
	if err := r.files.CreateFile(ctx, file); err != nil {
		_ = r.media.Remove(context.WithoutCancel(ctx), finalPath)
		if !errors.Is(err, store.ErrDuplicateHash) {
			return Result{}, err
		}
		// Lost an insert race against identical content.
		winner, lookupErr := r.files.GetFileByHash(ctx, staged.Digest)
		if lookupErr != nil {
			return Result{}, lookupErr
		}
		if winner == nil {
			return Result{}, fmt.Errorf("file with hash %s vanished after conflict", staged.Digest)
		}
		filesStoredTotal.WithLabelValues("duplicate").Inc()
		return Result{File: winner, Duplicate: true}, nil
	}

	filesStoredTotal.WithLabelValues("new").Inc()
	return Result{File: file}, nil
}
