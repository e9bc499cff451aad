package store

import (
	"context"

	"stowage/internal/models"
)

// FileStore abstracts file record storage.
type FileStore interface {
	CreateFile(ctx context.Context, file *models.File) error
	GetFile(ctx context.Context, id string) (*models.File, error)
	GetFileByHash(ctx context.Context, hash string) (*models.File, error)
	CountFiles(ctx context.Context) (int, error)
}

// JobStore abstracts download job storage.
type JobStore interface {
	EnqueueJob(ctx context.Context, id, downloadURL string) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ClaimNextJob(ctx context.Context) (*models.Job, error)
	CompleteJob(ctx context.Context, id, fileID string) error
	FailJob(ctx context.Context, id, message string) error
	JobCounts(ctx context.Context) (map[string]int, error)
}

var (
	_ FileStore = (*Store)(nil)
	_ JobStore  = (*Store)(nil)
)
