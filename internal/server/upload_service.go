package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"stowage/internal/classify"
	"stowage/internal/mediastore"
	"stowage/internal/models"
	"stowage/internal/repository"
	"stowage/internal/store"
)

// UploadService stages, classifies and stores multipart uploads.
type UploadService struct {
	media    mediastore.Store
	repo     *repository.Repository
	maxBytes int64
}

// UploadResult describes one accepted upload.
type UploadResult struct {
	File           *models.File
	Duplicate      bool
	Classification classify.Result
}

// NewUploadService constructs an UploadService.
func NewUploadService(media mediastore.Store, repo *repository.Repository, maxBytes int64) *UploadService {
	return &UploadService{media: media, repo: repo, maxBytes: maxBytes}
}

// MaxBytes returns the request body limit for uploads.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Ingest processes the first file part of mr. Staged bytes are removed on
// every path that does not store them.
func (s *UploadService) Ingest(ctx context.Context, mr *multipart.Reader) (UploadResult, error) {
	var zero UploadResult
	if s == nil || s.media == nil || s.repo == nil {
		return zero, internalError(fmt.Errorf("upload service is not configured"))
	}

	part, err := firstFilePart(mr)
	if err != nil {
		return zero, err
	}
	defer part.Close()

	src := &trackingReader{r: part}
	staged, err := s.media.Stage(ctx, store.NewID(), src, 0)
	if err != nil {
		return zero, classifyStageError(err, src.err)
	}
	defer staged.Discard()

	result, err := classify.Classify(staged.Head, part.FileName())
	if err != nil {
		if classify.IsReject(err) {
			uploadsRejectedTotal.WithLabelValues("media_type").Inc()
			return zero, badRequestCode(err, ErrCodeUnsupportedMedia)
		}
		return zero, internalError(err)
	}

	stored, err := s.repo.Store(ctx, staged, result.Extension)
	if err != nil {
		return zero, storeFailure(err)
	}
	return UploadResult{File: stored.File, Duplicate: stored.Duplicate, Classification: result}, nil
}

func firstFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	if mr == nil {
		return nil, badRequestCode(fmt.Errorf("multipart body is required"), ErrCodeInvalidMultipart)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			uploadsRejectedTotal.WithLabelValues("missing_file").Inc()
			return nil, badRequestCode(fmt.Errorf("no file provided"), ErrCodeMissingRequired)
		}
		if err != nil {
			return nil, classifyMultipartError(err)
		}
		if part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// classifyStageError separates client-side body failures from local write failures.
func classifyStageError(err, readErr error) error {
	if readErr == nil {
		return mediaFailure(err)
	}
	return classifyMultipartError(readErr)
}

func classifyMultipartError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		uploadsRejectedTotal.WithLabelValues("too_large").Inc()
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(fmt.Errorf("invalid multipart body: %v", err), ErrCodeInvalidMultipart)
}

// trackingReader remembers the first non-EOF read error of the request body.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}
