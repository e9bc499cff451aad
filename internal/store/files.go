package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stowage/internal/models"
)

const fileColumns = "id, filepath, url, hash, size_bytes, created_at"

// CreateFile inserts a file record. A hash collision yields ErrDuplicateHash.
func (s *Store) CreateFile(ctx context.Context, file *models.File) error {
	if file == nil {
		return fmt.Errorf("file is required")
	}
	if strings.TrimSpace(file.ID) == "" || strings.TrimSpace(file.Hash) == "" {
		return fmt.Errorf("file id and hash are required")
	}
	if strings.TrimSpace(file.Filepath) == "" || strings.TrimSpace(file.URL) == "" {
		return fmt.Errorf("file path and url are required")
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO file ("+fileColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		file.ID, file.Filepath, file.URL, file.Hash, file.SizeBytes, formatTime(file.CreatedAt),
	)
	if err != nil {
		if isUniqueHashConstraint(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateHash, file.Hash)
		}
		return err
	}
	return nil
}

// GetFile returns the file with the given id or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, id string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM file WHERE id = ?", id)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// GetFileByHash returns the file with the given content hash, or nil when none exists.
func (s *Store) GetFileByHash(ctx context.Context, hash string) (*models.File, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM file WHERE hash = ?", hash)
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// CountFiles returns the number of stored files.
func (s *Store) CountFiles(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanFile(scanner interface{ Scan(dest ...any) error }) (*models.File, error) {
	var (
		file      models.File
		createdAt string
	)
	if err := scanner.Scan(&file.ID, &file.Filepath, &file.URL, &file.Hash, &file.SizeBytes, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse file created_at: %w", err)
	}
	file.CreatedAt = parsed
	return &file, nil
}
