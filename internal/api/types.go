package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
	Message     string `json:"message"`
	Duplicate   bool   `json:"duplicate"`
}

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	DownloadURL string `json:"download_url"`
}

// DownloadResponse is returned by POST /download.
type DownloadResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// JobResponse is returned by GET /jobs/{id}. FileID and Error are null
// until the job completes or fails.
type JobResponse struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	FileID      *string   `json:"file_id"`
	DownloadURL string    `json:"download_url"`
	Error       *string   `json:"error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkerInfo describes the download pool.
type WorkerInfo struct {
	Enabled       bool  `json:"enabled"`
	Running       bool  `json:"running"`
	MaxConcurrent int   `json:"max_concurrent"`
	Active        int64 `json:"active"`
}

// InfoResponse is returned by GET /v1/info.
type InfoResponse struct {
	DBPath        string         `json:"db_path"`
	MediaPath     string         `json:"media_path"`
	SchemaVersion int            `json:"schema_version"`
	TotalFiles    int            `json:"total_files"`
	JobCounts     map[string]int `json:"job_counts"`
	Worker        WorkerInfo     `json:"worker"`
}
