package models

import "time"

// Job tracks one asynchronous remote fetch.
//
// FileID is set only when Status is Completed and Error only when Status is Failed.
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	FileID      string    `json:"file_id,omitempty"`
	DownloadURL string    `json:"download_url"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
