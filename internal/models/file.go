package models

import "time"

// File is one stored content object. Hash is unique across all files.
type File struct {
	ID        string    `json:"id"`
	Filepath  string    `json:"filepath"`
	URL       string    `json:"url"`
	Hash      string    `json:"hash"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
