package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"stowage/internal/api"
	"stowage/internal/format"
)

// outputFormatter is nil for text output.
var outputFormatter format.Formatter

func structuredOutput() bool {
	return outputFormatter != nil
}

func writeStructured(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeLines(lines []string) error {
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeUploadResult(resp api.UploadResponse) error {
	return writeLines([]string{
		resp.Message,
		fmt.Sprintf("file_id: %s", resp.FileID),
		fmt.Sprintf("download_url: %s", resp.DownloadURL),
	})
}

func writeDownloadAccepted(resp api.DownloadResponse) error {
	return writeLines([]string{
		fmt.Sprintf("job_id: %s", resp.JobID),
		fmt.Sprintf("status: %s", resp.Status),
		fmt.Sprintf("status_url: %s", resp.StatusURL),
	})
}

func writeJobDetail(job api.JobResponse) error {
	lines := []string{
		fmt.Sprintf("job_id: %s", job.JobID),
		fmt.Sprintf("status: %s", job.Status),
		fmt.Sprintf("download_url: %s", job.DownloadURL),
		fmt.Sprintf("created_at: %s", formatTime(job.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(job.UpdatedAt)),
	}
	if job.FileID != nil {
		lines = append(lines, fmt.Sprintf("file_id: %s", *job.FileID))
	}
	if job.Error != nil {
		lines = append(lines, fmt.Sprintf("error: %s", *job.Error))
	}
	return writeLines(lines)
}

func writeInfo(resp api.InfoResponse) error {
	lines := []string{
		fmt.Sprintf("db_path: %s", resp.DBPath),
		fmt.Sprintf("media_path: %s", resp.MediaPath),
		fmt.Sprintf("schema_version: %d", resp.SchemaVersion),
		fmt.Sprintf("total_files: %d", resp.TotalFiles),
		"jobs:",
	}

	statuses := make([]string, 0, len(resp.JobCounts))
	for status := range resp.JobCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		lines = append(lines, fmt.Sprintf("  %s: %d", status, resp.JobCounts[status]))
	}

	if resp.Worker.Enabled {
		lines = append(lines, fmt.Sprintf("workers: running=%t active=%d max=%d",
			resp.Worker.Running, resp.Worker.Active, resp.Worker.MaxConcurrent))
	} else {
		lines = append(lines, "workers: disabled")
	}
	return writeLines(lines)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
