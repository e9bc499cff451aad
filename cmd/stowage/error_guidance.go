package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"stowage/internal/api"
	"stowage/internal/server"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.ErrorCode == server.ErrCodeUnsupportedMedia:
			lines = append(lines, "hint: accepted types are images, audio, video, JSON, XML and RSS.")
		case apiErr.ErrorCode == server.ErrCodeRequestTooLarge:
			lines = append(lines, "hint: raise uploads.max_upload_bytes on the server to accept larger files.")
		case apiErr.Status == http.StatusNotFound && apiErr.Code != "":
			lines = append(lines, "hint: ids are the UUIDs returned by upload and fetch.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify STOWAGE_API_URL points to a stowage server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase STOWAGE_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a stowage server is running at STOWAGE_API_URL.",
			"hint: start local server manually with: stowage srv",
			"hint: you can increase STOWAGE_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
