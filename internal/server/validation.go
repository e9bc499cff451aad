package server

import (
	"fmt"
	"net/url"
	"strings"

	"stowage/internal/store"
)

const maxDownloadURLLength = 2048

func validateID(id string) bool {
	return store.ValidID(id)
}

// normalizeDownloadURL accepts absolute http(s) URLs with a host.
func normalizeDownloadURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", badRequestCode(fmt.Errorf("download_url is required"), ErrCodeMissingRequired)
	}
	if len(raw) > maxDownloadURLLength {
		return "", badRequestCode(fmt.Errorf("download_url exceeds %d characters", maxDownloadURLLength), ErrCodeInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", badRequestCode(fmt.Errorf("invalid download_url: %v", err), ErrCodeInvalidURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", badRequestCode(fmt.Errorf("download_url must use http or https"), ErrCodeInvalidURL)
	}
	if u.Host == "" {
		return "", badRequestCode(fmt.Errorf("download_url must include a host"), ErrCodeInvalidURL)
	}
	return u.String(), nil
}
