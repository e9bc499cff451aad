package classify

import (
	"mime"
	"regexp"
	"strings"
)

var (
	safeExtension = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]{0,15}$`)

	subtypeExtensions = map[string]string{
		"jpeg":         "jpg",
		"mpeg":         "mp3",
		"svg+xml":      "svg",
		"rss+xml":      "rss",
		"atom+xml":     "xml",
		"plain":        "txt",
		"octet-stream": "bin",
		"quicktime":    "mov",
	}
)

// ExtensionForContentType derives a file extension from an HTTP Content-Type
// header using its subtype. Unusable values fall back to "bin".
func ExtensionForContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return "bin"
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	_, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || subtype == "" {
		return "bin"
	}
	if ext, ok := subtypeExtensions[subtype]; ok {
		return ext
	}
	subtype = strings.TrimPrefix(subtype, "x-")
	if !safeExtension.MatchString(subtype) {
		return "bin"
	}
	return subtype
}
