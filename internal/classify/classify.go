// Package classify decides whether content is an accepted media type and
// picks its canonical file extension.
package classify

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Source records how a classification was decided.
type Source string

const (
	SourceSignature Source = "signature"
	SourceExtension Source = "extension"
)

const octetStream = "application/octet-stream"

var (
	hintPrefixes      = []string{"audio/", "video/", "image/"}
	hintSpecific      = []string{octetStream, "application/json", "text/xml", "application/rss+xml", "application/xml"}
	signaturePrefixes = []string{"image/", "audio/", "video/"}
	signatureSpecific = []string{"application/json", "application/xml", "application/rss+xml", "text/xml"}
	textExtensions    = []string{"json", "xml", "rss"}
)

// Result is an accepted classification.
type Result struct {
	Extension string `json:"extension"`
	MediaType string `json:"media_type"`
	Source    Source `json:"source"`
}

// RejectError explains why content was not accepted.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	return e.Reason
}

// IsReject reports whether err is a classification rejection.
func IsReject(err error) bool {
	var rej *RejectError
	return errors.As(err, &rej)
}

func reject(format string, args ...any) error {
	return &RejectError{Reason: fmt.Sprintf(format, args...)}
}

// Classify inspects the leading bytes of content together with the
// caller-declared filename. A recognized signature is authoritative and its
// extension replaces the declared one.
func Classify(head []byte, declaredName string) (Result, error) {
	ext := DeclaredExtension(declaredName)

	hint := hintForExtension(ext)
	if !hasPrefix(hint, hintPrefixes) && !contains(hint, hintSpecific) {
		return Result{}, reject("Invalid file type: %s", hint)
	}

	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown {
		detected := kind.MIME.Value
		if !hasPrefix(detected, signaturePrefixes) && !contains(detected, signatureSpecific) {
			return Result{}, reject("File type not allowed: %s", detected)
		}
		return Result{Extension: kind.Extension, MediaType: detected, Source: SourceSignature}, nil
	}

	if contains(ext, textExtensions) {
		return Result{Extension: ext, MediaType: hint, Source: SourceExtension}, nil
	}
	return Result{}, reject("Unknown or unsupported file type")
}

// DeclaredExtension returns the lower-cased extension of name without the dot.
func DeclaredExtension(name string) string {
	ext := filepath.Ext(strings.TrimSpace(name))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func hintForExtension(ext string) string {
	if ext == "" {
		return octetStream
	}
	if kind := filetype.GetType(ext); kind != filetype.Unknown && kind.MIME.Value != "" {
		return kind.MIME.Value
	}
	if byExt := mime.TypeByExtension("." + ext); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return octetStream
}

func hasPrefix(value string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

func contains(value string, set []string) bool {
	for _, v := range set {
		if value == v {
			return true
		}
	}
	return false
}
