package util

import (
	"errors"
	"strings"
)

// Uploaded PRD names end up as object-store key components, so separators are
// flattened rather than rejected.
const maxFileNameLen = 200

var errInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens path separators, rejects traversal patterns, and
// bounds the name length.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errInvalidFileName
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" || strings.ContainsRune(s, 0) {
		return "", errInvalidFileName
	}
	if len(s) > maxFileNameLen {
		s = s[len(s)-maxFileNameLen:]
	}
	return s, nil
}
