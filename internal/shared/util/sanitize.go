package util

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidKey is returned for empty keys and keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// CleanStorageKey normalizes a slash-separated key and rejects traversal patterns.
func CleanStorageKey(key string) (string, error) {
	s := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if s == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean("/" + s)[1:]
	if clean == "" || clean == "." {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	return clean, nil
}
