package util

import (
	"errors"
	"strings"
)

// ErrInvalidFileName indicates a name that is blank or tries to escape its directory.
var ErrInvalidFileName = errors.New("invalid file name")

// FileNameFromKey returns the last segment of an object-store key, rejecting
// traversal patterns.
func FileNameFromKey(storageKey string) (string, error) {
	key := strings.TrimSpace(storageKey)
	if strings.Contains(key, "..") {
		return "", ErrInvalidFileName
	}
	key = strings.ReplaceAll(key, "\\", "/")
	name := strings.TrimSpace(key[strings.LastIndex(key, "/")+1:])
	if name == "" {
		return "", ErrInvalidFileName
	}
	return name, nil
}
