package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedInput means text could not be extracted from the input.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrNotFound means a referenced source document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable means the search backend failed or returned garbage.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrInvalidRequest means the caller supplied unusable parameters.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidChunking means a chunker was configured with a non-terminating policy.
	ErrInvalidChunking = errors.New("invalid chunking policy")
)

// ChunkKey builds the composite key for a chunk.
func ChunkKey(docID string, ordinal int) string {
	return docID + "_" + strconv.Itoa(ordinal)
}

// ParseChunkKey splits a composite key at its last underscore.
func ParseChunkKey(key string) (string, int, error) {
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return "", 0, fmt.Errorf("malformed chunk key %q", key)
	}
	ordinal, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk key %q: %w", key, err)
	}
	return key[:i], ordinal, nil
}
