package upload

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("upload session not found")
	ErrSessionExpired   = errors.New("upload session expired")
	ErrSessionClosed    = errors.New("upload session already closed")
	ErrInvalidToken     = errors.New("invalid upload token")
	ErrChecksumMismatch = errors.New("chunk checksum mismatch")
)

// IncompleteError rejects a complete call while chunk indices are still
// outstanding. Missing is sorted ascending so the caller can resume.
type IncompleteError struct {
	Missing []int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete_upload: missing chunks %v", e.Missing)
}

// ChunkRangeError rejects a chunk index outside [0, totalChunks).
type ChunkRangeError struct {
	Index       int
	TotalChunks int
}

func (e *ChunkRangeError) Error() string {
	return fmt.Sprintf("chunk index %d out of range [0, %d)", e.Index, e.TotalChunks)
}

// ValidationError rejects a malformed init request.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid upload request: " + e.Reason
}

// ChunkDeliveryError is the uploader's terminal failure after retries
// are exhausted; it names the chunk that could not be delivered so the
// caller can resume instead of restarting from zero.
type ChunkDeliveryError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkDeliveryError) Error() string {
	return fmt.Sprintf("chunk %d could not be delivered after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *ChunkDeliveryError) Unwrap() error { return e.Err }
