package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedPath indicates a source file path without a
	// recognizable version or content segment. Fatal for the file,
	// never retried.
	ErrMalformedPath = errors.New("malformed source path")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Ingestion and vector search require embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the passage store is not configured.
	ErrStoreUnavailable = errors.New("passage store unavailable")

	// ErrIngestInProgress indicates an ingestion run is already active.
	ErrIngestInProgress = errors.New("ingestion in progress")
)

// FileError wraps a failure that aborted processing of one source file.
// Whether it aborts the whole run depends on the configured failure
// policy, not on the error itself.
type FileError struct {
	// Path is the source file that failed.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("processing %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FileError) Unwrap() error {
	return e.Err
}
