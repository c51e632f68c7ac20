// ABOUTME: Sentinel and typed errors shared across ingestion, indexing and generation
// ABOUTME: Callers classify with errors.Is / errors.As
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound means no persisted index exists under the configured name
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrIndexModelMismatch means the persisted index was built with a different embedding model
	ErrIndexModelMismatch = errors.New("vector index was built with a different embedding model")

	// ErrDimensionMismatch means a vector does not match the index dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrBackendUnavailable means the model server could not be reached or failed
	ErrBackendUnavailable = errors.New("model backend unavailable")

	// ErrEmptyResponse means the model returned no text
	ErrEmptyResponse = errors.New("empty response from model")

	// ErrInvalidInput means a caller passed an empty or malformed argument
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat means no loader handles the file extension
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// EmptyResponsePlaceholder is returned to the user in place of an empty completion
const EmptyResponsePlaceholder = "Sorry, I got an empty response. Please try again."

// IngestionError records a single file that could not be loaded
type IngestionError struct {
	Path string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
