package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrValidation indicates malformed input such as an empty field or bad size.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDimensionMismatch indicates a vector length differs from the corpus dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateChunkIndex indicates a chunk index is already used for an item.
	ErrDuplicateChunkIndex = errors.New("duplicate chunk index")

	// ErrProvider indicates the embedding provider failed or timed out.
	ErrProvider = errors.New("embedding provider error")

	// ErrEmptyQuery indicates a blank search query.
	ErrEmptyQuery = errors.New("empty query")

	// ErrInvalidInput indicates a nil or otherwise unusable argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates no normaliser handles a MIME type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Search and the ingestion pipeline are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

// ValidationError describes which field was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError names the missing content reference.
type NotFoundError struct {
	Ref ContentRef
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content %s not found", e.Ref)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransitionError reports the actual status of an item that refused a transition.
type TransitionError struct {
	Ref  ContentRef
	From ProcessingStatus
	To   ProcessingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("content %s: cannot move from %s to %s", e.Ref, e.From, e.To)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// DimensionError reports the expected and received vector lengths.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// DuplicateChunkError names the colliding (item, index) pair.
type DuplicateChunkError struct {
	Ref   ContentRef
	Index int
}

func (e *DuplicateChunkError) Error() string {
	return fmt.Sprintf("content %s: chunk index %d already exists", e.Ref, e.Index)
}

// Is matches ErrDuplicateChunkIndex.
func (e *DuplicateChunkError) Is(target error) bool { return target == ErrDuplicateChunkIndex }

// ProviderError wraps a failure from the embedding provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Op, e.Err)
}

// Is matches ErrProvider.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Unwrap exposes the provider's own error.
func (e *ProviderError) Unwrap() error { return e.Err }
