package core

import "errors"

var (
	// ErrNotFound is returned when a message, embedding or preference does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidMessage is returned when a fetched message fails validation
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidFeedback is returned when a feedback submission fails validation
	ErrInvalidFeedback = errors.New("invalid feedback")
	// ErrEmbeddingFailed is returned when the embedding provider errors or times out
	ErrEmbeddingFailed = errors.New("embedding computation failed")
	// ErrEmbeddingUnavailable is returned when the embedding provider returns no usable vector
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrZeroMagnitude is returned by CosineSimilarity for a zero-length or all-zero vector
	ErrZeroMagnitude = errors.New("vector has zero magnitude")
	// ErrDimensionMismatch is returned by CosineSimilarity for vectors of different lengths
	ErrDimensionMismatch = errors.New("vector dimensions differ")
	// ErrNotConfigured is returned when a collaborator is missing credentials or settings
	ErrNotConfigured = errors.New("not configured")
)
