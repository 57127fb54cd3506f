package domain

import "errors"

var (
	// ErrInvalidInput marks malformed caller input. It is surfaced, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstream marks a failed language model, embedding or vector store call.
	ErrUpstream = errors.New("upstream service error")

	// ErrEmptyInput marks a request with nothing to work on.
	ErrEmptyInput = errors.New("empty input")

	// ErrNotFound marks a missing persisted record.
	ErrNotFound = errors.New("not found")
)
