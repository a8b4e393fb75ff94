package engine

import "errors"

var (
	// ErrSerialization wraps failures to encode a result for the caller.
	ErrSerialization = errors.New("serialization error")

	// ErrInternal is returned when an operation panicked.
	ErrInternal = errors.New("internal error")
)
