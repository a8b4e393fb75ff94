package container

import "errors"

var (
	// ErrMalformed indicates that the byte stream does not follow the
	// container layout of its format.
	ErrMalformed = errors.New("container: malformed data")

	// ErrUnsupportedFormat is returned when no segment editor exists for a format.
	ErrUnsupportedFormat = errors.New("container: unsupported format")
)
