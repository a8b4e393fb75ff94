package codec

import "errors"

var (
	// ErrUnsupportedImage is returned when the byte signature matches no
	// supported format.
	ErrUnsupportedImage = errors.New("unsupported image format")

	// ErrLoadImage wraps pixel decode failures.
	ErrLoadImage = errors.New("failed to load image")

	// ErrFormatMismatch is returned when the decoder picked by the registered
	// image magic disagrees with the requested format.
	ErrFormatMismatch = errors.New("codec: decoded format does not match")

	// ErrImageTooLarge is returned when a header declares a grid above the
	// decode budget.
	ErrImageTooLarge = errors.New("codec: image dimensions exceed decode limit")

	// ErrNoEncoder is returned for formats without a pixel encoder.
	ErrNoEncoder = errors.New("codec: no encoder for format")
)
