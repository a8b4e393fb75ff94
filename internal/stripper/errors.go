package stripper

import "errors"

var (
	// ErrFormatNotRecognized is returned when no signature matches the input.
	ErrFormatNotRecognized = errors.New("format not recognized")

	// ErrUnsupportedOutput is returned for formats with no stripping strategy.
	ErrUnsupportedOutput = errors.New("unsupported output format")

	// ErrParse wraps container parse failures. The message names the format,
	// as in "failed to parse JPEG: ...".
	ErrParse = errors.New("failed to parse")

	// ErrLoadTIFF wraps pixel decode failures on the re-encode path.
	ErrLoadTIFF = errors.New("failed to load TIFF")

	// ErrEncodeTIFF wraps pixel encode failures on the re-encode path.
	ErrEncodeTIFF = errors.New("failed to encode TIFF")
)
