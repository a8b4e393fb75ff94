package extractor

import "errors"

var (
	// ErrNoEXIF is returned by the EXIF decoder when the image carries no
	// EXIF block.
	ErrNoEXIF = errors.New("no EXIF data found")

	// ErrDecode wraps failures to decode an EXIF block.
	ErrDecode = errors.New("failed to decode EXIF")
)
