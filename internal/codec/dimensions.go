package codec

import (
	"fmt"

	"metazip/internal/format"
)

// Dimensions is the size of a decoded pixel grid.
type Dimensions struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// ReadDimensions detects the format of data, decodes its full pixel grid and
// reports the grid size. Header fields and EXIF dimension tags are not
// consulted.
func ReadDimensions(data []byte, opts ...Option) (Dimensions, error) {
	f, ok := format.Detect(data)
	if !ok {
		return Dimensions{}, ErrUnsupportedImage
	}

	img, err := Decode(data, f, opts...)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %w", ErrLoadImage, err)
	}

	b := img.Bounds()
	return Dimensions{Width: uint32(b.Dx()), Height: uint32(b.Dy())}, nil
}
