// Package stripper removes EXIF and ICC metadata from images.
//
// JPEG, PNG and WebP are cleaned by deleting metadata segments from the
// container; their pixel data is copied byte for byte. TIFF interleaves
// metadata with the image structure, so TIFF files are decoded and written
// out as a fresh container instead.
package stripper

import (
	"fmt"

	"metazip/internal/codec"
	"metazip/internal/container"
	"metazip/internal/format"
)

// Strategy is the way a format is cleaned.
type Strategy int

const (
	// StrategySegments removes metadata segments from the container.
	StrategySegments Strategy = iota
	// StrategyReencode decodes the pixel grid and encodes a new file.
	StrategyReencode
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategySegments:
		return "segments"
	case StrategyReencode:
		return "reencode"
	default:
		return "unknown"
	}
}

// StrategyFor returns the stripping strategy for f.
func StrategyFor(f format.Format) (Strategy, error) {
	switch f {
	case format.FormatJPEG, format.FormatPNG, format.FormatWebP:
		return StrategySegments, nil
	case format.FormatTIFF:
		return StrategyReencode, nil
	default:
		return 0, ErrUnsupportedOutput
	}
}

// Outcome describes a completed strip.
type Outcome struct {
	Format   format.Format
	Strategy Strategy
	Data     []byte
	// Removed lists the segment kinds deleted by the segment strategy.
	Removed []container.Kind
}

// Stripper cleans image byte streams. The zero value is not usable; use New.
type Stripper struct {
	codecOpts []codec.Option
}

// New returns a Stripper. The codec options apply to re-encoded output.
func New(opts ...codec.Option) *Stripper {
	return &Stripper{codecOpts: opts}
}

var defaultStripper = New()

// Strip cleans data with the default options.
func Strip(data []byte) ([]byte, error) {
	return defaultStripper.Strip(data)
}

// Strip returns a copy of data without EXIF and ICC metadata. The input is
// never modified and no partial output is returned on error.
func (s *Stripper) Strip(data []byte) ([]byte, error) {
	out, err := s.StripDetailed(data)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// StripDetailed is Strip, also reporting the format and strategy used.
func (s *Stripper) StripDetailed(data []byte) (Outcome, error) {
	f, ok := format.Detect(data)
	if !ok {
		return Outcome{}, ErrFormatNotRecognized
	}

	strategy, err := StrategyFor(f)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Format: f, Strategy: strategy}
	switch strategy {
	case StrategySegments:
		out.Data, out.Removed, err = removeSegments(f, data)
	case StrategyReencode:
		out.Data, err = s.reencode(f, data)
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func removeSegments(f format.Format, data []byte) ([]byte, []container.Kind, error) {
	editor, err := container.Parse(f, data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w %s: %w", ErrParse, f, err)
	}

	var removed []container.Kind
	for _, kind := range []container.Kind{container.KindEXIF, container.KindICC} {
		if editor.Remove(kind) {
			removed = append(removed, kind)
		}
	}
	return editor.Bytes(), removed, nil
}

func (s *Stripper) reencode(f format.Format, data []byte) ([]byte, error) {
	img, err := codec.Decode(data, f, s.codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadTIFF, err)
	}

	out, err := codec.Encode(img, f, s.codecOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeTIFF, err)
	}
	return out, nil
}
