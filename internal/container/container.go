// Package container edits the segment structure of JPEG, PNG and WebP files.
//
// Editors never touch entropy-coded or compressed pixel data: removing a
// segment deletes its bytes and every other segment is re-serialized
// verbatim, in its original order. The input buffer is never modified.
package container

import (
	"fmt"

	"metazip/internal/format"
)

// Kind names a removable metadata segment.
type Kind int

const (
	KindEXIF Kind = iota
	KindICC
)

// String returns the segment kind name.
func (k Kind) String() string {
	switch k {
	case KindEXIF:
		return "EXIF"
	case KindICC:
		return "ICC"
	default:
		return "Unknown"
	}
}

// Editor is a parsed container whose metadata segments can be listed,
// read and removed.
type Editor interface {
	// Format returns the container format.
	Format() format.Format
	// Names lists the segments in file order.
	Names() []string
	// Segment returns the payload of the segment of the given kind.
	Segment(kind Kind) ([]byte, bool)
	// Remove drops every segment of the given kind and reports whether
	// anything was removed.
	Remove(kind Kind) bool
	// Bytes re-serializes the container.
	Bytes() []byte
}

// Parse builds the segment editor for the given format.
func Parse(f format.Format, data []byte) (Editor, error) {
	switch f {
	case format.FormatJPEG:
		return ParseJPEG(data)
	case format.FormatPNG:
		return ParsePNG(data)
	case format.FormatWebP:
		return ParseWebP(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// ExtractEXIF returns the raw TIFF-structured EXIF payload embedded in data,
// whatever its container. TIFF files are their own EXIF payload. The scan
// stops at the EXIF block, so a file truncated or damaged after it still
// yields its metadata.
func ExtractEXIF(data []byte) ([]byte, bool) {
	f, ok := format.Detect(data)
	if !ok {
		return nil, false
	}
	switch f {
	case format.FormatTIFF:
		return data, true
	case format.FormatJPEG:
		return jpegEXIF(data)
	case format.FormatPNG:
		return pngEXIF(data)
	case format.FormatWebP:
		return webpEXIF(data)
	default:
		return nil, false
	}
}

func malformed(msg string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(msg, args...))
}
