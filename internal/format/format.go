package format

import "strings"

// Format represents an image container format recognised by its byte signature.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "JPEG"
	FormatPNG     Format = "PNG"
	FormatWebP    Format = "WebP"
	FormatTIFF    Format = "TIFF"
)

// All lists the supported formats in detection priority order.
var All = []Format{FormatJPEG, FormatPNG, FormatWebP, FormatTIFF}

// String returns the format name.
func (f Format) String() string {
	if f == FormatUnknown {
		return "Unknown"
	}
	return string(f)
}

// MIMEType returns the media type used when serving the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// Extensions returns the file extensions for the format, canonical one first.
func (f Format) Extensions() []string {
	switch f {
	case FormatJPEG:
		return []string{".jpg", ".jpeg"}
	case FormatPNG:
		return []string{".png"}
	case FormatWebP:
		return []string{".webp"}
	case FormatTIFF:
		return []string{".tiff", ".tif"}
	default:
		return nil
	}
}

// SupportsSegmentStripping reports whether metadata can be removed without
// touching pixel data.
func (f Format) SupportsSegmentStripping() bool {
	return f == FormatJPEG || f == FormatPNG || f == FormatWebP
}

// FromMIMEType maps a declared content type to a format. It is only used to
// filter uploads; classification of content always goes through Detect.
func FromMIMEType(mimeType string) Format {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	for _, f := range All {
		if f.MIMEType() == mimeType {
			return f
		}
	}
	return FormatUnknown
}
