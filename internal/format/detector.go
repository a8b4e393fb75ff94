package format

import "bytes"

// MinSignatureLength is the number of bytes Detect needs to look at.
const MinSignatureLength = 12

var (
	jpegSignature   = []byte{0xFF, 0xD8, 0xFF}
	pngSignature    = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	riffSignature   = []byte("RIFF")
	webpSignature   = []byte("WEBP")
	tiffLESignature = []byte{0x49, 0x49, 0x2A, 0x00}
	tiffBESignature = []byte{0x4D, 0x4D, 0x00, 0x2A}
)

// Detect identifies the image format from the leading magic bytes.
// It reports false when the buffer is shorter than MinSignatureLength or
// matches none of the known signatures.
func Detect(data []byte) (Format, bool) {
	if len(data) < MinSignatureLength {
		return FormatUnknown, false
	}

	switch {
	// JPEG: FF D8 FF
	case bytes.HasPrefix(data, jpegSignature):
		return FormatJPEG, true
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(data, pngSignature):
		return FormatPNG, true
	// WebP: RIFF????WEBP
	case bytes.HasPrefix(data, riffSignature) && bytes.Equal(data[8:12], webpSignature):
		return FormatWebP, true
	// TIFF: 49 49 2A 00 (little-endian) or 4D 4D 00 2A (big-endian)
	case bytes.HasPrefix(data, tiffLESignature) || bytes.HasPrefix(data, tiffBESignature):
		return FormatTIFF, true
	}

	return FormatUnknown, false
}
