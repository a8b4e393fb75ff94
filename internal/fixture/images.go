package fixture

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
)

// ICCProfile is an opaque stand-in for an embedded color profile.
var ICCProfile = bytes.Repeat([]byte("metazip-icc-profile."), 8)

// lossless1x1 is the VP8L bitstream of a 1x1 transparent image.
var lossless1x1 = []byte{0x2F, 0x00, 0x00, 0x00, 0x10, 0x07, 0x10, 0x11, 0x11, 0x88, 0x88, 0xFE, 0x07}

// SampleEXIF returns a TIFF-structured EXIF payload carrying camera,
// datetime, software and GPS tags.
func SampleEXIF() []byte {
	ifd0 := []Tag{
		ASCII(0x010F, "Canon"),
		ASCII(0x0110, "Canon EOS 5D"),
		Short(0x0112, 1),
		Rational(0x011A, 72, 1),
		Rational(0x011B, 72, 1),
		Short(0x0128, 2),
		ASCII(0x0131, "GIMP 2.10"),
		ASCII(0x0132, "2023:12:25 15:30:45"),
	}
	exifIFD := []Tag{
		Rational(0x829A, 1, 500),
		Rational(0x829D, 28, 10),
		Short(0x8827, 400),
		Undefined(0x9000, []byte("0231")),
		ASCII(0x9003, "2023:12:25 15:30:45"),
		Rational(0x920A, 50, 1),
		ASCII(0xA434, "EF50mm f/1.8 STM"),
		Short(0x1234, 7),
	}
	gpsIFD := []Tag{
		Byte(0x0000, 2, 3, 0, 0),
		ASCII(0x0001, "N"),
		Rational(0x0002, 40, 1, 26, 1, 4630, 100),
		ASCII(0x0003, "W"),
		Rational(0x0004, 79, 1, 58, 1, 5600, 100),
		Byte(0x0005, 0),
		Rational(0x0006, 1250, 10),
	}
	return TIFF(ifd0, exifIFD, gpsIFD)
}

// SoftwareOnlyEXIF returns an EXIF payload whose only tag is Software.
func SoftwareOnlyEXIF() []byte {
	return TIFF([]Tag{ASCII(0x0131, "metazip")}, nil, nil)
}

// Image returns a deterministic gradient image.
func Image(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: uint8((x + y) * 255 / max(width+height-2, 1)),
				A: 0xFF,
			})
		}
	}
	return img
}

// JPEG encodes a gradient image and inserts an APP1 Exif segment and an
// APP2 ICC profile segment right after SOI when given.
func JPEG(t testing.TB, exif, icc []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Image(16, 8), imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	encoded := buf.Bytes()

	out := []byte{0xFF, 0xD8}
	if exif != nil {
		out = append(out, jpegSegment(t, 0xE1, append([]byte("Exif\x00\x00"), exif...))...)
	}
	if icc != nil {
		payload := append([]byte("ICC_PROFILE\x00"), 1, 1)
		out = append(out, jpegSegment(t, 0xE2, append(payload, icc...))...)
	}
	return append(out, encoded[2:]...)
}

func jpegSegment(t testing.TB, marker byte, payload []byte) []byte {
	t.Helper()
	length := len(payload) + 2
	if length > 0xFFFF {
		t.Fatalf("segment payload too large: %d", length)
	}
	seg := []byte{0xFF, marker, byte(length >> 8), byte(length)}
	return append(seg, payload...)
}

// PNG encodes a gradient image and inserts eXIf and iCCP chunks after IHDR
// when given.
func PNG(t testing.TB, exif, icc []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Image(16, 8), imaging.PNG); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	encoded := buf.Bytes()

	// Signature (8) + IHDR chunk (4 length + 4 type + 13 data + 4 CRC).
	const ihdrEnd = 8 + 25
	out := append([]byte(nil), encoded[:ihdrEnd]...)
	if icc != nil {
		data := append([]byte("icc\x00\x00"), icc...)
		out = append(out, PNGChunk("iCCP", data)...)
	}
	if exif != nil {
		out = append(out, PNGChunk("eXIf", exif)...)
	}
	return append(out, encoded[ihdrEnd:]...)
}

// PNGHeader builds a PNG whose IHDR declares an 8-bit RGBA grid of the
// given size but whose IDAT holds only an empty zlib stream.
func PNGHeader(width, height uint32) []byte {
	ihdr := binary.BigEndian.AppendUint32(nil, width)
	ihdr = binary.BigEndian.AppendUint32(ihdr, height)
	ihdr = append(ihdr, 8, 6, 0, 0, 0)

	out := []byte("\x89PNG\r\n\x1a\n")
	out = append(out, PNGChunk("IHDR", ihdr)...)
	out = append(out, PNGChunk("IDAT", []byte{0x78, 0x9C, 0x03, 0x00})...)
	return append(out, PNGChunk("IEND", nil)...)
}

// PNGChunk encodes a PNG chunk with a valid CRC.
func PNGChunk(name string, data []byte) []byte {
	chunk := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	chunk = append(chunk, name...)
	chunk = append(chunk, data...)
	return binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))
}

// WebP builds a 1x1 lossless WebP. With metadata it uses the extended
// layout: VP8X, ICCP, VP8L, EXIF.
func WebP(exif, icc []byte) []byte {
	if exif == nil && icc == nil {
		return riff(RIFFChunk("VP8L", lossless1x1))
	}

	var flags byte
	if icc != nil {
		flags |= 0x20
	}
	if exif != nil {
		flags |= 0x08
	}
	// Flags, 3 reserved bytes, canvas width-1 and height-1 as 24-bit values.
	vp8x := []byte{flags, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	body := RIFFChunk("VP8X", vp8x)
	if icc != nil {
		body = append(body, RIFFChunk("ICCP", icc)...)
	}
	body = append(body, RIFFChunk("VP8L", lossless1x1)...)
	if exif != nil {
		body = append(body, RIFFChunk("EXIF", exif)...)
	}
	return riff(body)
}

// RIFFChunk encodes a RIFF chunk including its padding byte.
func RIFFChunk(id string, data []byte) []byte {
	chunk := append([]byte(id), le.AppendUint32(nil, uint32(len(data)))...)
	chunk = append(chunk, data...)
	if len(data)%2 == 1 {
		chunk = append(chunk, 0)
	}
	return chunk
}

func riff(body []byte) []byte {
	out := []byte("RIFF")
	out = le.AppendUint32(out, uint32(4+len(body)))
	out = append(out, "WEBP"...)
	return append(out, body...)
}

// SamePixels reports whether two images have identical bounds and colors.
func SamePixels(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	r := a.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			ar, ag, ab, aa := a.At(x, y).RGBA()
			br, bg, bb, ba := b.At(x, y).RGBA()
			if ar != br || ag != bg || ab != bb || aa != ba {
				return false
			}
		}
	}
	return true
}
