// Package fixture builds small image files with known metadata for tests.
package fixture

import "encoding/binary"

// TIFF field types.
const (
	TypeByte      = 1
	TypeASCII     = 2
	TypeShort     = 3
	TypeLong      = 4
	TypeRational  = 5
	TypeUndefined = 7
	TypeSRational = 10
)

const (
	tagExifIFD = 0x8769
	tagGPSIFD  = 0x8825
)

var le = binary.LittleEndian

// Tag is a single IFD entry with its value already encoded little-endian.
type Tag struct {
	ID    uint16
	Type  uint16
	Count uint32
	Value []byte
}

// ASCII returns a NUL-terminated ASCII entry.
func ASCII(id uint16, s string) Tag {
	v := append([]byte(s), 0)
	return Tag{ID: id, Type: TypeASCII, Count: uint32(len(v)), Value: v}
}

// Byte returns a BYTE entry.
func Byte(id uint16, vals ...byte) Tag {
	return Tag{ID: id, Type: TypeByte, Count: uint32(len(vals)), Value: append([]byte(nil), vals...)}
}

// Short returns a SHORT entry.
func Short(id uint16, vals ...uint16) Tag {
	var v []byte
	for _, x := range vals {
		v = le.AppendUint16(v, x)
	}
	return Tag{ID: id, Type: TypeShort, Count: uint32(len(vals)), Value: v}
}

// Long returns a LONG entry.
func Long(id uint16, vals ...uint32) Tag {
	var v []byte
	for _, x := range vals {
		v = le.AppendUint32(v, x)
	}
	return Tag{ID: id, Type: TypeLong, Count: uint32(len(vals)), Value: v}
}

// Rational returns a RATIONAL entry from numerator/denominator pairs.
func Rational(id uint16, pairs ...uint32) Tag {
	var v []byte
	for _, x := range pairs {
		v = le.AppendUint32(v, x)
	}
	return Tag{ID: id, Type: TypeRational, Count: uint32(len(pairs) / 2), Value: v}
}

// SRational returns an SRATIONAL entry from numerator/denominator pairs.
func SRational(id uint16, pairs ...int32) Tag {
	var v []byte
	for _, x := range pairs {
		v = le.AppendUint32(v, uint32(x))
	}
	return Tag{ID: id, Type: TypeSRational, Count: uint32(len(pairs) / 2), Value: v}
}

// Undefined returns an UNDEFINED entry.
func Undefined(id uint16, b []byte) Tag {
	return Tag{ID: id, Type: TypeUndefined, Count: uint32(len(b)), Value: append([]byte(nil), b...)}
}

// TIFF encodes a little-endian TIFF structure. Exif and GPS sub-IFD pointers
// are appended to IFD0 when the corresponding tag lists are non-empty.
func TIFF(ifd0, exifIFD, gpsIFD []Tag) []byte {
	return tiffWithTrailer(ifd0, exifIFD, gpsIFD, nil)
}

func tiffWithTrailer(ifd0, exifIFD, gpsIFD []Tag, trailer []byte) []byte {
	ifd0 = append([]Tag(nil), ifd0...)
	exifIndex, gpsIndex := -1, -1
	if len(exifIFD) > 0 {
		exifIndex = len(ifd0)
		ifd0 = append(ifd0, Long(tagExifIFD, 0))
	}
	if len(gpsIFD) > 0 {
		gpsIndex = len(ifd0)
		ifd0 = append(ifd0, Long(tagGPSIFD, 0))
	}

	off0 := uint32(8)
	offExif := off0 + ifdSize(ifd0)
	offGPS := offExif + ifdSize(exifIFD)
	if exifIndex >= 0 {
		ifd0[exifIndex] = Long(tagExifIFD, offExif)
	}
	if gpsIndex >= 0 {
		ifd0[gpsIndex] = Long(tagGPSIFD, offGPS)
	}

	out := []byte{'I', 'I', 0x2A, 0x00}
	out = le.AppendUint32(out, off0)
	out = append(out, encodeIFD(ifd0, off0)...)
	out = append(out, encodeIFD(exifIFD, offExif)...)
	out = append(out, encodeIFD(gpsIFD, offGPS)...)
	return append(out, trailer...)
}

func ifdSize(tags []Tag) uint32 {
	if len(tags) == 0 {
		return 0
	}
	size := uint32(2 + 12*len(tags) + 4)
	for _, t := range tags {
		if len(t.Value) > 4 {
			size += uint32(len(t.Value) + len(t.Value)%2)
		}
	}
	return size
}

func encodeIFD(tags []Tag, offset uint32) []byte {
	if len(tags) == 0 {
		return nil
	}

	var entries, data []byte
	dataOffset := offset + uint32(2+12*len(tags)+4)
	entries = le.AppendUint16(entries, uint16(len(tags)))
	for _, t := range tags {
		entries = le.AppendUint16(entries, t.ID)
		entries = le.AppendUint16(entries, t.Type)
		entries = le.AppendUint32(entries, t.Count)
		if len(t.Value) <= 4 {
			var inline [4]byte
			copy(inline[:], t.Value)
			entries = append(entries, inline[:]...)
			continue
		}
		entries = le.AppendUint32(entries, dataOffset+uint32(len(data)))
		data = append(data, t.Value...)
		if len(t.Value)%2 == 1 {
			data = append(data, 0)
		}
	}
	entries = le.AppendUint32(entries, 0)
	return append(entries, data...)
}

// TIFFHeader builds an RGB TIFF whose IFD0 declares a grid of the given
// size while carrying no pixel data.
func TIFFHeader(width, height uint32) []byte {
	return TIFF([]Tag{
		Long(256, width),
		Long(257, height),
		Short(258, 8, 8, 8),
		Short(259, 1),
		Short(262, 2),
		Long(273, 8),
		Short(277, 3),
		Long(278, height),
		Long(279, 1),
	}, nil, nil)
}

// TIFFImage encodes an uncompressed 8-bit RGB TIFF image of the given size
// whose IFD0 also carries the extra tags and sub-IFDs.
func TIFFImage(width, height int, extra, exifIFD, gpsIFD []Tag) []byte {
	pix := make([]byte, width*height*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			pix[i] = uint8(x * 255 / max(width-1, 1))
			pix[i+1] = uint8(y * 255 / max(height-1, 1))
			pix[i+2] = 0x80
		}
	}

	build := func(stripOffset uint32) []Tag {
		tags := []Tag{
			Long(256, uint32(width)),
			Long(257, uint32(height)),
			Short(258, 8, 8, 8),
			Short(259, 1),
			Short(262, 2),
			Long(273, stripOffset),
			Short(277, 3),
			Long(278, uint32(height)),
			Long(279, uint32(len(pix))),
		}
		return append(tags, extra...)
	}

	header := TIFF(build(0), exifIFD, gpsIFD)
	return tiffWithTrailer(build(uint32(len(header))), exifIFD, gpsIFD, pix)
}
