package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"metazip/internal/format"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
	markerTEM  = 0x01
)

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	jpegICCHeader  = []byte("ICC_PROFILE\x00")
)

// iccChunkHeaderLength covers "ICC_PROFILE\0" plus sequence number and count.
const iccChunkHeaderLength = 14

type jpegSegment struct {
	marker  byte
	raw     []byte
	payload []byte
}

// JPEG is a JPEG file split into its marker segments. Everything from the
// first SOS marker onwards is kept as an opaque tail.
type JPEG struct {
	segments []jpegSegment
	tail     []byte
}

// ParseJPEG splits data into marker segments.
func ParseJPEG(data []byte) (*JPEG, error) {
	j := &JPEG{}
	tail, err := scanJPEG(data, func(s jpegSegment) bool {
		j.segments = append(j.segments, s)
		return true
	})
	if err != nil {
		return nil, err
	}
	j.tail = tail
	return j, nil
}

// jpegEXIF returns the payload of the first APP1 Exif segment. Scanning
// stops there, so damage after the segment does not matter.
func jpegEXIF(data []byte) (payload []byte, ok bool) {
	_, _ = scanJPEG(data, func(s jpegSegment) bool {
		if isJPEGExif(s) {
			payload, ok = s.payload[len(jpegExifHeader):], true
			return false
		}
		return true
	})
	return payload, ok
}

// scanJPEG passes each marker segment before SOS or EOI to visit and
// returns the tail starting at that marker. When visit returns false the
// scan ends with a nil tail and no error.
func scanJPEG(data []byte, visit func(jpegSegment) bool) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, malformed("missing JPEG SOI marker")
	}

	pos := 2
	for {
		if pos >= len(data) {
			return nil, malformed("JPEG ends before SOS or EOI marker")
		}
		start := pos
		if data[pos] != 0xFF {
			return nil, malformed("expected JPEG marker at offset %d, found 0x%02X", pos, data[pos])
		}

		// Skip fill bytes; they stay attached to the following segment.
		for pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
		}
		if pos+1 >= len(data) {
			return nil, malformed("truncated JPEG marker at offset %d", start)
		}
		marker := data[pos+1]
		pos += 2

		switch {
		case marker == markerEOI:
			return data[start:], nil
		case marker == markerSOI || marker == 0x00:
			return nil, malformed("unexpected JPEG marker 0x%02X at offset %d", marker, start)
		case marker == markerTEM || (marker >= 0xD0 && marker <= 0xD7):
			if !visit(jpegSegment{marker: marker, raw: data[start:pos]}) {
				return nil, nil
			}
			continue
		}

		if pos+2 > len(data) {
			return nil, malformed("truncated length of JPEG segment 0x%02X", marker)
		}
		length := int(binary.BigEndian.Uint16(data[pos : pos+2]))
		if length < 2 {
			return nil, malformed("invalid JPEG segment length %d", length)
		}
		end := pos + length
		if end > len(data) {
			return nil, malformed("JPEG segment 0x%02X overruns file (%d > %d)", marker, end, len(data))
		}

		if marker == markerSOS {
			return data[start:], nil
		}

		if !visit(jpegSegment{
			marker:  marker,
			raw:     data[start:end],
			payload: data[pos+2 : end],
		}) {
			return nil, nil
		}
		pos = end
	}
}

// Format implements Editor.
func (j *JPEG) Format() format.Format {
	return format.FormatJPEG
}

// Names implements Editor.
func (j *JPEG) Names() []string {
	names := make([]string, 0, len(j.segments)+2)
	names = append(names, "SOI")
	for _, s := range j.segments {
		names = append(names, jpegSegmentName(s))
	}
	if len(j.tail) > 0 {
		names = append(names, jpegMarkerName(j.tail[len(j.tail)-len(bytes.TrimLeft(j.tail, "\xff"))]))
	}
	return names
}

// Segment implements Editor. For ICC profiles split across several APP2
// segments the chunk payloads are concatenated in file order.
func (j *JPEG) Segment(kind Kind) ([]byte, bool) {
	switch kind {
	case KindEXIF:
		for _, s := range j.segments {
			if isJPEGExif(s) {
				return s.payload[len(jpegExifHeader):], true
			}
		}
	case KindICC:
		var profile []byte
		found := false
		for _, s := range j.segments {
			if isJPEGICC(s) && len(s.payload) >= iccChunkHeaderLength {
				profile = append(profile, s.payload[iccChunkHeaderLength:]...)
				found = true
			}
		}
		return profile, found
	}
	return nil, false
}

// Remove implements Editor.
func (j *JPEG) Remove(kind Kind) bool {
	match := isJPEGExif
	if kind == KindICC {
		match = isJPEGICC
	}

	kept := j.segments[:0:0]
	for _, s := range j.segments {
		if match(s) {
			continue
		}
		kept = append(kept, s)
	}
	removed := len(kept) != len(j.segments)
	j.segments = kept
	return removed
}

// Bytes implements Editor.
func (j *JPEG) Bytes() []byte {
	size := 2 + len(j.tail)
	for _, s := range j.segments {
		size += len(s.raw)
	}

	out := make([]byte, 0, size)
	out = append(out, 0xFF, markerSOI)
	for _, s := range j.segments {
		out = append(out, s.raw...)
	}
	return append(out, j.tail...)
}

func isJPEGExif(s jpegSegment) bool {
	return s.marker == markerAPP1 && bytes.HasPrefix(s.payload, jpegExifHeader)
}

func isJPEGICC(s jpegSegment) bool {
	return s.marker == markerAPP2 && bytes.HasPrefix(s.payload, jpegICCHeader)
}

func jpegSegmentName(s jpegSegment) string {
	name := jpegMarkerName(s.marker)
	switch {
	case isJPEGExif(s):
		return name + "(Exif)"
	case isJPEGICC(s):
		return name + "(ICC)"
	}
	return name
}

func jpegMarkerName(marker byte) string {
	switch {
	case marker == markerSOS:
		return "SOS"
	case marker == markerEOI:
		return "EOI"
	case marker == 0xC4:
		return "DHT"
	case marker == 0xDB:
		return "DQT"
	case marker == 0xDD:
		return "DRI"
	case marker == 0xFE:
		return "COM"
	case marker >= 0xE0 && marker <= 0xEF:
		return fmt.Sprintf("APP%d", marker-0xE0)
	case marker >= 0xC0 && marker <= 0xCF:
		return fmt.Sprintf("SOF%d", marker-0xC0)
	case marker >= 0xD0 && marker <= 0xD7:
		return fmt.Sprintf("RST%d", marker-0xD0)
	}
	return fmt.Sprintf("0x%02X", marker)
}
