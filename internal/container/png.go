package container

import (
	"bytes"
	"encoding/binary"

	"metazip/internal/format"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	pngChunkEXIF = "eXIf"
	pngChunkICC  = "iCCP"
	pngChunkEnd  = "IEND"
)

type pngChunk struct {
	name string
	raw  []byte
	data []byte
}

// PNG is a PNG file split into chunks. Chunks are copied with their original
// CRC, so untouched chunks re-serialize byte for byte.
type PNG struct {
	chunks  []pngChunk
	trailer []byte
}

// ParsePNG splits data into chunks up to and including IEND.
func ParsePNG(data []byte) (*PNG, error) {
	p := &PNG{}
	trailer, err := scanPNG(data, func(c pngChunk) bool {
		p.chunks = append(p.chunks, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	p.trailer = trailer
	return p, nil
}

// pngEXIF returns the data of the first eXIf chunk, ignoring whatever
// follows it.
func pngEXIF(data []byte) (payload []byte, ok bool) {
	_, _ = scanPNG(data, func(c pngChunk) bool {
		if c.name == pngChunkEXIF {
			payload, ok = c.data, true
			return false
		}
		return true
	})
	return payload, ok
}

// scanPNG passes each chunk up to and including IEND to visit and returns
// the bytes after IEND. When visit returns false the scan ends with a nil
// trailer and no error.
func scanPNG(data []byte, visit func(pngChunk) bool) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, malformed("missing PNG signature")
	}

	pos := len(pngSignature)
	for {
		if pos+12 > len(data) {
			return nil, malformed("PNG ends before IEND chunk")
		}
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		name := data[pos+4 : pos+8]
		if !validChunkName(name) {
			return nil, malformed("invalid PNG chunk name %q at offset %d", name, pos)
		}
		end := pos + 12 + length
		if length < 0 || end > len(data) || end < pos {
			return nil, malformed("PNG chunk %q overruns file", name)
		}

		chunk := pngChunk{
			name: string(name),
			raw:  data[pos:end],
			data: data[pos+8 : pos+8+length],
		}
		if !visit(chunk) {
			return nil, nil
		}
		pos = end

		if chunk.name == pngChunkEnd {
			return data[pos:], nil
		}
	}
}

// Format implements Editor.
func (p *PNG) Format() format.Format {
	return format.FormatPNG
}

// Names implements Editor.
func (p *PNG) Names() []string {
	names := make([]string, len(p.chunks))
	for i, c := range p.chunks {
		names[i] = c.name
	}
	return names
}

// Segment implements Editor. The ICC payload is the raw iCCP chunk data
// (profile name, compression method and compressed profile).
func (p *PNG) Segment(kind Kind) ([]byte, bool) {
	name := pngChunkName(kind)
	for _, c := range p.chunks {
		if c.name == name {
			return c.data, true
		}
	}
	return nil, false
}

// Remove implements Editor.
func (p *PNG) Remove(kind Kind) bool {
	name := pngChunkName(kind)
	kept := p.chunks[:0:0]
	for _, c := range p.chunks {
		if c.name == name {
			continue
		}
		kept = append(kept, c)
	}
	removed := len(kept) != len(p.chunks)
	p.chunks = kept
	return removed
}

// Bytes implements Editor.
func (p *PNG) Bytes() []byte {
	size := len(pngSignature) + len(p.trailer)
	for _, c := range p.chunks {
		size += len(c.raw)
	}

	out := make([]byte, 0, size)
	out = append(out, pngSignature...)
	for _, c := range p.chunks {
		out = append(out, c.raw...)
	}
	return append(out, p.trailer...)
}

func pngChunkName(kind Kind) string {
	if kind == KindICC {
		return pngChunkICC
	}
	return pngChunkEXIF
}

func validChunkName(name []byte) bool {
	for _, b := range name {
		if !(b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z') {
			return false
		}
	}
	return true
}
