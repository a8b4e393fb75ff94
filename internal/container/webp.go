package container

import (
	"bytes"
	"encoding/binary"

	"metazip/internal/format"
)

const (
	webpChunkVP8X = "VP8X"
	webpChunkEXIF = "EXIF"
	webpChunkICC  = "ICCP"

	vp8xFlagICC  = 0x20
	vp8xFlagEXIF = 0x08
)

type riffChunk struct {
	id   string
	raw  []byte
	data []byte
}

// WebP is a WebP file split into RIFF chunks.
type WebP struct {
	chunks  []riffChunk
	trailer []byte
}

// ParseWebP splits the RIFF payload of data into chunks.
func ParseWebP(data []byte) (*WebP, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, malformed("missing RIFF/WEBP header")
	}

	riffSize := int(binary.LittleEndian.Uint32(data[4:8]))
	end := 8 + riffSize
	if riffSize < 4 || end > len(data) || end < 8 {
		return nil, malformed("RIFF size %d does not match file size %d", riffSize, len(data))
	}

	w := &WebP{trailer: data[end:]}
	err := scanRIFF(data, end, func(c riffChunk) bool {
		w.chunks = append(w.chunks, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(w.chunks) == 0 {
		return nil, malformed("WebP file has no chunks")
	}
	return w, nil
}

// webpEXIF returns the first EXIF chunk of data. The declared RIFF size is
// clipped to the bytes present, so a truncated file still yields an EXIF
// chunk stored before the cut.
func webpEXIF(data []byte) (payload []byte, ok bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return nil, false
	}
	end := min(8+int(binary.LittleEndian.Uint32(data[4:8])), len(data))
	_ = scanRIFF(data, end, func(c riffChunk) bool {
		if c.id == webpChunkEXIF {
			payload, ok = bytes.TrimPrefix(c.data, jpegExifHeader), true
			return false
		}
		return true
	})
	return payload, ok
}

// scanRIFF passes each chunk between offset 12 and end to visit until
// visit returns false.
func scanRIFF(data []byte, end int, visit func(riffChunk) bool) error {
	pos := 12
	for pos < end {
		if pos+8 > end {
			return malformed("truncated WebP chunk header at offset %d", pos)
		}
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		dataEnd := pos + 8 + size
		if size < 0 || dataEnd > end || dataEnd < pos {
			return malformed("WebP chunk %q overruns RIFF payload", id)
		}
		chunkEnd := dataEnd
		// Odd-sized chunks carry one padding byte.
		if size%2 == 1 && chunkEnd < end {
			chunkEnd++
		}

		if !visit(riffChunk{
			id:   id,
			raw:  data[pos:chunkEnd],
			data: data[pos+8 : dataEnd],
		}) {
			return nil
		}
		pos = chunkEnd
	}
	return nil
}

// Format implements Editor.
func (w *WebP) Format() format.Format {
	return format.FormatWebP
}

// Names implements Editor.
func (w *WebP) Names() []string {
	names := make([]string, len(w.chunks))
	for i, c := range w.chunks {
		names[i] = c.id
	}
	return names
}

// Segment implements Editor. An "Exif\0\0" prefix written by some encoders
// is removed so the payload always starts with the TIFF header.
func (w *WebP) Segment(kind Kind) ([]byte, bool) {
	id := webpChunkID(kind)
	for _, c := range w.chunks {
		if c.id != id {
			continue
		}
		if kind == KindEXIF {
			return bytes.TrimPrefix(c.data, jpegExifHeader), true
		}
		return c.data, true
	}
	return nil, false
}

// Remove implements Editor. The matching VP8X feature flag is cleared so the
// header keeps describing the chunks that are present.
func (w *WebP) Remove(kind Kind) bool {
	id := webpChunkID(kind)
	kept := w.chunks[:0:0]
	for _, c := range w.chunks {
		if c.id == id {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == len(w.chunks) {
		return false
	}
	w.chunks = kept

	flag := byte(vp8xFlagEXIF)
	if kind == KindICC {
		flag = vp8xFlagICC
	}
	w.clearVP8XFlag(flag)
	return true
}

// Bytes implements Editor.
func (w *WebP) Bytes() []byte {
	payload := 4
	for _, c := range w.chunks {
		payload += len(c.raw)
	}

	out := make([]byte, 0, 8+payload+len(w.trailer))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(payload))
	out = append(out, "WEBP"...)
	for _, c := range w.chunks {
		out = append(out, c.raw...)
	}
	return append(out, w.trailer...)
}

// clearVP8XFlag rewrites the VP8X chunk on a private copy so the caller's
// buffer is left untouched.
func (w *WebP) clearVP8XFlag(flag byte) {
	for i, c := range w.chunks {
		if c.id != webpChunkVP8X || len(c.data) == 0 || c.data[0]&flag == 0 {
			continue
		}
		raw := append([]byte(nil), c.raw...)
		raw[8] &^= flag
		w.chunks[i] = riffChunk{id: c.id, raw: raw, data: raw[8 : 8+len(c.data)]}
	}
}

func webpChunkID(kind Kind) string {
	if kind == KindICC {
		return webpChunkICC
	}
	return webpChunkEXIF
}
