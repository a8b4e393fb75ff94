// Package codec decodes and encodes full pixel grids for the supported
// image formats.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"metazip/internal/format"
)

// decoderNames maps formats to the names registered with image.RegisterFormat.
var decoderNames = map[format.Format]string{
	format.FormatJPEG: "jpeg",
	format.FormatPNG:  "png",
	format.FormatWebP: "webp",
	format.FormatTIFF: "tiff",
}

// DefaultMaxDecodeBytes bounds the RGBA size of a grid Decode will allocate.
const DefaultMaxDecodeBytes = 512 << 20

// Options controls pixel decoding and encoding.
type Options struct {
	JPEGQuality     int
	TIFFCompression tiff.CompressionType
	// MaxDecodeBytes is the largest width*height*4 accepted by Decode.
	MaxDecodeBytes int64
}

// Option configures Options.
type Option func(*Options)

// WithJPEGQuality sets the JPEG encoder quality (1-100).
func WithJPEGQuality(q int) Option {
	return func(o *Options) { o.JPEGQuality = q }
}

// WithTIFFCompression sets the TIFF encoder compression scheme.
func WithTIFFCompression(c tiff.CompressionType) Option {
	return func(o *Options) { o.TIFFCompression = c }
}

// WithMaxDecodeBytes sets the decode budget. Values <= 0 keep the default.
func WithMaxDecodeBytes(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxDecodeBytes = n
		}
	}
}

// DefaultOptions returns the defaults: quality 95 JPEG, uncompressed TIFF
// and a 512 MiB decode budget.
func DefaultOptions() Options {
	return Options{
		JPEGQuality:     95,
		TIFFCompression: tiff.Uncompressed,
		MaxDecodeBytes:  DefaultMaxDecodeBytes,
	}
}

func newOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Decode decodes the full pixel grid of data as format f. EXIF orientation
// is not applied; the grid is returned as stored. Headers declaring a grid
// larger than the decode budget are rejected before any pixel allocation.
func Decode(data []byte, f format.Format, opts ...Option) (image.Image, error) {
	want, ok := decoderNames[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, f)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if name != want {
		return nil, fmt.Errorf("%w: %s decoded as %s", ErrFormatMismatch, f, name)
	}
	if limit := newOptions(opts).MaxDecodeBytes; gridBytes(cfg) > limit {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, limit is %d",
			ErrImageTooLarge, cfg.Width, cfg.Height, gridBytes(cfg), limit)
	}

	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(false))
}

// gridBytes is the RGBA size of the grid cfg declares. Negative sizes count
// as unbounded.
func gridBytes(cfg image.Config) int64 {
	if cfg.Width < 0 || cfg.Height < 0 {
		return math.MaxInt64
	}
	w, h := int64(cfg.Width), int64(cfg.Height)
	if w != 0 && h > math.MaxInt64/4/w {
		return math.MaxInt64
	}
	return w * h * 4
}

// Encode serializes img as a fresh container of format f.
func Encode(img image.Image, f format.Format, opts ...Option) ([]byte, error) {
	o := newOptions(opts)

	var buf bytes.Buffer
	if err := encodeTo(&buf, img, f, o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeTo(w io.Writer, img image.Image, f format.Format, o Options) error {
	switch f {
	case format.FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(o.JPEGQuality))
	case format.FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case format.FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: o.TIFFCompression})
	default:
		return fmt.Errorf("%w: %s", ErrNoEncoder, f)
	}
}
