// Package engine exposes the inspect and strip operations over in-memory
// image buffers. Operations are stateless and safe for concurrent use.
package engine

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"metazip/internal/codec"
	"metazip/internal/extractor"
	"metazip/internal/format"
	"metazip/internal/savings"
	"metazip/internal/stripper"
)

// Engine bundles an extractor and a stripper.
type Engine struct {
	extractor extractor.MetadataExtractor
	stripper  *stripper.Stripper
	codecOpts []codec.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithCodecOptions sets the pixel codec options used for re-encoded output
// and dimension queries.
func WithCodecOptions(opts ...codec.Option) Option {
	return func(e *Engine) {
		e.codecOpts = opts
		e.stripper = stripper.New(opts...)
	}
}

// WithExtractor replaces the metadata extractor.
func WithExtractor(x extractor.MetadataExtractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		extractor: extractor.NewEXIFExtractor(),
		stripper:  stripper.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var std = New()

// ExtractMetadata lists the metadata in data. It never fails: unreadable
// input yields an empty result.
func ExtractMetadata(data []byte) extractor.Result { return std.ExtractMetadata(data) }

// StripMetadata returns data without EXIF and ICC metadata.
func StripMetadata(data []byte) ([]byte, error) { return std.StripMetadata(data) }

// CalculateSavings compares an original and a cleaned size.
func CalculateSavings(original, cleaned uint32) savings.Result {
	return savings.Calculate(original, cleaned)
}

// GetDimensions decodes data and reports its pixel size.
func GetDimensions(data []byte) (codec.Dimensions, error) { return std.GetDimensions(data) }

// ExtractMetadata lists the metadata in data.
func (e *Engine) ExtractMetadata(data []byte) (res extractor.Result) {
	defer func() {
		if r := recover(); r != nil {
			reportPanic("extract_metadata", r)
			res = extractor.NewResult(nil)
		}
	}()
	return e.extractor.Extract(data)
}

// StripMetadata returns data without EXIF and ICC metadata.
func (e *Engine) StripMetadata(data []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, reportPanic("strip_metadata", r)
		}
	}()
	return e.stripper.Strip(data)
}

// GetDimensions decodes data and reports its pixel size.
func (e *Engine) GetDimensions(data []byte) (dims codec.Dimensions, err error) {
	defer func() {
		if r := recover(); r != nil {
			dims, err = codec.Dimensions{}, reportPanic("get_dimensions", r)
		}
	}()
	return codec.ReadDimensions(data, e.codecOpts...)
}

// Report is the before and after view of one cleaned image.
type Report struct {
	Format       format.Format     `json:"format"`
	Strategy     string            `json:"strategy"`
	Removed      []string          `json:"removed"`
	OriginalSize uint32            `json:"originalSize"`
	CleanedSize  uint32            `json:"cleanedSize"`
	Savings      savings.Result    `json:"savings"`
	Original     extractor.Result  `json:"original"`
	Cleaned      extractor.Result  `json:"cleaned"`
	Dimensions   *codec.Dimensions `json:"dimensions,omitempty"`
	Data         []byte            `json:"data"`
}

// Process extracts the original metadata, strips data and reads its
// dimensions concurrently, then inspects the cleaned output. Dimensions are
// best effort and left nil when the pixel data cannot be decoded.
func (e *Engine) Process(ctx context.Context, data []byte) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{OriginalSize: clampSize(len(data))}

	var g errgroup.Group
	g.Go(func() error {
		rep.Original = e.ExtractMetadata(data)
		return nil
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = reportPanic("process", r)
			}
		}()
		out, err := e.stripper.StripDetailed(data)
		if err != nil {
			return err
		}
		rep.Format = out.Format
		rep.Strategy = out.Strategy.String()
		rep.Data = out.Data
		rep.Removed = make([]string, 0, len(out.Removed))
		for _, kind := range out.Removed {
			rep.Removed = append(rep.Removed, kind.String())
		}
		return nil
	})
	g.Go(func() error {
		if dims, err := e.GetDimensions(data); err == nil {
			rep.Dimensions = &dims
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep.Cleaned = e.ExtractMetadata(rep.Data)
	rep.CleanedSize = clampSize(len(rep.Data))
	rep.Savings = savings.Calculate(rep.OriginalSize, rep.CleanedSize)
	return rep, nil
}

// Process runs Engine.Process on the default engine.
func Process(ctx context.Context, data []byte) (*Report, error) {
	return std.Process(ctx, data)
}

func clampSize(n int) uint32 {
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
