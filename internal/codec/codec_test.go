package codec

import (
	"errors"
	"testing"

	"metazip/internal/fixture"
	"metazip/internal/format"
)

func TestReadDimensions(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		width  uint32
		height uint32
	}{
		{"JPEG", fixture.JPEG(t, fixture.SampleEXIF(), nil), 16, 8},
		{"PNG", fixture.PNG(t, nil, fixture.ICCProfile), 16, 8},
		{"WebP", fixture.WebP(nil, nil), 1, 1},
		{"extended WebP", fixture.WebP(fixture.SampleEXIF(), fixture.ICCProfile), 1, 1},
		{"TIFF", fixture.TIFFImage(5, 3, nil, nil, nil), 5, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dims, err := ReadDimensions(tt.data)
			if err != nil {
				t.Fatalf("ReadDimensions() error = %v", err)
			}
			if dims.Width != tt.width || dims.Height != tt.height {
				t.Errorf("ReadDimensions() = %dx%d, want %dx%d", dims.Width, dims.Height, tt.width, tt.height)
			}
		})
	}
}

func TestReadDimensionsErrors(t *testing.T) {
	_, err := ReadDimensions([]byte("just some plain text here"))
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("plain text error = %v, want %v", err, ErrUnsupportedImage)
	}
	if err != nil && err.Error() != "unsupported image format" {
		t.Errorf("plain text message = %q", err.Error())
	}

	data := fixture.JPEG(t, nil, nil)
	_, err = ReadDimensions(data[:len(data)/2])
	if !errors.Is(err, ErrLoadImage) {
		t.Errorf("truncated JPEG error = %v, want %v", err, ErrLoadImage)
	}
}

func TestDecodeFormatMismatch(t *testing.T) {
	_, err := Decode(fixture.PNG(t, nil, nil), format.FormatJPEG)
	if !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Decode() error = %v, want %v", err, ErrFormatMismatch)
	}
}

func TestEncodeLossless(t *testing.T) {
	src := fixture.Image(9, 7)

	for _, f := range []format.Format{format.FormatPNG, format.FormatTIFF} {
		t.Run(f.String(), func(t *testing.T) {
			data, err := Encode(src, f)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got, _ := format.Detect(data); got != f {
				t.Fatalf("encoded data detected as %s", got)
			}
			img, err := Decode(data, f)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !fixture.SamePixels(src, img) {
				t.Error("pixels changed after encode/decode")
			}
		})
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := Encode(fixture.Image(9, 7), format.FormatJPEG, WithJPEGQuality(80))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	dims, err := ReadDimensions(data)
	if err != nil {
		t.Fatalf("ReadDimensions() error = %v", err)
	}
	if dims != (Dimensions{Width: 9, Height: 7}) {
		t.Errorf("dimensions = %+v", dims)
	}
}

func TestEncodeWebP(t *testing.T) {
	_, err := Encode(fixture.Image(2, 2), format.FormatWebP)
	if !errors.Is(err, ErrNoEncoder) {
		t.Errorf("Encode() error = %v, want %v", err, ErrNoEncoder)
	}
}

func TestDecodeBudget(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"PNG 20000x20000", fixture.PNGHeader(20000, 20000)},
		{"PNG 60000x60000", fixture.PNGHeader(60000, 60000)},
		{"TIFF 40000x40000", fixture.TIFFHeader(40000, 40000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDimensions(tt.data)
			if !errors.Is(err, ErrLoadImage) || !errors.Is(err, ErrImageTooLarge) {
				t.Errorf("ReadDimensions() error = %v, want %v and %v", err, ErrLoadImage, ErrImageTooLarge)
			}
		})
	}
}

func TestWithMaxDecodeBytes(t *testing.T) {
	data := fixture.PNG(t, nil, nil)

	// 16x8 RGBA needs exactly 512 bytes.
	if _, err := Decode(data, format.FormatPNG, WithMaxDecodeBytes(511)); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Decode() under budget error = %v, want %v", err, ErrImageTooLarge)
	}
	if _, err := Decode(data, format.FormatPNG, WithMaxDecodeBytes(512)); err != nil {
		t.Errorf("Decode() at budget error = %v", err)
	}
	if _, err := Decode(data, format.FormatPNG, WithMaxDecodeBytes(0)); err != nil {
		t.Errorf("Decode() with default budget error = %v", err)
	}
}
