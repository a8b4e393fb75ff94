// Package verify re-reads cleaned files with exiftool and reports any
// privacy-relevant metadata that survived cleaning.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/barasher/go-exiftool"
)

// ErrUnavailable is returned when the exiftool binary cannot be started.
var ErrUnavailable = errors.New("exiftool unavailable")

// Finding lists the residual tags found in one file.
type Finding struct {
	Path     string   `json:"path"`
	Residual []string `json:"residual"`
}

// Clean reports whether no residual tag was found.
func (f Finding) Clean() bool { return len(f.Residual) == 0 }

// Verifier checks cleaned files for leftover metadata.
type Verifier interface {
	Verify(ctx context.Context, path string) (Finding, error)
	Close() error
}

// NopVerifier accepts every file without reading it.
type NopVerifier struct{}

// Verify implements Verifier.
func (NopVerifier) Verify(_ context.Context, path string) (Finding, error) {
	return Finding{Path: path}, nil
}

// Close implements Verifier.
func (NopVerifier) Close() error { return nil }

// ExiftoolVerifier runs a single long-lived exiftool process.
type ExiftoolVerifier struct {
	et *exiftool.Exiftool
}

// NewExiftoolVerifier starts exiftool with group-prefixed tag names.
func NewExiftoolVerifier(opts ...func(*exiftool.Exiftool) error) (*ExiftoolVerifier, error) {
	opts = append([]func(*exiftool.Exiftool) error{exiftool.PrintGroupNames("0")}, opts...)
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &ExiftoolVerifier{et: et}, nil
}

// Verify reads path and returns the privacy-relevant tags still present.
func (v *ExiftoolVerifier) Verify(ctx context.Context, path string) (Finding, error) {
	if err := ctx.Err(); err != nil {
		return Finding{}, err
	}
	fms := v.et.ExtractMetadata(path)
	if len(fms) == 0 {
		return Finding{}, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if fms[0].Err != nil {
		return Finding{}, fmt.Errorf("read %s: %w", path, fms[0].Err)
	}
	return Finding{Path: path, Residual: Residual(fms[0].Fields)}, nil
}

// Close stops the exiftool process.
func (v *ExiftoolVerifier) Close() error {
	return v.et.Close()
}

// privacyGroups are the exiftool family 0 groups removed by cleaning.
var privacyGroups = map[string]struct{}{
	"EXIF":        {},
	"MakerNotes":  {},
	"ICC_Profile": {},
}

// Residual filters exiftool's group-prefixed fields down to the sorted names
// of tags that cleaning should have removed.
func Residual(fields map[string]interface{}) []string {
	out := make([]string, 0)
	for key := range fields {
		group, _, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		if _, ok := privacyGroups[group]; ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
