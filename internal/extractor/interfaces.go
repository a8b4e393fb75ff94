package extractor

import (
	"fmt"
)

// TagDecoder turns an image byte stream into decoded metadata fields.
type TagDecoder interface {
	// Decode returns the fields in the container's native order. An error
	// means no tag container could be decoded.
	Decode(data []byte) ([]Field, error)
}

// MetadataExtractor produces a categorized metadata listing for an image.
type MetadataExtractor interface {
	Extract(data []byte) Result
}

// Field is a decoded tag: its name and its rendered value including units.
type Field struct {
	Name  string
	Value string
}

// Category is the semantic bucket a tag falls into.
type Category int

const (
	CategoryOther Category = iota
	CategoryLocation
	CategoryCamera
	CategoryDateTime
	CategorySoftware
)

// CategoryOrder is the order categories are presented in.
var CategoryOrder = []Category{
	CategoryLocation,
	CategoryCamera,
	CategoryDateTime,
	CategorySoftware,
	CategoryOther,
}

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryLocation:
		return "location"
	case CategoryCamera:
		return "camera"
	case CategoryDateTime:
		return "datetime"
	case CategorySoftware:
		return "software"
	default:
		return "other"
	}
}

// Label returns the display heading for the category.
func (c Category) Label() string {
	switch c {
	case CategoryLocation:
		return "Location"
	case CategoryCamera:
		return "Camera"
	case CategoryDateTime:
		return "Date & Time"
	case CategorySoftware:
		return "Software"
	default:
		return "Other"
	}
}

// Sensitive reports whether tags in this category raise a result flag.
func (c Category) Sensitive() bool {
	switch c {
	case CategoryLocation, CategoryCamera, CategoryDateTime:
		return true
	default:
		return false
	}
}

// MarshalText encodes the category as its name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	for _, candidate := range CategoryOrder {
		if candidate.String() == string(text) {
			*c = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown metadata category %q", text)
}
