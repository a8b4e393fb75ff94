package engine

import (
	"encoding/json"
	"fmt"
)

// marshal is swapped in tests to exercise encoder failures.
var marshal = json.Marshal

func encode(v interface{}) ([]byte, error) {
	raw, err := marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return raw, nil
}

// ExtractMetadataJSON returns the metadata result as JSON.
func ExtractMetadataJSON(data []byte) ([]byte, error) { return std.ExtractMetadataJSON(data) }

// GetDimensionsJSON returns {"width":..,"height":..} for data.
func GetDimensionsJSON(data []byte) ([]byte, error) { return std.GetDimensionsJSON(data) }

// ExtractMetadataJSON returns e's metadata result as JSON.
func (e *Engine) ExtractMetadataJSON(data []byte) ([]byte, error) {
	return encode(e.ExtractMetadata(data))
}

// GetDimensionsJSON returns e's dimensions of data as JSON, honoring its
// codec options.
func (e *Engine) GetDimensionsJSON(data []byte) ([]byte, error) {
	dims, err := e.GetDimensions(data)
	if err != nil {
		return nil, err
	}
	return encode(dims)
}

// CalculateSavingsJSON returns the savings as JSON. An encoding failure
// yields nil instead of an error.
func CalculateSavingsJSON(original, cleaned uint32) []byte {
	raw, err := encode(CalculateSavings(original, cleaned))
	if err != nil {
		return nil
	}
	return raw
}

// ReportJSON returns rep as JSON.
func ReportJSON(rep *Report) ([]byte, error) {
	return encode(rep)
}
