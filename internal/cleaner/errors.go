package cleaner

import "errors"

var (
	// ErrFileTooLarge is returned for inputs above limits.max_file_size.
	ErrFileTooLarge = errors.New("file too large")
	// ErrNoInputs is returned when no supported file was found.
	ErrNoInputs = errors.New("no supported files found")
)
