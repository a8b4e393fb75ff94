package cleaner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"metazip/internal/format"
)

// CleanName returns the output name for a cleaned file: the base name with
// suffix inserted before the extension. A name without an extension gets
// the canonical extension of f.
func CleanName(name, suffix string, f format.Format) string {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" || base == "" {
		if exts := f.Extensions(); len(exts) > 0 {
			ext = exts[0]
		} else {
			ext = ".jpg"
		}
		if base == "" {
			base = "image"
		}
	}
	return base + suffix + ext
}

// generateUniqueFilename returns a path that neither exists on disk nor is
// claimed, adding a _N counter before the extension.
func generateUniqueFilename(basePath string, claimed func(string) bool) string {
	dir := filepath.Dir(basePath)
	name := filepath.Base(basePath)
	ext := filepath.Ext(name)
	nameWithoutExt := strings.TrimSuffix(name, ext)

	for counter := 1; ; counter++ {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", nameWithoutExt, counter, ext))
		if claimed(newPath) {
			continue
		}
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}
}
