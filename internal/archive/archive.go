// Package archive bundles cleaned images into a single ZIP file.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one file stored in an archive.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// ShouldZip reports whether a batch of n cleaned files is bundled. A
// non-positive threshold disables bundling.
func ShouldZip(n, threshold int) bool {
	return threshold > 0 && n >= threshold
}

// Name returns the archive file name for a bundle created at t.
func Name(t time.Time) string {
	return fmt.Sprintf("metazip_%d.zip", t.Unix())
}

// WriteZip writes entries to w. Entry names are reduced to their base name
// and repeated names get a _N suffix before the extension.
func WriteZip(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(entries))

	for _, e := range entries {
		name := uniqueName(filepath.Base(e.Name), seen)
		hdr := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		if !e.Modified.IsZero() {
			hdr.Modified = e.Modified
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("write entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// WriteFile creates the archive in dir and returns its path.
func WriteFile(dir string, entries []Entry, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	path := filepath.Join(dir, Name(now))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	if err := WriteZip(f, entries); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename archive: %w", err)
	}
	return path, nil
}

func uniqueName(name string, seen map[string]int) string {
	n, dup := seen[name]
	if !dup {
		seen[name] = 1
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := n; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, taken := seen[candidate]; !taken {
			seen[name] = i + 1
			seen[candidate] = 1
			return candidate
		}
	}
}
