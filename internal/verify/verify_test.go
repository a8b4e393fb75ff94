package verify

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"metazip/internal/fixture"
	"metazip/internal/stripper"
)

func TestResidual(t *testing.T) {
	fields := map[string]interface{}{
		"SourceFile":                   "a.jpg",
		"File:FileName":                "a.jpg",
		"EXIF:Make":                    "Canon",
		"EXIF:GPSLatitude":             "40 deg",
		"ICC_Profile:ProfileClass":     "Display Device Profile",
		"MakerNotes:SerialNumber":      "123",
		"Composite:GPSPosition":        "40 deg, 3 deg",
		"PNG:ImageWidth":               16,
		"ExifTool:ExifToolVersion":     12.4,
		"XMP:CreatorTool":              "editor",
		"JFIF:JFIFVersion":             "1.01",
		"EXIFMalformedWithoutGroupKey": true,
	}
	want := []string{
		"EXIF:GPSLatitude",
		"EXIF:Make",
		"ICC_Profile:ProfileClass",
		"MakerNotes:SerialNumber",
	}
	if got := Residual(fields); !reflect.DeepEqual(got, want) {
		t.Errorf("Residual = %v, want %v", got, want)
	}
}

func TestResidualEmpty(t *testing.T) {
	got := Residual(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Residual(nil) = %#v, want empty non-nil slice", got)
	}
	if !(Finding{}).Clean() {
		t.Error("zero Finding should be clean")
	}
}

func TestNopVerifier(t *testing.T) {
	var v Verifier = NopVerifier{}
	f, err := v.Verify(context.Background(), "x.jpg")
	if err != nil || !f.Clean() || f.Path != "x.jpg" {
		t.Errorf("Verify = %+v, %v", f, err)
	}
	if err := v.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestExiftoolVerifier(t *testing.T) {
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}
	v, err := NewExiftoolVerifier()
	if err != nil {
		t.Fatalf("NewExiftoolVerifier: %v", err)
	}
	defer v.Close()

	dir := t.TempDir()
	orig := fixture.JPEG(t, fixture.SampleEXIF(), fixture.ICCProfile)
	cleaned, err := stripper.Strip(orig)
	if err != nil {
		t.Fatalf("Strip: %v", err)
	}

	origPath := filepath.Join(dir, "orig.jpg")
	cleanPath := filepath.Join(dir, "clean.jpg")
	if err := os.WriteFile(origPath, orig, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cleanPath, cleaned, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	f, err := v.Verify(ctx, origPath)
	if err != nil {
		t.Fatalf("Verify original: %v", err)
	}
	if f.Clean() {
		t.Error("original should report residual tags")
	}

	f, err = v.Verify(ctx, cleanPath)
	if err != nil {
		t.Fatalf("Verify cleaned: %v", err)
	}
	if !f.Clean() {
		t.Errorf("cleaned file still has %v", f.Residual)
	}

	if _, err := v.Verify(ctx, filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}
