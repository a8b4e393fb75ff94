package extractor

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"metazip/internal/fixture"
)

var sampleItems = []Item{
	{"Make", "Canon", CategoryCamera},
	{"Model", "Canon EOS 5D", CategoryCamera},
	{"Orientation", "row 0 at top and column 0 at left", CategoryOther},
	{"XResolution", "72 pixels per inch", CategoryOther},
	{"YResolution", "72 pixels per inch", CategoryOther},
	{"ResolutionUnit", "inch", CategoryOther},
	{"Software", "GIMP 2.10", CategorySoftware},
	{"DateTime", "2023:12:25 15:30:45", CategoryDateTime},
	{"ExposureTime", "1/500s", CategoryCamera},
	{"FNumber", "f/2.8", CategoryCamera},
	{"PhotographicSensitivity", "400", CategoryOther},
	{"ExifVersion", "2.31", CategoryOther},
	{"DateTimeOriginal", "2023:12:25 15:30:45", CategoryDateTime},
	{"FocalLength", "50 mm", CategoryCamera},
	{"LensModel", "EF50mm f/1.8 STM", CategoryCamera},
	{"Tag(Exif, 0x1234)", "7", CategoryOther},
	{"GPSVersionID", "2.3.0.0", CategoryLocation},
	{"GPSLatitudeRef", "N", CategoryLocation},
	{"GPSLatitude", `40° 26' 46.30" N`, CategoryLocation},
	{"GPSLongitudeRef", "W", CategoryLocation},
	{"GPSLongitude", `79° 58' 56.00" W`, CategoryLocation},
	{"GPSAltitudeRef", "0", CategoryLocation},
	{"GPSAltitude", "125 m", CategoryLocation},
}

func TestExtractContainers(t *testing.T) {
	exif := fixture.SampleEXIF()
	jpeg := fixture.JPEG(t, exif, nil)
	tests := []struct {
		name string
		data []byte
	}{
		{"JPEG", fixture.JPEG(t, exif, fixture.ICCProfile)},
		{"PNG", fixture.PNG(t, exif, nil)},
		{"WebP", fixture.WebP(exif, fixture.ICCProfile)},
		{"bare TIFF", exif},
		{"JPEG truncated after EXIF", jpeg[:2+10+len(exif)+3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.data)
			if !reflect.DeepEqual(res.Items, sampleItems) {
				t.Fatalf("Extract() items =\n%v\nwant\n%v", res.Items, sampleItems)
			}
			if !res.HasGPS || !res.HasCamera || !res.HasDateTime {
				t.Errorf("flags = gps:%v camera:%v datetime:%v, want all true", res.HasGPS, res.HasCamera, res.HasDateTime)
			}
		})
	}
}

func TestExtractSummary(t *testing.T) {
	res := Extract(fixture.JPEG(t, fixture.SampleEXIF(), nil))

	if res.Location == nil {
		t.Fatal("expected a decoded location")
	}
	wantLat := 40 + 26.0/60 + 46.30/3600
	wantLong := -(79 + 58.0/60 + 56.0/3600)
	if math.Abs(res.Location.Latitude-wantLat) > 1e-6 || math.Abs(res.Location.Longitude-wantLong) > 1e-6 {
		t.Errorf("location = %+v, want %.6f,%.6f", *res.Location, wantLat, wantLong)
	}

	if res.CapturedAt == nil {
		t.Fatal("expected a capture time")
	}
	if got := res.CapturedAt.Format("2006:01:02 15:04:05"); got != "2023:12:25 15:30:45" {
		t.Errorf("captured at = %s", got)
	}
}

func TestExtractWithoutMetadata(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"JPEG without EXIF", fixture.JPEG(t, nil, fixture.ICCProfile)},
		{"PNG without EXIF", fixture.PNG(t, nil, nil)},
		{"plain WebP", fixture.WebP(nil, nil)},
		{"text", []byte("definitely not an image")},
		{"empty", nil},
		{"corrupt EXIF", fixture.JPEG(t, []byte("II*\x00garbage"), nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Extract(tt.data)
			if !res.Empty() {
				t.Errorf("expected empty result, got %v", res.Items)
			}
			if res.HasGPS || res.HasCamera || res.HasDateTime {
				t.Error("flags must be false for an empty result")
			}
			if res.Items == nil {
				t.Error("items must be an empty list, not nil")
			}
		})
	}
}

func TestExtractSoftwareOnly(t *testing.T) {
	res := Extract(fixture.PNG(t, fixture.SoftwareOnlyEXIF(), nil))

	want := []Item{{"Software", "metazip", CategorySoftware}}
	if !reflect.DeepEqual(res.Items, want) {
		t.Fatalf("items = %v, want %v", res.Items, want)
	}
	if res.HasGPS || res.HasCamera || res.HasDateTime || res.Sensitive() {
		t.Error("software tags must not raise flags")
	}
	if res.Location != nil || res.CapturedAt != nil {
		t.Error("no summary expected without GPS or datetime tags")
	}
}

func TestExtractTIFFImage(t *testing.T) {
	data := fixture.TIFFImage(4, 2,
		[]fixture.Tag{fixture.ASCII(0x0110, "Scanner X")},
		nil,
		[]fixture.Tag{fixture.ASCII(0x0001, "S")},
	)

	res := Extract(data)
	keys := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		keys = append(keys, item.Key)
	}
	want := []string{
		"ImageWidth", "ImageLength", "BitsPerSample", "Compression",
		"PhotometricInterpretation", "StripOffsets", "SamplesPerPixel",
		"RowsPerStrip", "StripByteCounts", "Model", "GPSLatitudeRef",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	if res.Items[2].Value != "8, 8, 8" {
		t.Errorf("BitsPerSample = %q", res.Items[2].Value)
	}
	if !res.HasGPS || !res.HasCamera || res.HasDateTime {
		t.Errorf("flags = gps:%v camera:%v datetime:%v", res.HasGPS, res.HasCamera, res.HasDateTime)
	}
}

type stubDecoder struct {
	fields []Field
	err    error
}

func (s stubDecoder) Decode([]byte) ([]Field, error) {
	return s.fields, s.err
}

func TestExtractorWithDecoder(t *testing.T) {
	fields := []Field{
		{"GPSDateStamp", "2024:01:01"},
		{"ShutterSpeedValue", "8 EV"},
		{"CreateDate", "2024:01:01"},
		{"ProcessingSoftware", "x"},
		{"Copyright", "me"},
	}
	res := NewExtractor(stubDecoder{fields: fields}).Extract(nil)

	wantCats := []Category{CategoryLocation, CategoryCamera, CategoryDateTime, CategorySoftware, CategoryOther}
	for i, item := range res.Items {
		if item.Category != wantCats[i] {
			t.Errorf("%s category = %s, want %s", item.Key, item.Category, wantCats[i])
		}
	}
	if res.Location != nil || res.CapturedAt != nil {
		t.Error("custom decoders do not produce a summary")
	}

	res = NewExtractor(stubDecoder{err: errors.New("boom")}).Extract(nil)
	if !res.Empty() {
		t.Error("decoder failure must yield an empty result")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"GPSLatitude", CategoryLocation},
		{"gpsTimeStamp", CategoryLocation},
		{"DestLongitude", CategoryLocation},
		{"Make", CategoryCamera},
		{"LensModel", CategoryCamera},
		{"FocalLengthIn35mmFilm", CategoryCamera},
		{"ExposureTime", CategoryCamera},
		{"ISOSpeed", CategoryCamera},
		{"MaxApertureValue", CategoryCamera},
		{"DateTimeOriginal", CategoryDateTime},
		{"SubSecTime", CategoryDateTime},
		{"Software", CategorySoftware},
		{"ProcessingSoftware", CategorySoftware},
		{"SoftwareDate", CategoryDateTime},
		{"Copyright", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		if got := Categorize(tt.name); got != tt.want {
			t.Errorf("Categorize(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestGrouped(t *testing.T) {
	res := NewResult([]Field{
		{"Copyright", "a"},
		{"Software", "b"},
		{"Make", "c"},
		{"GPSAltitude", "d"},
		{"Model", "e"},
	})

	groups := res.Grouped()
	var got []string
	for _, g := range groups {
		for _, item := range g.Items {
			got = append(got, g.Category.String()+":"+item.Key)
		}
	}
	want := []string{"location:GPSAltitude", "camera:Make", "camera:Model", "software:Software", "other:Copyright"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Grouped() = %v, want %v", got, want)
	}
	if res.Count(CategoryCamera) != 2 {
		t.Errorf("Count(camera) = %d", res.Count(CategoryCamera))
	}
}

func TestResultJSON(t *testing.T) {
	raw, err := json.Marshal(NewResult([]Field{{"GPSAltitude", "12.5 m"}}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"items":[{"key":"GPSAltitude","value":"12.5 m","category":"location"}],"hasGPS":true,"hasCamera":false,"hasDateTime":false}`
	if string(raw) != want {
		t.Errorf("json = %s\nwant %s", raw, want)
	}

	raw, _ = json.Marshal(NewResult(nil))
	if !strings.Contains(string(raw), `"items":[]`) {
		t.Errorf("empty result json = %s", raw)
	}

	var back Result
	if err := json.Unmarshal([]byte(want), &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.Items[0].Category != CategoryLocation {
		t.Errorf("category = %s", back.Items[0].Category)
	}
}

func TestFormatValues(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatRat(72, 1), "72"},
		{formatRat(28, 10), "2.8"},
		{formatRat(1, 3), "0.3333"},
		{formatRat(5, 0), "5/0"},
		{formatExposure(1, 500), "1/500s"},
		{formatExposure(10, 1250), "1/125s"},
		{formatExposure(3, 10), "0.3s"},
		{formatExposure(2, 1), "2s"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
