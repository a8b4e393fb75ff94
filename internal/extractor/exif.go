package extractor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
	"github.com/rwcarlsen/goexif/tiff"

	"metazip/internal/container"
)

// maxIFDDepth bounds sub-IFD recursion.
const maxIFDDepth = 4

// goexif keeps its parser list in an unguarded global, so the vendor
// maker-note parsers are registered before any decode can run.
func init() {
	exif.RegisterParsers(mknote.All...)
}

// EXIFExtractor extracts categorized metadata from the EXIF block of an
// image. It holds no state and is safe for concurrent use.
type EXIFExtractor struct {
	decoder TagDecoder
}

// NewEXIFExtractor returns an extractor backed by the EXIF decoder.
func NewEXIFExtractor() *EXIFExtractor {
	return NewExtractor(EXIFDecoder{})
}

// NewExtractor returns an extractor backed by decoder.
func NewExtractor(decoder TagDecoder) *EXIFExtractor {
	return &EXIFExtractor{decoder: decoder}
}

var defaultExtractor = NewEXIFExtractor()

// Extract runs the default EXIF extractor over data.
func Extract(data []byte) Result {
	return defaultExtractor.Extract(data)
}

// Extract returns the metadata found in data. Decode failures are not
// errors: they yield an empty result with every flag false.
func (e *EXIFExtractor) Extract(data []byte) Result {
	fields, err := e.decoder.Decode(data)
	if err != nil {
		return NewResult(nil)
	}

	res := NewResult(fields)
	if _, ok := e.decoder.(EXIFDecoder); ok && (res.HasGPS || res.HasDateTime) {
		res.Location, res.CapturedAt = summarize(data)
	}
	return res
}

// EXIFDecoder decodes the EXIF block of a JPEG, PNG, WebP or TIFF byte
// stream. Fields come in directory order: IFD0 with its Exif, GPS and
// Interop sub-directories expanded where their pointers sit, then IFD1,
// then any maker-note fields sorted by name.
type EXIFDecoder struct{}

// Decode implements TagDecoder.
func (EXIFDecoder) Decode(data []byte) (fields []Field, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields, err = nil, fmt.Errorf("%w: %v", ErrDecode, r)
		}
	}()

	payload, ok := container.ExtractEXIF(data)
	if !ok {
		return nil, ErrNoEXIF
	}

	fields, err = walkTIFF(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return append(fields, makerNoteFields(payload)...), nil
}

type ifdWalker struct {
	r       *bytes.Reader
	order   binary.ByteOrder
	visited map[int64]bool
	fields  []Field
}

func walkTIFF(payload []byte) ([]Field, error) {
	t, err := tiff.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	w := &ifdWalker{
		r:       bytes.NewReader(payload),
		order:   t.Order,
		visited: make(map[int64]bool),
	}
	for i, dir := range t.Dirs {
		kind := ifdPrimary
		if i > 0 {
			kind = ifdThumbnail
		}
		w.walk(dir, kind, 0)
	}
	return w.fields, nil
}

func (w *ifdWalker) walk(dir *tiff.Dir, kind ifdKind, depth int) {
	siblings := make(map[uint16]*tiff.Tag, len(dir.Tags))
	for _, tag := range dir.Tags {
		siblings[tag.Id] = tag
	}

	for _, tag := range dir.Tags {
		if sub, ok := subIFD(kind, tag.Id); ok {
			w.descend(tag, sub, depth+1)
			continue
		}
		w.fields = append(w.fields, Field{
			Name:  tagName(kind, tag.Id),
			Value: renderValue(kind, tag, siblings),
		})
	}
}

// descend decodes the sub-directory a pointer tag refers to. Unreadable or
// already visited directories are skipped.
func (w *ifdWalker) descend(pointer *tiff.Tag, kind ifdKind, depth int) {
	offset, err := pointer.Int64(0)
	if err != nil || depth > maxIFDDepth || w.visited[offset] {
		return
	}
	w.visited[offset] = true

	if _, err := w.r.Seek(offset, io.SeekStart); err != nil {
		return
	}
	dir, _, err := tiff.DecodeDir(w.r, w.order)
	if err != nil {
		return
	}
	w.walk(dir, kind, depth)
}

// makerNoteWalker collects the vendor fields registered maker-note parsers
// add to a decoded EXIF block.
type makerNoteWalker struct {
	fields []Field
}

func (m *makerNoteWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if !standardFieldNames[name] {
		m.fields = append(m.fields, Field{Name: string(name), Value: renderGeneric(tag)})
	}
	return nil
}

// standardFieldNames holds every name the directory walk already reports,
// plus the names goexif uses where they differ from EXIF 2.3.
var standardFieldNames = func() map[exif.FieldName]bool {
	names := map[exif.FieldName]bool{
		"ExifIFDPointer":                   true,
		"GPSInfoIFDPointer":                true,
		"InteroperabilityIFDPointer":       true,
		"ISOSpeedRatings":                  true,
		"GPSSatelites":                     true,
		"ThumbJPEGInterchangeFormat":       true,
		"ThumbJPEGInterchangeFormatLength": true,
	}
	for _, table := range []map[uint16]exif.FieldName{imageTagNames, gpsTagNames, interopTagNames} {
		for _, name := range table {
			names[name] = true
		}
	}
	return names
}()

func makerNoteFields(payload []byte) []Field {
	x, err := exif.Decode(bytes.NewReader(payload))
	if x == nil || err != nil && exif.IsCriticalError(err) {
		return nil
	}

	var w makerNoteWalker
	if err := x.Walk(&w); err != nil {
		return nil
	}
	sort.Slice(w.fields, func(i, j int) bool {
		return w.fields[i].Name < w.fields[j].Name
	})
	return w.fields
}

// summarize decodes the GPS position and capture time of data.
func summarize(data []byte) (loc *Location, at *time.Time) {
	defer func() {
		if recover() != nil {
			loc, at = nil, nil
		}
	}()

	payload, ok := container.ExtractEXIF(data)
	if !ok {
		return nil, nil
	}
	x, err := exif.Decode(bytes.NewReader(payload))
	if x == nil || err != nil && exif.IsCriticalError(err) {
		return nil, nil
	}

	if lat, long, err := x.LatLong(); err == nil {
		loc = &Location{Latitude: lat, Longitude: long}
	}
	if tm, err := x.DateTime(); err == nil {
		at = &tm
	}
	return loc, at
}
