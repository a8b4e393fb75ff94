package extractor

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/tiff"
)

// maxListedValues caps how many elements of a multi-valued tag are shown.
const maxListedValues = 16

// renderValue renders tag as display text, with units where the tag has
// them. dir holds the sibling tags of the same directory.
func renderValue(kind ifdKind, tag *tiff.Tag, dir map[uint16]*tiff.Tag) string {
	switch kind {
	case ifdGPS:
		if s, ok := renderGPS(tag, dir); ok {
			return s
		}
	case ifdPrimary, ifdExif, ifdThumbnail:
		if s, ok := renderImage(tag, dir); ok {
			return s
		}
	}
	return renderGeneric(tag)
}

func renderImage(tag *tiff.Tag, dir map[uint16]*tiff.Tag) (string, bool) {
	switch tag.Id {
	case 0x829A:
		num, den, err := tag.Rat2(0)
		if err != nil {
			return "", false
		}
		return formatExposure(num, den), true
	case 0x829D:
		return withRat(tag, "f/", "")
	case 0x920A:
		return withRat(tag, "", " mm")
	case 0xA405:
		v, err := tag.Int64(0)
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("%d mm", v), true
	case 0x9201, 0x9202, 0x9203, 0x9204, 0x9205:
		return withRat(tag, "", " EV")
	case 0x9206:
		return withRat(tag, "", " m")
	case 0x011A, 0x011B:
		return renderResolution(tag, dir[0x0128])
	case 0xA20E, 0xA20F:
		return renderResolution(tag, dir[0xA210])
	case 0x9000, 0xA000:
		return renderVersion(tag.Val)
	case 0x9286:
		return renderComment(tag.Val)
	case 0x9101:
		return renderComponents(tag.Val), true
	}

	if names, ok := enumNames[tag.Id]; ok && tag.Format() == tiff.IntVal && tag.Count == 1 {
		v, err := tag.Int64(0)
		if err == nil {
			if name, ok := names[v]; ok {
				return name, true
			}
		}
	}
	return "", false
}

func renderGPS(tag *tiff.Tag, dir map[uint16]*tiff.Tag) (string, bool) {
	switch tag.Id {
	case 0x0000:
		parts := make([]string, 0, len(tag.Val))
		for _, b := range tag.Val {
			parts = append(parts, strconv.Itoa(int(b)))
		}
		return strings.Join(parts, "."), true
	case 0x0002, 0x0004, 0x0014, 0x0016:
		return renderDMS(tag, refString(dir[tag.Id-1]))
	case 0x0006:
		s, ok := withRat(tag, "", " m")
		if ok && refInt(dir[0x0005]) == 1 {
			s += " below sea level"
		}
		return s, ok
	case 0x0007:
		return renderTimeStamp(tag)
	case 0x000D:
		return withRat(tag, "", speedUnits[refString(dir[0x000C])])
	case 0x001A:
		return withRat(tag, "", distanceUnits[refString(dir[0x0019])])
	case 0x000F, 0x0011, 0x0018:
		return withRat(tag, "", "°"+bearingRefs[refString(dir[tag.Id-1])])
	case 0x001B, 0x001C:
		return renderComment(tag.Val)
	}
	return "", false
}

var speedUnits = map[string]string{"K": " km/h", "M": " mph", "N": " knots"}

var distanceUnits = map[string]string{"K": " km", "M": " mi", "N": " nautical miles"}

var bearingRefs = map[string]string{"T": " true", "M": " magnetic"}

var resolutionUnits = map[int64]string{2: " pixels per inch", 3: " pixels per centimeter"}

func renderResolution(tag, unit *tiff.Tag) (string, bool) {
	suffix := ""
	if unit != nil {
		if v, err := unit.Int64(0); err == nil {
			suffix = resolutionUnits[v]
		}
	}
	return withRat(tag, "", suffix)
}

func renderDMS(tag *tiff.Tag, ref string) (string, bool) {
	if tag.Count < 3 {
		return "", false
	}
	var vals [3][2]int64
	for i := range vals {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return "", false
		}
		vals[i] = [2]int64{num, den}
	}
	secs := float64(vals[2][0]) / float64(vals[2][1])
	s := fmt.Sprintf("%s° %s' %.2f\"", formatRat(vals[0][0], vals[0][1]), formatRat(vals[1][0], vals[1][1]), secs)
	if ref != "" {
		s += " " + ref
	}
	return s, true
}

func renderTimeStamp(tag *tiff.Tag) (string, bool) {
	if tag.Count < 3 {
		return "", false
	}
	var hms [3]float64
	for i := range hms {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return "", false
		}
		hms[i] = float64(num) / float64(den)
	}
	secs := fmt.Sprintf("%05.2f", hms[2])
	if hms[2] == float64(int64(hms[2])) {
		secs = fmt.Sprintf("%02d", int64(hms[2]))
	}
	return fmt.Sprintf("%02d:%02d:%s", int64(hms[0]), int64(hms[1]), secs), true
}

func renderVersion(b []byte) (string, bool) {
	if len(b) != 4 {
		return "", false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	major := strings.TrimLeft(string(b[:2]), "0")
	if major == "" {
		major = "0"
	}
	return major + "." + string(b[2:]), true
}

// renderComment decodes the 8-byte character code prefixed text used by
// UserComment and the GPS text tags. Only ASCII and undefined codes are
// rendered as text.
func renderComment(b []byte) (string, bool) {
	if len(b) < 8 {
		return "", false
	}
	code, text := string(b[:8]), b[8:]
	if code != "ASCII\x00\x00\x00" && code != "\x00\x00\x00\x00\x00\x00\x00\x00" {
		return fmt.Sprintf("%d bytes", len(b)), true
	}
	return strings.TrimRight(string(text), "\x00 "), true
}

func renderComponents(b []byte) string {
	names := []string{"", "Y", "Cb", "Cr", "R", "G", "B"}
	var sb strings.Builder
	for _, c := range b {
		if int(c) < len(names) {
			sb.WriteString(names[c])
		}
	}
	return sb.String()
}

func renderGeneric(tag *tiff.Tag) string {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case tiff.IntVal:
		return joinValues(tag, func(i int) (string, error) {
			v, err := tag.Int64(i)
			return strconv.FormatInt(v, 10), err
		})
	case tiff.RatVal:
		return joinValues(tag, func(i int) (string, error) {
			num, den, err := tag.Rat2(i)
			return formatRat(num, den), err
		})
	case tiff.FloatVal:
		return joinValues(tag, func(i int) (string, error) {
			v, err := tag.Float(i)
			return strconv.FormatFloat(v, 'g', -1, 64), err
		})
	case tiff.UndefVal:
		return renderUndefined(tag.Val)
	default:
		return fmt.Sprintf("%d bytes", len(tag.Val))
	}
}

func joinValues(tag *tiff.Tag, value func(i int) (string, error)) string {
	n := int(tag.Count)
	shown := min(n, maxListedValues)
	parts := make([]string, 0, shown)
	for i := 0; i < shown; i++ {
		s, err := value(i)
		if err != nil {
			break
		}
		parts = append(parts, s)
	}
	s := strings.Join(parts, ", ")
	if n > shown {
		s += fmt.Sprintf(", ... (%d values)", n)
	}
	return s
}

func renderUndefined(b []byte) string {
	trimmed := strings.TrimRight(string(b), "\x00")
	if trimmed != "" && printable(trimmed) {
		return strings.TrimSpace(trimmed)
	}
	if len(b) <= maxListedValues {
		return "0x" + hex.EncodeToString(b)
	}
	return fmt.Sprintf("%d bytes", len(b))
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}

func withRat(tag *tiff.Tag, prefix, suffix string) (string, bool) {
	num, den, err := tag.Rat2(0)
	if err != nil {
		return "", false
	}
	return prefix + formatRat(num, den) + suffix, true
}

// formatRat renders a rational as an integer or a decimal with at most four
// fractional digits.
func formatRat(num, den int64) string {
	if den == 0 {
		return fmt.Sprintf("%d/%d", num, den)
	}
	if num%den == 0 {
		return strconv.FormatInt(num/den, 10)
	}
	s := strconv.FormatFloat(float64(num)/float64(den), 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// formatExposure renders exposure times below one second as 1/N.
func formatExposure(num, den int64) string {
	if num > 0 && den > num && den%num == 0 {
		return fmt.Sprintf("1/%ds", den/num)
	}
	return formatRat(num, den) + "s"
}

func refString(tag *tiff.Tag) string {
	if tag == nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func refInt(tag *tiff.Tag) int64 {
	if tag == nil {
		return 0
	}
	v, err := tag.Int64(0)
	if err != nil {
		return 0
	}
	return v
}
