package extractor

import (
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
)

// ifdKind identifies which image file directory a tag was read from.
type ifdKind int

const (
	ifdPrimary ifdKind = iota
	ifdExif
	ifdGPS
	ifdInterop
	ifdThumbnail
)

func (k ifdKind) String() string {
	switch k {
	case ifdPrimary:
		return "Primary"
	case ifdExif:
		return "Exif"
	case ifdGPS:
		return "GPS"
	case ifdInterop:
		return "Interop"
	case ifdThumbnail:
		return "Thumbnail"
	default:
		return "Unknown"
	}
}

// Sub-IFD pointer tags.
const (
	tagExifIFD    = 0x8769
	tagGPSIFD     = 0x8825
	tagInteropIFD = 0xA005
)

// subIFD returns the directory kind a pointer tag leads to from parent.
func subIFD(parent ifdKind, id uint16) (ifdKind, bool) {
	switch {
	case id == tagExifIFD && (parent == ifdPrimary || parent == ifdThumbnail):
		return ifdExif, true
	case id == tagGPSIFD && (parent == ifdPrimary || parent == ifdThumbnail):
		return ifdGPS, true
	case id == tagInteropIFD && parent == ifdExif:
		return ifdInterop, true
	default:
		return 0, false
	}
}

// tagName returns the EXIF 2.3 name of a tag, or Tag(<ifd>, 0x<id>).
func tagName(kind ifdKind, id uint16) string {
	var names map[uint16]exif.FieldName
	switch kind {
	case ifdGPS:
		names = gpsTagNames
	case ifdInterop:
		names = interopTagNames
	default:
		names = imageTagNames
	}
	if name, ok := names[id]; ok {
		return string(name)
	}
	return fmt.Sprintf("Tag(%s, 0x%04X)", kind, id)
}

// imageTagNames covers IFD0, IFD1 and the Exif sub-IFD, which share one
// tag number space.
var imageTagNames = map[uint16]exif.FieldName{
	0x000B: "ProcessingSoftware",
	0x00FE: "NewSubfileType",
	0x0100: "ImageWidth",
	0x0101: "ImageLength",
	0x0102: "BitsPerSample",
	0x0103: "Compression",
	0x0106: "PhotometricInterpretation",
	0x010E: "ImageDescription",
	0x010F: "Make",
	0x0110: "Model",
	0x0111: "StripOffsets",
	0x0112: "Orientation",
	0x0115: "SamplesPerPixel",
	0x0116: "RowsPerStrip",
	0x0117: "StripByteCounts",
	0x011A: "XResolution",
	0x011B: "YResolution",
	0x011C: "PlanarConfiguration",
	0x0128: "ResolutionUnit",
	0x012D: "TransferFunction",
	0x0131: "Software",
	0x0132: "DateTime",
	0x013B: "Artist",
	0x013E: "WhitePoint",
	0x013F: "PrimaryChromaticities",
	0x0201: "JPEGInterchangeFormat",
	0x0202: "JPEGInterchangeFormatLength",
	0x0211: "YCbCrCoefficients",
	0x0212: "YCbCrSubSampling",
	0x0213: "YCbCrPositioning",
	0x0214: "ReferenceBlackWhite",
	0x8298: "Copyright",
	0x829A: "ExposureTime",
	0x829D: "FNumber",
	0x8822: "ExposureProgram",
	0x8824: "SpectralSensitivity",
	0x8827: "PhotographicSensitivity",
	0x8828: "OECF",
	0x8830: "SensitivityType",
	0x8831: "StandardOutputSensitivity",
	0x8832: "RecommendedExposureIndex",
	0x8833: "ISOSpeed",
	0x9000: "ExifVersion",
	0x9003: "DateTimeOriginal",
	0x9004: "DateTimeDigitized",
	0x9010: "OffsetTime",
	0x9011: "OffsetTimeOriginal",
	0x9012: "OffsetTimeDigitized",
	0x9101: "ComponentsConfiguration",
	0x9102: "CompressedBitsPerPixel",
	0x9201: "ShutterSpeedValue",
	0x9202: "ApertureValue",
	0x9203: "BrightnessValue",
	0x9204: "ExposureBiasValue",
	0x9205: "MaxApertureValue",
	0x9206: "SubjectDistance",
	0x9207: "MeteringMode",
	0x9208: "LightSource",
	0x9209: "Flash",
	0x920A: "FocalLength",
	0x9214: "SubjectArea",
	0x927C: "MakerNote",
	0x9286: "UserComment",
	0x9290: "SubSecTime",
	0x9291: "SubSecTimeOriginal",
	0x9292: "SubSecTimeDigitized",
	0xA000: "FlashpixVersion",
	0xA001: "ColorSpace",
	0xA002: "PixelXDimension",
	0xA003: "PixelYDimension",
	0xA004: "RelatedSoundFile",
	0xA20B: "FlashEnergy",
	0xA20E: "FocalPlaneXResolution",
	0xA20F: "FocalPlaneYResolution",
	0xA210: "FocalPlaneResolutionUnit",
	0xA214: "SubjectLocation",
	0xA215: "ExposureIndex",
	0xA217: "SensingMethod",
	0xA300: "FileSource",
	0xA301: "SceneType",
	0xA302: "CFAPattern",
	0xA401: "CustomRendered",
	0xA402: "ExposureMode",
	0xA403: "WhiteBalance",
	0xA404: "DigitalZoomRatio",
	0xA405: "FocalLengthIn35mmFilm",
	0xA406: "SceneCaptureType",
	0xA407: "GainControl",
	0xA408: "Contrast",
	0xA409: "Saturation",
	0xA40A: "Sharpness",
	0xA40B: "DeviceSettingDescription",
	0xA40C: "SubjectDistanceRange",
	0xA420: "ImageUniqueID",
	0xA430: "CameraOwnerName",
	0xA431: "BodySerialNumber",
	0xA432: "LensSpecification",
	0xA433: "LensMake",
	0xA434: "LensModel",
	0xA435: "LensSerialNumber",
	0xA500: "Gamma",
}

var gpsTagNames = map[uint16]exif.FieldName{
	0x0000: "GPSVersionID",
	0x0001: "GPSLatitudeRef",
	0x0002: "GPSLatitude",
	0x0003: "GPSLongitudeRef",
	0x0004: "GPSLongitude",
	0x0005: "GPSAltitudeRef",
	0x0006: "GPSAltitude",
	0x0007: "GPSTimeStamp",
	0x0008: "GPSSatellites",
	0x0009: "GPSStatus",
	0x000A: "GPSMeasureMode",
	0x000B: "GPSDOP",
	0x000C: "GPSSpeedRef",
	0x000D: "GPSSpeed",
	0x000E: "GPSTrackRef",
	0x000F: "GPSTrack",
	0x0010: "GPSImgDirectionRef",
	0x0011: "GPSImgDirection",
	0x0012: "GPSMapDatum",
	0x0013: "GPSDestLatitudeRef",
	0x0014: "GPSDestLatitude",
	0x0015: "GPSDestLongitudeRef",
	0x0016: "GPSDestLongitude",
	0x0017: "GPSDestBearingRef",
	0x0018: "GPSDestBearing",
	0x0019: "GPSDestDistanceRef",
	0x001A: "GPSDestDistance",
	0x001B: "GPSProcessingMethod",
	0x001C: "GPSAreaInformation",
	0x001D: "GPSDateStamp",
	0x001E: "GPSDifferential",
	0x001F: "GPSHPositioningError",
}

var interopTagNames = map[uint16]exif.FieldName{
	0x0001: "InteroperabilityIndex",
	0x0002: "InteroperabilityVersion",
	0x1000: "RelatedImageFileFormat",
	0x1001: "RelatedImageWidth",
	0x1002: "RelatedImageLength",
}

// enumNames renders enumerated SHORT tags by name.
var enumNames = map[uint16]map[int64]string{
	0x0112: {
		1: "row 0 at top and column 0 at left",
		2: "row 0 at top and column 0 at right",
		3: "row 0 at bottom and column 0 at right",
		4: "row 0 at bottom and column 0 at left",
		5: "row 0 at left and column 0 at top",
		6: "row 0 at right and column 0 at top",
		7: "row 0 at right and column 0 at bottom",
		8: "row 0 at left and column 0 at bottom",
	},
	0x0128: {1: "none", 2: "inch", 3: "cm"},
	0x8822: {
		0: "not defined",
		1: "manual",
		2: "normal program",
		3: "aperture priority",
		4: "shutter priority",
		5: "creative program",
		6: "action program",
		7: "portrait mode",
		8: "landscape mode",
	},
	0x9207: {
		0:   "unknown",
		1:   "average",
		2:   "center-weighted average",
		3:   "spot",
		4:   "multi-spot",
		5:   "pattern",
		6:   "partial",
		255: "other",
	},
	0x9209: {
		0x00: "not fired",
		0x01: "fired",
		0x05: "fired, return light not detected",
		0x07: "fired, return light detected",
		0x08: "on, did not fire",
		0x09: "fired, compulsory flash mode",
		0x10: "off, did not fire",
		0x18: "auto, did not fire",
		0x19: "fired, auto mode",
		0x20: "no flash function",
		0x41: "fired, red-eye reduction mode",
		0x59: "fired, auto mode, red-eye reduction mode",
	},
	0xA001: {1: "sRGB", 0xFFFF: "uncalibrated"},
	0xA402: {0: "auto exposure", 1: "manual exposure", 2: "auto bracket"},
	0xA403: {0: "auto white balance", 1: "manual white balance"},
	0xA406: {0: "standard", 1: "landscape", 2: "portrait", 3: "night scene"},
}
