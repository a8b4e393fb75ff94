package extractor

import "strings"

// keyword sets are tested in this order; the first match wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryLocation, []string{"gps", "latitude", "longitude"}},
	{CategoryCamera, []string{"make", "model", "lens", "focal", "exposure", "iso", "aperture", "shutter"}},
	{CategoryDateTime, []string{"date", "time"}},
	{CategorySoftware, []string{"software", "processing"}},
}

// Categorize classifies a tag name by case-insensitive substring match.
func Categorize(tagName string) Category {
	name := strings.ToLower(tagName)
	for _, set := range categoryKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(name, kw) {
				return set.category
			}
		}
	}
	return CategoryOther
}
