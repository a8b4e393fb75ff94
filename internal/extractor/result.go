package extractor

import "time"

// Item is a single rendered metadata tag.
type Item struct {
	Key      string   `json:"key"`
	Value    string   `json:"value"`
	Category Category `json:"category"`
}

// Location is a decoded GPS position in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Result is the metadata found in an image. Items keep the decoder's order.
type Result struct {
	Items       []Item `json:"items"`
	HasGPS      bool   `json:"hasGPS"`
	HasCamera   bool   `json:"hasCamera"`
	HasDateTime bool   `json:"hasDateTime"`

	Location   *Location  `json:"location,omitempty"`
	CapturedAt *time.Time `json:"capturedAt,omitempty"`
}

// Group is the run of items sharing a category.
type Group struct {
	Category Category `json:"category"`
	Items    []Item   `json:"items"`
}

// NewResult categorizes fields and derives the presence flags.
func NewResult(fields []Field) Result {
	res := Result{Items: make([]Item, 0, len(fields))}
	for _, f := range fields {
		item := Item{Key: f.Name, Value: f.Value, Category: Categorize(f.Name)}
		switch item.Category {
		case CategoryLocation:
			res.HasGPS = true
		case CategoryCamera:
			res.HasCamera = true
		case CategoryDateTime:
			res.HasDateTime = true
		}
		res.Items = append(res.Items, item)
	}
	return res
}

// Empty reports whether no metadata was found.
func (r Result) Empty() bool {
	return len(r.Items) == 0
}

// Sensitive reports whether any flagged category is present.
func (r Result) Sensitive() bool {
	return r.HasGPS || r.HasCamera || r.HasDateTime
}

// Count returns the number of items in category c.
func (r Result) Count(c Category) int {
	n := 0
	for _, item := range r.Items {
		if item.Category == c {
			n++
		}
	}
	return n
}

// Grouped returns the items grouped by category in CategoryOrder, keeping
// item order within each group. Empty categories are omitted.
func (r Result) Grouped() []Group {
	var groups []Group
	for _, c := range CategoryOrder {
		var items []Item
		for _, item := range r.Items {
			if item.Category == c {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			groups = append(groups, Group{Category: c, Items: items})
		}
	}
	return groups
}
