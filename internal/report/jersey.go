package report

import "strings"

// JerseyCategory identifies one of the race's parallel classifications.
type JerseyCategory int

const (
	Overall JerseyCategory = iota
	Points
	Mountains
	Youth
)

// Categories lists every jersey category in classification priority order.
var Categories = []JerseyCategory{Overall, Points, Mountains, Youth}

func (c JerseyCategory) String() string {
	switch c {
	case Overall:
		return "overall"
	case Points:
		return "points"
	case Mountains:
		return "mountains"
	case Youth:
		return "youth"
	}
	return "unknown"
}

// ParseJerseyCategory maps a config key ("overall", "points", ...) to a category.
func ParseJerseyCategory(s string) (JerseyCategory, bool) {
	for _, c := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), c.String()) {
			return c, true
		}
	}
	return 0, false
}

// Aliases holds the recognised label fragments for each category.
// Matching is a case-insensitive substring test.
type Aliases map[JerseyCategory][]string

// DefaultAliases covers English names and the Italian jersey colours.
func DefaultAliases() Aliases {
	return Aliases{
		Overall:   {"pink", "rosa", "overall", "general classification"},
		Points:    {"points", "ciclamino", "cyclamen", "purple"},
		Mountains: {"mountain", "azzurra", "kom", "climber", "blue"},
		Youth:     {"youth", "bianca", "white", "young rider"},
	}
}

// Classify returns the category whose alias appears in label. Categories are
// tried in priority order so the first match wins.
func (a Aliases) Classify(label string) (JerseyCategory, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return 0, false
	}
	for _, c := range Categories {
		for _, alias := range a[c] {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" && strings.Contains(label, alias) {
				return c, true
			}
		}
	}
	return 0, false
}
