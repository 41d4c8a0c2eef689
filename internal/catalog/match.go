package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	yearPattern           = regexp.MustCompile(`(\d{4})`)
	trailingFraction      = regexp.MustCompile(`\d+/\d+$`)
	trailingDigits        = regexp.MustCompile(`\d+$`)
	validToyNumberPattern = regexp.MustCompile(`^[A-Z0-9]{3,10}$`)
)

// NormalizeToyNumber applies the normalization used everywhere a toy number
// is compared: uppercase, trim, and strip interior spaces.
func NormalizeToyNumber(code string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(code)), " ", "")
}

// ValidToyNumber reports whether a normalized code looks like a real toy
// number: 3-10 alphanumeric characters.
func ValidToyNumber(code string) bool {
	return validToyNumberPattern.MatchString(code)
}

// LookupToyNumber reduces a raw code to the catalog lookup key. Composite
// codes like "HYW54-N521" identify the entry by the segment before the dash.
func LookupToyNumber(code string) string {
	normalized := NormalizeToyNumber(code)
	if i := strings.Index(normalized, "-"); i >= 0 {
		return normalized[:i]
	}
	return normalized
}

// ParseReleaseYear extracts a four digit year from loose source values,
// including ranges such as "2021 - present" or "2005 to 2020".
func ParseReleaseYear(value string) *int {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return &n
	}
	lower := strings.ToLower(value)
	if strings.Contains(value, " - ") || strings.Contains(value, "–") || strings.Contains(lower, " to ") {
		if m := yearPattern.FindString(value); m != "" {
			n, _ := strconv.Atoi(m)
			return &n
		}
	}
	return nil
}

// CleanSeriesName strips trailing series counters that OCR and the wiki
// source glue onto the name, e.g. "2004 First Editions24/100" or
// "...Turtles4".
func CleanSeriesName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	cleaned := trailingFraction.ReplaceAllString(name, "")
	cleaned = trailingDigits.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return name
	}
	return cleaned
}

// ParseSeriesNumber splits a "position/total" value such as "238/250".
func ParseSeriesNumber(value string) (position, total int, ok bool) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	position, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	return position, total, true
}

// matchVariantByFeatures scores each variant against the extracted features
// and returns the best scoring one. Weights: release year 0.3, series name
// 0.25, body color 0.2, series position/total 0.25.
func matchVariantByFeatures(variants []*Variant, attrs *IdentifyAttrs) (*Variant, float64) {
	if attrs == nil {
		return nil, 0
	}

	var seriesPos, seriesTotal int
	var haveSeriesNumber bool
	if attrs.SeriesNumber != "" {
		seriesPos, seriesTotal, haveSeriesNumber = ParseSeriesNumber(attrs.SeriesNumber)
	}

	var best *Variant
	var bestScore float64
	for _, v := range variants {
		var score float64

		if attrs.ReleaseYear != nil && v.ReleaseYear != nil && *attrs.ReleaseYear == *v.ReleaseYear {
			score += 0.3
		}

		if attrs.SeriesName != "" && v.SeriesName != "" {
			want := strings.ToLower(CleanSeriesName(attrs.SeriesName))
			have := strings.ToLower(CleanSeriesName(v.SeriesName))
			if want != "" && have != "" && (strings.Contains(have, want) || strings.Contains(want, have)) {
				score += 0.25
			}
		}

		if attrs.BodyColor != "" && v.BodyColor != "" {
			want := strings.ToLower(strings.TrimSpace(attrs.BodyColor))
			have := strings.ToLower(strings.TrimSpace(v.BodyColor))
			if strings.Contains(have, want) || strings.Contains(want, have) {
				score += 0.2
			}
		}

		if haveSeriesNumber && v.SeriesPosition != nil && v.SeriesTotal != nil &&
			*v.SeriesPosition == seriesPos && *v.SeriesTotal == seriesTotal {
			score += 0.25
		}

		if score > bestScore {
			bestScore = score
			best = v
		}
	}
	return best, bestScore
}
