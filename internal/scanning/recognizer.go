package scanning

import (
	"strings"

	"diecastscan/internal/catalog"
)

// DetectionSource identifies which component produced a detection
type DetectionSource string

const (
	// SourcePrimary marks detections from local text recognition
	SourcePrimary DetectionSource = "primary"
	// SourceFallback marks detections from the remote vision extractor
	SourceFallback DetectionSource = "fallback"
)

// Detection is a resolved code together with its producer. Attrs and
// Confidence are only populated on the fallback arm.
type Detection struct {
	Code       string
	Source     DetectionSource
	Attrs      *catalog.IdentifyAttrs
	Confidence float64
}

// Geometry plausibility windows, in the recognizer's pixel space. A span
// whose aggregate box falls outside these is background text or noise. The
// generic pattern gets tighter windows because it has no vocabulary to
// anchor on.
const (
	indexMinWidth  = 30
	indexMaxWidth  = 500
	indexMinHeight = 8
	indexMaxHeight = 100

	patternMinWidth  = 50
	patternMaxWidth  = 500
	patternMinHeight = 10
	patternMaxHeight = 100

	patternMinLen = 3
	patternMaxLen = 10
)

// Recognizer matches recognized text spans against the reference code
// index, or against a generic alphanumeric pattern when the index is empty
type Recognizer struct {
	index *CodeIndex
}

// NewRecognizer creates a Recognizer over a code index
func NewRecognizer(index *CodeIndex) *Recognizer {
	return &Recognizer{index: index}
}

// Match scans spans in order and returns the first accepted detection, or
// nil when no span yields one. Within a span, the first boundary-matching
// index code decides; a geometry rejection moves on to the next span.
func (r *Recognizer) Match(spans []TextSpan) *Detection {
	for _, span := range spans {
		text := strings.ToUpper(strings.TrimSpace(span.Text))
		if text == "" {
			continue
		}

		if !r.index.Empty() {
			code := r.matchIndexed(text)
			if code == "" {
				continue
			}
			if !plausible(span.Bounds(), indexMinWidth, indexMaxWidth, indexMinHeight, indexMaxHeight) {
				continue
			}
			return &Detection{Code: code, Source: SourcePrimary}
		}

		token := genericToken(text)
		if token == "" {
			continue
		}
		if !plausible(span.Bounds(), patternMinWidth, patternMaxWidth, patternMinHeight, patternMaxHeight) {
			continue
		}
		return &Detection{Code: token, Source: SourcePrimary}
	}
	return nil
}

// matchIndexed returns the first index code that appears in text bounded by
// non-alphanumeric characters or the string edges
func (r *Recognizer) matchIndexed(text string) string {
	for _, code := range r.index.Codes() {
		if containsBounded(text, code) {
			return code
		}
	}
	return ""
}

// containsBounded reports whether code occurs in text delimited on both
// sides by a non-alphanumeric character or a string edge. A bare substring
// inside a longer alphanumeric run does not count.
func containsBounded(text, code string) bool {
	if code == "" {
		return false
	}
	for start := 0; start+len(code) <= len(text); {
		i := strings.Index(text[start:], code)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(code)
		before := i == 0 || !isAlphanumeric(text[i-1])
		after := end == len(text) || !isAlphanumeric(text[end])
		if before && after {
			return true
		}
		start = i + 1
	}
	return false
}

// genericToken returns the first maximal alphanumeric run of plausible code
// length, or "" when none exists
func genericToken(text string) string {
	runStart := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isAlphanumeric(text[i]) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if n := i - runStart; n >= patternMinLen && n <= patternMaxLen {
				return text[runStart:i]
			}
			runStart = -1
		}
	}
	return ""
}

func plausible(b Box, minW, maxW, minH, maxH int) bool {
	return b.Width() > minW && b.Width() < maxW && b.Height() > minH && b.Height() < maxH
}

func isAlphanumeric(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
