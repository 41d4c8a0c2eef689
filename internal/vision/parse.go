package vision

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var bareCodePattern = regexp.MustCompile(`\b([A-Z0-9]{3,10})\b`)

// parseExtraction parses the model's response text into an Extraction.
// Models occasionally wrap the JSON in markdown fences or pad it with prose,
// so the object is located and fields are pulled with gjson rather than a
// strict unmarshal. A response with no JSON at all falls back to scanning
// for a bare code token at reduced confidence; a response with nothing
// usable yields an empty extraction at zero confidence rather than an
// error, since an unreadable photo is an expected outcome.
func parseExtraction(text string) (*Extraction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx < startIdx || !gjson.Valid(text[startIdx:endIdx+1]) {
		// No usable JSON; salvage a code token if one is present
		if m := bareCodePattern.FindString(strings.ToUpper(text)); m != "" {
			return &Extraction{ToyNumber: m, Confidence: 0.7}, nil
		}
		return &Extraction{Confidence: 0}, nil
	}
	body := text[startIdx : endIdx+1]

	extraction := &Extraction{
		ToyNumber:    gjson.Get(body, "toy_number").String(),
		ReleaseYear:  gjson.Get(body, "release_year").String(),
		SeriesName:   gjson.Get(body, "series_name").String(),
		BodyColor:    gjson.Get(body, "body_color").String(),
		SeriesNumber: gjson.Get(body, "series_number").String(),
	}
	if c := gjson.Get(body, "confidence"); c.Exists() {
		extraction.Confidence = c.Float()
	} else {
		extraction.Confidence = 0.5
	}

	return extraction, nil
}
