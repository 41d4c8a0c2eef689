package vision

// Extraction contains the fields a vision model read off the back of a
// blister pack. Values are raw model output; normalization and validation
// happen in the catalog layer.
type Extraction struct {
	ToyNumber    string  `json:"toy_number"`
	ReleaseYear  string  `json:"release_year"`
	SeriesName   string  `json:"series_name"`
	BodyColor    string  `json:"body_color"`
	SeriesNumber string  `json:"series_number"`
	Confidence   float64 `json:"confidence"`
}

// Extractor defines the interface for package photo extraction
type Extractor interface {
	// Extract analyzes a package photo and pulls out the toy number and
	// variant features
	Extract(imageData []byte, contentType string) (*Extraction, error)
	// Close closes the extractor and releases resources
	Close() error
}

// packagePrompt is the shared prompt used by all LLM providers for reading
// the back of a Hot Wheels style package
const packagePrompt = `You are analyzing a photo of the back of a diecast car package (Hot Wheels or similar). Carefully read all printed text and extract the following:

1. **TOY_NUMBER** (most important): the model code, e.g. HYW54, GTK21, N2098.
   Format: 3-10 alphanumeric characters, usually 5. It often appears near
   "Toy #" or "No.".

2. **RELEASE_YEAR**: the release year, e.g. 2025, 2021, 2008.

3. **SERIES_NAME**: the series name, e.g. "Hot Wheels Boulevard", "Wild Widebody", "Mainline".

4. **BODY_COLOR**: the body color, e.g. "Chrome", "Red", "Blue".

5. **SERIES_NUMBER**: the position within the series, e.g. "238/250", "46/250".

Return ONLY valid JSON in this exact format:
{"toy_number": "HYW54", "release_year": 2025, "series_name": "Wild Widebody", "body_color": "Chrome", "series_number": "238/250", "confidence": 0.95}

Important:
- If you cannot find the toy number, set toy_number to null and confidence to 0.0
- If you are certain of the result, set confidence to 0.9-1.0; if unsure, 0.5-0.8
- release_year, series_name, body_color and series_number are optional; use null when not visible
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
