package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// extractTimeout bounds each remote extraction call; vision models are far
// slower than resolution lookups
const extractTimeout = 30 * time.Second

// RemoteExtraction mirrors the vision extraction endpoint's response
type RemoteExtraction struct {
	ToyNumber    *string `json:"toy_number"`
	ReleaseYear  *int    `json:"release_year"`
	SeriesName   string  `json:"series_name"`
	BodyColor    string  `json:"body_color"`
	SeriesNumber string  `json:"series_number"`
	Confidence   float64 `json:"confidence"`
}

// Extractor sends a frame to the remote vision extraction service. It is
// only consulted when local recognition finds nothing and the session runs
// in enhanced mode.
type Extractor interface {
	Extract(ctx context.Context, frame *Frame) (*RemoteExtraction, error)
}

// RemoteExtractor implements Extractor against the catalog service's
// /ocr/gemini endpoint
type RemoteExtractor struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewRemoteExtractor creates a RemoteExtractor for baseURL
func NewRemoteExtractor(baseURL, username, password string) *RemoteExtractor {
	return &RemoteExtractor{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   &http.Client{Timeout: extractTimeout},
	}
}

// Extract uploads the frame and returns the service's best guess
func (e *RemoteExtractor) Extract(ctx context.Context, frame *Frame) (*RemoteExtraction, error) {
	f, err := os.Open(frame.Path)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(frame.Path))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copying frame data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/ocr/gemini", &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if e.username != "" || e.password != "" {
		req.SetBasicAuth(e.username, e.password)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction request failed with status %d", resp.StatusCode)
	}

	var extraction RemoteExtraction
	if err := json.NewDecoder(resp.Body).Decode(&extraction); err != nil {
		return nil, fmt.Errorf("decoding extraction: %w", err)
	}
	return &extraction, nil
}
