package scanning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"diecastscan/internal/catalog"
)

// ErrNotFound is returned when a code has no catalog entry; callers surface
// it differently from connectivity failures
var ErrNotFound = errors.New("catalog entry not found")

// resolveTimeout bounds each resolution call
const resolveTimeout = 10 * time.Second

// Client resolves codes against the catalog service
type Client struct {
	baseURL   string
	http      *retryablehttp.Client
	basicAuth catalog.BasicAuth
}

// NewClient creates a catalog client for baseURL. basicAuth may be zero
// when the service runs unauthenticated.
func NewClient(baseURL string, basicAuth catalog.BasicAuth) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	rc.HTTPClient.Timeout = resolveTimeout

	return &Client{
		baseURL:   baseURL,
		http:      rc,
		basicAuth: basicAuth,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var req *retryablehttp.Request
	var err error
	if body != nil {
		data, merr := json.Marshal(body)
		if merr != nil {
			return nil, fmt.Errorf("marshaling request: %w", merr)
		}
		req, err = retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, data)
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.basicAuth.Username != "" || c.basicAuth.Password != "" {
		req.SetBasicAuth(c.basicAuth.Username, c.basicAuth.Password)
	}
	return c.http.Do(req)
}

// ToyNumbers fetches all known codes, the reference code index source
func (c *Client) ToyNumbers(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, "GET", "/toy-numbers", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching toy numbers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("toy numbers request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		ToyNumbers []string `json:"toy_numbers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding toy numbers: %w", err)
	}
	return payload.ToyNumbers, nil
}

// Identify resolves a recognized code against the catalog. attrs are only
// supplied on the fallback path and are passed through as query parameters.
func (c *Client) Identify(ctx context.Context, code string, attrs *catalog.IdentifyAttrs) (*catalog.Car, error) {
	path := "/identify/" + url.PathEscape(code)
	if attrs != nil {
		q := url.Values{}
		if attrs.ReleaseYear != nil {
			q.Set("year", strconv.Itoa(*attrs.ReleaseYear))
		}
		if attrs.SeriesName != "" {
			q.Set("series", attrs.SeriesName)
		}
		if attrs.BodyColor != "" {
			q.Set("color", attrs.BodyColor)
		}
		if attrs.SeriesNumber != "" {
			q.Set("series_number", attrs.SeriesNumber)
		}
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
	}

	resp, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving code %q: %w", code, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("code %q: %w", code, ErrNotFound)
	default:
		return nil, fmt.Errorf("identify request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Car *catalog.Car `json:"car"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding identify response: %w", err)
	}
	if payload.Car == nil {
		return nil, fmt.Errorf("identify response missing car")
	}
	return payload.Car, nil
}

// AddToCollection saves a variant to the collection
func (c *Client) AddToCollection(ctx context.Context, variantID uuid.UUID) (*catalog.CollectionItem, error) {
	resp, err := c.do(ctx, "POST", "/collection", map[string]string{
		"variant_id": variantID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("adding to collection: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNotFound:
		return nil, fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
	default:
		return nil, fmt.Errorf("collection insert failed with status %d", resp.StatusCode)
	}

	var item catalog.CollectionItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decoding collection item: %w", err)
	}
	return &item, nil
}

// Collection lists all collection records
func (c *Client) Collection(ctx context.Context) ([]*catalog.CollectionItem, error) {
	resp, err := c.do(ctx, "GET", "/collection", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collection request failed with status %d", resp.StatusCode)
	}

	var items []*catalog.CollectionItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}
	return items, nil
}
