package importing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// WikiClient fetches casting pages from a MediaWiki-backed fan wiki
type WikiClient struct {
	apiURL  string
	http    *retryablehttp.Client
	workers int
}

// NewWikiClient creates a WikiClient for apiURL (the wiki's api.php
// endpoint)
func NewWikiClient(apiURL string, workers int) *WikiClient {
	if workers <= 0 {
		workers = defaultWorkers
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = 60 * time.Second

	return &WikiClient{
		apiURL:  apiURL,
		http:    rc,
		workers: workers,
	}
}

func (w *WikiClient) get(ctx context.Context, params url.Values) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", w.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling wiki API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wiki API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(body), nil
}

// PageTitles lists every non-redirect page title, following the API's
// continuation protocol
func (w *WikiClient) PageTitles(ctx context.Context) ([]string, error) {
	var titles []string
	cont := ""
	for {
		params := url.Values{
			"action":        {"query"},
			"list":          {"allpages"},
			"aplimit":       {"500"},
			"apfilterredir": {"nonredirects"},
			"format":        {"json"},
		}
		if cont != "" {
			params.Set("apcontinue", cont)
		}

		body, err := w.get(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("listing pages: %w", err)
		}

		gjson.Get(body, "query.allpages.#.title").ForEach(func(_, title gjson.Result) bool {
			titles = append(titles, title.String())
			return true
		})

		cont = gjson.Get(body, "continue.apcontinue").String()
		if cont == "" {
			return titles, nil
		}
	}
}

// FetchModels downloads and parses the versions table of each titled page,
// with a bounded number of concurrent fetches. Pages without a versions
// table are skipped; per-page failures are logged and do not abort the run.
func (w *WikiClient) FetchModels(ctx context.Context, titles []string) ([]Model, error) {
	var mu sync.Mutex
	models := make([]Model, 0, len(titles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for _, title := range titles {
		g.Go(func() error {
			html, err := w.pageHTML(ctx, title)
			if err != nil {
				slog.Warn("Failed to fetch page", "title", title, "error", err)
				return nil
			}

			versions, err := parseVersionsTable(html)
			if err != nil {
				slog.Warn("Failed to parse versions table", "title", title, "error", err)
				return nil
			}
			if len(versions) == 0 {
				return nil
			}

			mu.Lock()
			models = append(models, Model{Name: title, Versions: versions})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return models, nil
}

// pageHTML fetches a page's rendered HTML
func (w *WikiClient) pageHTML(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action": {"parse"},
		"page":   {title},
		"prop":   {"text"},
		"format": {"json"},
	}
	body, err := w.get(ctx, params)
	if err != nil {
		return "", err
	}

	html := gjson.Get(body, `parse.text.\*`).String()
	if html == "" {
		return "", fmt.Errorf("page %q has no rendered text", title)
	}
	return html, nil
}
