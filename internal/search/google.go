package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/thejusdutt/google-search-mcp/internal/metrics"
	"github.com/thejusdutt/google-search-mcp/pkg/httpclient"
)

// DefaultBaseURL is the Custom Search JSON API endpoint.
const DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// GoogleConfig configures the Google search client.
type GoogleConfig struct {
	BaseURL string // override for tests
	Timeout time.Duration
	Logger  *slog.Logger
}

// GoogleClient implements Provider against the Custom Search JSON API.
type GoogleClient struct {
	baseURL string
	client  *httpclient.Client
	logger  *slog.Logger
}

// NewGoogleClient initializes a client with the given configuration,
// applying defaults for anything unset.
func NewGoogleClient(cfg GoogleConfig) (*GoogleClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	return &GoogleClient{
		baseURL: cfg.BaseURL,
		client:  client,
		logger:  cfg.Logger,
	}, nil
}

// Search runs one query against the API and returns its hits in provider
// order. Credentials are checked before any network use; a non-OK response
// surfaces as *ProviderError with the body preserved verbatim.
func (g *GoogleClient) Search(ctx context.Context, p Params) ([]Result, error) {
	if p.Credentials.Missing() {
		return nil, ErrMissingCredentials
	}

	// The API serves at most 10 hits per page.
	num := p.Count
	if num > MaxCount {
		num = MaxCount
	}

	q := url.Values{}
	q.Set("key", p.Credentials.APIKey)
	q.Set("cx", p.Credentials.EngineID)
	q.Set("q", BuildQuery(p.Query, p.IncludeDomains, p.ExcludeDomains))
	q.Set("num", strconv.Itoa(num))
	switch p.Kind {
	case KindNews:
		q.Set("sort", "date")
	case KindImage:
		q.Set("searchType", "image")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	start := time.Now()
	resp, err := g.client.Do(ctx, req)
	if err != nil {
		metrics.RecordSearch(string(p.Kind), "error", time.Since(start))
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordSearch(string(p.Kind), "error", time.Since(start))
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordSearch(string(p.Kind), "provider_error", time.Since(start))
		g.logger.Warn("search provider error", "status", resp.StatusCode, "kind", p.Kind)
		return nil, &ProviderError{Status: resp.StatusCode, Body: string(body)}
	}

	var decoded googleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		metrics.RecordSearch(string(p.Kind), "error", time.Since(start))
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	// No items is a valid terminal state, not an error.
	results := make([]Result, 0, len(decoded.Items))
	for i, item := range decoded.Items {
		results = append(results, Result{
			Title:         collapseWhitespace(item.Title),
			URL:           item.Link,
			Snippet:       collapseWhitespace(item.Snippet),
			PublishedTime: item.publishedTime(),
			Position:      i + 1,
		})
	}

	metrics.RecordSearch(string(p.Kind), "ok", time.Since(start))
	g.logger.Debug("search completed", "kind", p.Kind, "query", p.Query, "results", len(results))
	return results, nil
}

type googleResponse struct {
	Items []googleItem `json:"items"`
}

type googleItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Pagemap struct {
		Metatags []map[string]string `json:"metatags"`
	} `json:"pagemap"`
}

// publishedTime pulls article:published_time from the page metatags. The
// value is carried verbatim; parsing it is the consumer's business.
func (it googleItem) publishedTime() string {
	for _, tags := range it.Pagemap.Metatags {
		if v, ok := tags["article:published_time"]; ok && v != "" {
			return v
		}
	}
	return ""
}
