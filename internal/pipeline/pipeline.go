// Package pipeline composes search, fetch, extraction and rendering into
// the operations the transport layer exposes. Every operation returns a
// text artifact plus an ok flag; failures become readable text, never a
// panic or error crossing this boundary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/thejusdutt/google-search-mcp/internal/config"
	"github.com/thejusdutt/google-search-mcp/internal/report"
	"github.com/thejusdutt/google-search-mcp/internal/scraper"
	"github.com/thejusdutt/google-search-mcp/internal/search"
)

// DefaultCount is used when a caller leaves the result count unset.
const DefaultCount = 5

// Config wires a Pipeline's collaborators.
type Config struct {
	Provider search.Provider
	Batch    *scraper.Batch
	// DefaultCredentials back any invocation that carries none of its own.
	DefaultCredentials search.Credentials
	// DefaultMaxContent is the per-page character cap applied when a deep
	// search does not choose one.
	DefaultMaxContent int
	Logger            *slog.Logger
}

// Pipeline executes searches end to end.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New validates the wiring and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Provider == nil {
		return nil, errors.New("search provider is required")
	}
	if cfg.Batch == nil {
		return nil, errors.New("batch fetcher is required")
	}
	if cfg.DefaultMaxContent == 0 {
		cfg.DefaultMaxContent = config.DefaultMaxContentLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: cfg.Logger}, nil
}

// DeepParams are the caller-supplied arguments of DeepSearch. Zero-valued
// fields fall back to defaults: count 5, web kind, the configured content
// cap, the configured credentials.
type DeepParams struct {
	Query             string
	Count             int
	MaxContentPerPage int
	Kind              search.Kind
	IncludeDomains    []string
	ExcludeDomains    []string
	Credentials       search.Credentials
}

// SimpleSearch returns a ranked list of results without fetching any pages.
// The second return is false when the text is an error message rather than
// an artifact.
func (p *Pipeline) SimpleSearch(ctx context.Context, query string, count int, creds search.Credentials) (string, bool) {
	logger := p.opLogger("simple_search")

	if count == 0 {
		count = DefaultCount
	}
	params := search.Params{
		Query:       query,
		Count:       count,
		Kind:        search.KindWeb,
		Credentials: config.ResolveCredentials(creds, p.cfg.DefaultCredentials),
	}
	if err := params.Validate(); err != nil {
		return errorText(err), false
	}

	results, err := p.cfg.Provider.Search(ctx, params)
	if err != nil {
		logger.Error("search failed", "query", query, "err", err)
		return errorText(err), false
	}
	if len(results) == 0 {
		return report.NoResults(query), true
	}

	logger.Info("search completed", "query", query, "results", len(results))
	return report.BuildSimple(query, search.KindWeb, results), true
}

// DeepSearch searches, fetches every result page, extracts readable content
// and renders the aggregate artifact. Per-URL fetch failures degrade to
// notes inside the artifact; only search-level failures flip the ok flag.
func (p *Pipeline) DeepSearch(ctx context.Context, dp DeepParams) (string, bool) {
	logger := p.opLogger("deep_search")

	if dp.Count == 0 {
		dp.Count = DefaultCount
	}
	if dp.Kind == "" {
		dp.Kind = search.KindWeb
	}
	if dp.MaxContentPerPage == 0 {
		dp.MaxContentPerPage = p.cfg.DefaultMaxContent
	}

	params := search.Params{
		Query:            dp.Query,
		Count:            dp.Count,
		Kind:             dp.Kind,
		MaxContentLength: dp.MaxContentPerPage,
		IncludeDomains:   dp.IncludeDomains,
		ExcludeDomains:   dp.ExcludeDomains,
		Credentials:      config.ResolveCredentials(dp.Credentials, p.cfg.DefaultCredentials),
	}
	if err := params.Validate(); err != nil {
		return errorText(err), false
	}

	results, err := p.cfg.Provider.Search(ctx, params)
	if err != nil {
		logger.Error("search failed", "query", dp.Query, "kind", dp.Kind, "err", err)
		return errorText(err), false
	}
	if len(results) == 0 {
		logger.Info("no results", "query", dp.Query, "kind", dp.Kind)
		return report.NoResults(dp.Query), true
	}

	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}
	outcomes := p.cfg.Batch.FetchAll(ctx, urls)

	text, summary := report.Build(dp.Query, dp.Kind, results, outcomes, dp.MaxContentPerPage)
	logger.Info("deep search completed",
		"query", dp.Query, "kind", dp.Kind,
		"found", summary.Found, "fetched", summary.Fetched, "words", summary.TotalWords)
	return text, true
}

// DeepSearchNews is DeepSearch over the news vertical: the provider orders
// hits by recency before pages are fetched.
func (p *Pipeline) DeepSearchNews(ctx context.Context, query string, count, maxContentPerPage int, creds search.Credentials) (string, bool) {
	return p.DeepSearch(ctx, DeepParams{
		Query:             query,
		Count:             count,
		MaxContentPerPage: maxContentPerPage,
		Kind:              search.KindNews,
		Credentials:       creds,
	})
}

// opLogger tags one invocation's log lines with a fresh request id.
func (p *Pipeline) opLogger(op string) *slog.Logger {
	return p.logger.With("op", op, "request_id", uuid.NewString())
}

func errorText(err error) string {
	return fmt.Sprintf("Error: %s", err)
}
