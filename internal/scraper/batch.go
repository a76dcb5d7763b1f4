package scraper

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/thejusdutt/google-search-mcp/internal/extract"
)

// Batch defaults. The content ceiling bounds how much extracted text one
// outcome may carry, independent of any caller-facing limit.
const (
	DefaultConcurrency = 5
	ContentCeiling     = 100_000
	ceilingMarker      = "... [content truncated]"
)

// Outcome is one URL's slot in a batch result. A failed fetch keeps its slot
// with Fetched false and the reason in Note; slots are never dropped.
// Words counts the extracted text's tokens before the ceiling was applied.
type Outcome struct {
	URL     string
	Title   string
	Text    string
	Fetched bool
	Note    string
	Words   int
}

// PageFetcher is the fetch dependency of a batch.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*Page, error)
}

// BatchConfig configures batch execution.
type BatchConfig struct {
	// Concurrency is the chunk size: URLs run concurrently within a chunk,
	// chunks run one after another.
	Concurrency int
	// RespectRobots gates every URL through its host's robots.txt.
	RespectRobots bool
	// RobotsUserAgent is the agent name presented to robots.txt rules.
	RobotsUserAgent string
	Logger          *slog.Logger
}

// Batch fetches and extracts many result URLs, preserving input order.
type Batch struct {
	cfg       BatchConfig
	fetcher   PageFetcher
	extractor *extract.Extractor
	robots    *RobotsGate
	logger    *slog.Logger
}

// NewBatch wires a batch over the given fetcher and extractor.
func NewBatch(cfg BatchConfig, fetcher PageFetcher, extractor *extract.Extractor) *Batch {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.RobotsUserAgent == "" {
		cfg.RobotsUserAgent = "*"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var gate *RobotsGate
	if cfg.RespectRobots {
		gate = NewRobotsGate(fetcher, cfg.Logger)
	}

	return &Batch{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		robots:    gate,
		logger:    cfg.Logger,
	}
}

// FetchAll processes urls in consecutive chunks of Concurrency. The returned
// slice always has len(urls) entries in input order: each goroutine writes
// only its own index, and failures land as failure-shaped outcomes rather
// than omissions.
func (b *Batch) FetchAll(ctx context.Context, urls []string) []Outcome {
	outcomes := make([]Outcome, len(urls))
	if len(urls) == 0 {
		return outcomes
	}

	for start := 0; start < len(urls); start += b.cfg.Concurrency {
		end := min(start+b.cfg.Concurrency, len(urls))

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				outcomes[i] = b.fetchOne(gCtx, urls[i])
				return nil
			})
		}
		// Workers absorb their own failures, so Wait only separates chunks.
		_ = g.Wait()
	}

	return outcomes
}

func (b *Batch) fetchOne(ctx context.Context, targetURL string) Outcome {
	out := Outcome{URL: targetURL}

	if b.robots != nil {
		allowed, err := b.robots.IsAllowed(ctx, targetURL, b.cfg.RobotsUserAgent)
		if err != nil {
			b.logger.Warn("robots.txt check failed, failing open", "url", targetURL, "err", err)
		} else if !allowed {
			out.Note = "disallowed by robots.txt"
			return out
		}
	}

	page, err := b.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		b.logger.Debug("fetch failed", "url", targetURL, "err", err)
		out.Note = err.Error()
		return out
	}

	content := b.extractor.Extract(page.Body, targetURL)
	out.Title = content.Title
	out.Words = extract.CountWords(content.Text)
	out.Text = extract.Truncate(content.Text, ContentCeiling, ceilingMarker)
	out.Fetched = true
	return out
}
