package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsGate checks result URLs against their host's robots.txt before a
// batch fetches them. Rules are cached per host for the gate's lifetime.
// The gate is optional; fetch laws (attempts, backoff) are unaffected when
// it is off.
type RobotsGate struct {
	fetcher PageFetcher
	logger  *slog.Logger
	mu      sync.RWMutex
	cache   map[string]*robotstxt.RobotsData
}

// NewRobotsGate creates a gate that fetches robots.txt through the given
// fetcher.
func NewRobotsGate(fetcher PageFetcher, logger *slog.Logger) *RobotsGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsGate{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether the URL may be fetched as userAgent. Missing or
// unreadable robots.txt fails open.
func (r *RobotsGate) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	host := u.Scheme + "://" + u.Host

	data, err := r.getOrFetch(ctx, host)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", "host", host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	group := data.FindGroup(userAgent)
	return group.Test(u.Path), nil
}

func (r *RobotsGate) getOrFetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, exists := r.cache[host]
	r.mu.RUnlock()

	if exists {
		return data, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, exists = r.cache[host]
	if exists {
		return data, nil
	}

	// A 404 ends the fetch after one attempt and means no rules exist.
	page, err := r.fetcher.Fetch(ctx, host+"/robots.txt")
	if err != nil {
		r.cache[host] = nil
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}

	parsed, err := robotstxt.FromBytes(page.Body)
	if err != nil {
		r.cache[host] = nil
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.cache[host] = parsed
	return parsed, nil
}
