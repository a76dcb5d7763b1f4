package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/thejusdutt/google-search-mcp/internal/bypass"
	"github.com/thejusdutt/google-search-mcp/internal/fingerprint"
	"github.com/thejusdutt/google-search-mcp/internal/metrics"
	"github.com/thejusdutt/google-search-mcp/pkg/httpclient"
	"github.com/thejusdutt/google-search-mcp/pkg/proxy"
	"github.com/thejusdutt/google-search-mcp/pkg/ratelimit"
	"github.com/thejusdutt/google-search-mcp/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// Fetch defaults. An attempt gets 15 seconds; a URL gets three attempts with
// 1s then 2s pauses between them.
const (
	DefaultAttemptTimeout = 15 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 1 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultMaxRedirects   = 5
)

// Page is the raw product of a successful fetch.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// ExhaustedError means the fetch pipeline gave up on a URL, either because
// a terminal condition ended it early or because all attempts failed. Last
// is the final attempt's error.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up fetching %s after %d attempt(s): %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// StatusError is an attempt-level failure carried by a well-formed HTTP
// response. Wall names the bot-protection vendor when one was recognized.
type StatusError struct {
	Status int
	Wall   string
}

func (e *StatusError) Error() string {
	if e.Wall != "" {
		return fmt.Sprintf("unexpected status %d (blocked by %s)", e.Status, e.Wall)
	}
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// FetchConfig configures the retrying page fetcher.
type FetchConfig struct {
	AttemptTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	MaxBodyBytes   int64
	MaxRedirects   int // negative disables redirect following
	UseCookieJar   bool
	ProxyPool      *proxy.Pool
	UAPool         *useragent.Pool
	Fingerprint    fingerprint.Profile
	Limiter        *ratelimit.Limiter
	Logger         *slog.Logger
}

// Fetcher retrieves single URLs with browser-shaped requests and bounded
// retries. Holding one client across requests keeps connection pools and
// cookie jars (if configured) alive for the Fetcher's lifetime.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a Fetcher, applying defaults for anything unset.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// One transport per fetcher. Per-request proxy rotation goes through the
	// request context because swapping Transport.Proxy concurrently is not
	// safe.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.AttemptTimeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
		logger: cfg.Logger,
	}, nil
}

// Fetch retrieves targetURL, retrying transient failures. Timeouts and
// client errors other than 429 end the attempt loop immediately; 429, 5xx
// and transport errors are retried with exponential backoff between
// attempts. On giving up it returns *ExhaustedError wrapping the last
// attempt's failure.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	start := time.Now()
	var lastErr error
	var wall string
	attempts := 0

	for attempt := 0; attempt < f.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			// 1s after the first failure, 2s after the second. No delay
			// trails the final attempt.
			delay := f.config.BackoffBase << (attempt - 1)
			metrics.FetchRetriesTotal.Inc()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				metrics.RecordFetch("canceled", wall, time.Since(start))
				return nil, &ExhaustedError{URL: targetURL, Attempts: attempt, Last: ctx.Err()}
			}
		}
		attempts = attempt + 1

		page, err, terminal := f.attempt(ctx, targetURL)
		if err == nil {
			page.Duration = time.Since(start)
			metrics.RecordFetch(strconv.Itoa(page.StatusCode), "", page.Duration)
			return page, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) {
			wall = se.Wall
		}

		f.logger.Debug("fetch attempt failed",
			"url", targetURL, "attempt", attempts, "terminal", terminal, "err", err)

		if terminal {
			break
		}
	}

	metrics.RecordFetch(failureLabel(lastErr), wall, time.Since(start))
	return nil, &ExhaustedError{URL: targetURL, Attempts: attempts, Last: lastErr}
}

// attempt runs one GET under its own deadline. terminal reports whether the
// failure class forbids further attempts.
func (f *Fetcher) attempt(ctx context.Context, targetURL string) (page *Page, err error, terminal bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.AttemptTimeout)
	defer cancel()

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err), true
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	// Present as a browser. The User-Agent rotates per attempt.
	req.Header.Set("User-Agent", f.config.UAPool.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		if isTimeout(err) {
			return nil, fmt.Errorf("attempt timed out after %s: %w", f.config.AttemptTimeout, err), true
		}
		if ctx.Err() != nil {
			return nil, ctx.Err(), true
		}
		return nil, fmt.Errorf("request failed: %w", err), false
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("attempt timed out after %s: %w", f.config.AttemptTimeout, err), true
		}
		return nil, fmt.Errorf("failed to read body: %w", err), false
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return &Page{
			URL:        targetURL,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}, nil, false
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &StatusError{Status: resp.StatusCode}, false
	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		// Client errors other than 429 will not improve on retry.
		return nil, &StatusError{
			Status: resp.StatusCode,
			Wall:   bypass.Classify(resp.StatusCode, resp.Header, body),
		}, true
	default:
		return nil, &StatusError{
			Status: resp.StatusCode,
			Wall:   bypass.Classify(resp.StatusCode, resp.Header, body),
		}, false
	}
}

// isTimeout detects deadline expiry structurally, from the error types the
// transport and context report, never from message text.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// failureLabel maps a give-up cause onto a low-cardinality metric label.
func failureLabel(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.Status)
	}
	if isTimeout(err) {
		return "timeout"
	}
	return "error"
}
