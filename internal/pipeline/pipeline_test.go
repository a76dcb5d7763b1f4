package pipeline

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/thejusdutt/google-search-mcp/internal/extract"
	"github.com/thejusdutt/google-search-mcp/internal/scraper"
	"github.com/thejusdutt/google-search-mcp/internal/search"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	last    search.Params
	results []search.Result
	err     error
}

func (f *fakeProvider) Search(ctx context.Context, p search.Params) ([]search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = p
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, targetURL string) (*scraper.Page, error) {
	f.mu.Lock()
	f.calls++
	failed := f.fail[targetURL]
	f.mu.Unlock()

	if failed {
		return nil, &scraper.ExhaustedError{
			URL:      targetURL,
			Attempts: 3,
			Last:     &scraper.StatusError{Status: http.StatusInternalServerError},
		}
	}
	body := "<html><head><title>Stub Page</title></head><body><article><p>" +
		"plenty of extracted page text for the aggregate artifact" +
		"</p></article></body></html>"
	return &scraper.Page{URL: targetURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func threeResults() []search.Result {
	return []search.Result{
		{Title: "First", URL: "https://one.example/a", Snippet: "first snippet", Position: 1},
		{Title: "Second", URL: "https://two.example/b", Snippet: "second snippet", Position: 2},
		{Title: "Third", URL: "https://three.example/c", Snippet: "third snippet", Position: 3},
	}
}

func testCreds() search.Credentials {
	return search.Credentials{APIKey: "key", EngineID: "cx"}
}

func newTestPipeline(t *testing.T, provider *fakeProvider, fetcher *fakeFetcher, defaults search.Credentials) *Pipeline {
	t.Helper()
	batch := scraper.NewBatch(scraper.BatchConfig{Concurrency: 2}, fetcher, extract.New(nil))
	p, err := New(Config{
		Provider:           provider,
		Batch:              batch,
		DefaultCredentials: defaults,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without provider")
	}
	if _, err := New(Config{Provider: &fakeProvider{}}); err == nil {
		t.Error("expected error without batch")
	}
}

func TestSimpleSearch(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	fetcher := &fakeFetcher{}
	p := newTestPipeline(t, provider, fetcher, search.Credentials{})

	text, ok := p.SimpleSearch(context.Background(), "golang", 3, testCreds())
	if !ok {
		t.Fatalf("expected ok, got error text %q", text)
	}
	for _, want := range []string{"First", "https://one.example/a", "first snippet"} {
		if !strings.Contains(text, want) {
			t.Errorf("artifact missing %q", want)
		}
	}
	if fetcher.calls != 0 {
		t.Errorf("simple search must not fetch pages, got %d fetches", fetcher.calls)
	}
}

func TestSimpleSearch_DefaultsCount(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	if _, ok := p.SimpleSearch(context.Background(), "golang", 0, testCreds()); !ok {
		t.Fatal("expected ok")
	}
	if provider.last.Count != DefaultCount {
		t.Errorf("provider saw count %d, want %d", provider.last.Count, DefaultCount)
	}
}

func TestSimpleSearch_ValidationFailure(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	text, ok := p.SimpleSearch(context.Background(), "   ", 3, testCreds())
	if ok {
		t.Fatal("expected error flag for blank query")
	}
	if !strings.Contains(text, "query") {
		t.Errorf("error text should name the problem, got %q", text)
	}
	if provider.calls != 0 {
		t.Errorf("validation must run before the provider, saw %d calls", provider.calls)
	}
}

func TestSimpleSearch_MissingCredentials(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	text, ok := p.SimpleSearch(context.Background(), "golang", 3, search.Credentials{})
	if ok {
		t.Fatal("expected error flag without credentials")
	}
	if !strings.Contains(text, "credentials") {
		t.Errorf("error text should mention credentials, got %q", text)
	}
	if provider.calls != 0 {
		t.Errorf("no provider call may happen without credentials, saw %d", provider.calls)
	}
}

func TestSimpleSearch_CredentialFallback(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	defaults := search.Credentials{APIKey: "default-key", EngineID: "default-cx"}
	p := newTestPipeline(t, provider, &fakeFetcher{}, defaults)

	if _, ok := p.SimpleSearch(context.Background(), "golang", 3, search.Credentials{}); !ok {
		t.Fatal("expected defaults to satisfy the credential check")
	}
	if provider.last.Credentials != defaults {
		t.Errorf("provider saw %+v, want process defaults", provider.last.Credentials)
	}

	explicit := search.Credentials{APIKey: "caller-key", EngineID: "caller-cx"}
	if _, ok := p.SimpleSearch(context.Background(), "golang", 3, explicit); !ok {
		t.Fatal("expected ok")
	}
	if provider.last.Credentials != explicit {
		t.Errorf("explicit credentials must win, provider saw %+v", provider.last.Credentials)
	}
}

func TestSimpleSearch_ProviderError(t *testing.T) {
	provider := &fakeProvider{err: &search.ProviderError{Status: 403, Body: "quota exceeded"}}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	text, ok := p.SimpleSearch(context.Background(), "golang", 3, testCreds())
	if ok {
		t.Fatal("expected error flag for provider failure")
	}
	if !strings.Contains(text, "403") || !strings.Contains(text, "quota exceeded") {
		t.Errorf("error text should carry the provider answer, got %q", text)
	}
}

func TestSimpleSearch_NoResults(t *testing.T) {
	provider := &fakeProvider{}
	fetcher := &fakeFetcher{}
	p := newTestPipeline(t, provider, fetcher, search.Credentials{})

	text, ok := p.SimpleSearch(context.Background(), "xyzzy plugh", 3, testCreds())
	if !ok {
		t.Fatal("zero results is not an error")
	}
	if !strings.Contains(strings.ToLower(text), "no results found") {
		t.Errorf("expected no-results message, got %q", text)
	}
}

func TestDeepSearch(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	fetcher := &fakeFetcher{fail: map[string]bool{"https://two.example/b": true}}
	p := newTestPipeline(t, provider, fetcher, search.Credentials{})

	text, ok := p.DeepSearch(context.Background(), DeepParams{
		Query:       "golang",
		Count:       3,
		Credentials: testCreds(),
	})
	if !ok {
		t.Fatalf("expected ok, got %q", text)
	}

	if fetcher.calls != 3 {
		t.Errorf("expected every result fetched once, got %d", fetcher.calls)
	}
	for _, want := range []string{
		"## 1. First",
		"plenty of extracted page text",
		"## 2. Second",
		"Could not fetch this page",
		"Snippet: second snippet",
		"## 3. Third",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("artifact missing %q\n%s", want, text)
		}
	}
}

func TestDeepSearch_DefaultsApplied(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	if _, ok := p.DeepSearch(context.Background(), DeepParams{
		Query:       "golang",
		Credentials: testCreds(),
	}); !ok {
		t.Fatal("expected ok")
	}

	if provider.last.Count != DefaultCount {
		t.Errorf("count = %d, want %d", provider.last.Count, DefaultCount)
	}
	if provider.last.Kind != search.KindWeb {
		t.Errorf("kind = %q, want web", provider.last.Kind)
	}
	if provider.last.MaxContentLength == 0 {
		t.Error("expected a default per-page cap")
	}
}

func TestDeepSearch_InvalidContentLength(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	_, ok := p.DeepSearch(context.Background(), DeepParams{
		Query:             "golang",
		MaxContentPerPage: 100,
		Credentials:       testCreds(),
	})
	if ok {
		t.Error("expected error flag for out-of-range content length")
	}
	if provider.calls != 0 {
		t.Errorf("validation must run before the provider, saw %d calls", provider.calls)
	}
}

func TestDeepSearch_NoResultsNoFetches(t *testing.T) {
	provider := &fakeProvider{}
	fetcher := &fakeFetcher{}
	p := newTestPipeline(t, provider, fetcher, search.Credentials{})

	text, ok := p.DeepSearch(context.Background(), DeepParams{
		Query:       "xyzzy plugh",
		Credentials: testCreds(),
	})
	if !ok {
		t.Fatal("zero results is not an error")
	}
	if !strings.Contains(strings.ToLower(text), "no results found") {
		t.Errorf("expected no-results message, got %q", text)
	}
	if fetcher.calls != 0 {
		t.Errorf("no fetches may happen for zero results, got %d", fetcher.calls)
	}
}

func TestDeepSearch_FiltersReachProvider(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	if _, ok := p.DeepSearch(context.Background(), DeepParams{
		Query:          "rust",
		IncludeDomains: []string{"a.com", "b.com"},
		ExcludeDomains: []string{"c.com"},
		Credentials:    testCreds(),
	}); !ok {
		t.Fatal("expected ok")
	}

	if got := provider.last.IncludeDomains; len(got) != 2 || got[0] != "a.com" {
		t.Errorf("include domains = %v", got)
	}
	if got := provider.last.ExcludeDomains; len(got) != 1 || got[0] != "c.com" {
		t.Errorf("exclude domains = %v", got)
	}
}

func TestDeepSearchNews(t *testing.T) {
	provider := &fakeProvider{results: threeResults()}
	p := newTestPipeline(t, provider, &fakeFetcher{}, search.Credentials{})

	text, ok := p.DeepSearchNews(context.Background(), "elections", 3, 5000, testCreds())
	if !ok {
		t.Fatalf("expected ok, got %q", text)
	}
	if provider.last.Kind != search.KindNews {
		t.Errorf("kind = %q, want news", provider.last.Kind)
	}
	if !strings.Contains(text, "(news search)") {
		t.Error("artifact should name the news kind")
	}
}
