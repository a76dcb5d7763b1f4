package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thejusdutt/google-search-mcp/internal/extract"
)

func articlePage(title, text string) []byte {
	return []byte(fmt.Sprintf(
		"<html><head><title>%s</title></head><body><article><p>%s</p></article></body></html>",
		title, text))
}

// chunkFetcher records which URLs are in flight together so tests can check
// that chunks never overlap.
type chunkFetcher struct {
	mu          sync.Mutex
	concurrency int
	index       map[string]int
	inFlight    map[int]bool
	maxInFlight int
	calls       int
	overlapped  bool
	fail        map[string]bool
	pages       map[string][]byte
}

func (f *chunkFetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	f.mu.Lock()
	f.calls++
	i, tracked := f.index[targetURL]
	if tracked {
		for other := range f.inFlight {
			if other/f.concurrency != i/f.concurrency {
				f.overlapped = true
			}
		}
		f.inFlight[i] = true
		if len(f.inFlight) > f.maxInFlight {
			f.maxInFlight = len(f.inFlight)
		}
	}
	f.mu.Unlock()

	// Hold the slot long enough for chunk-mates to pile up.
	time.Sleep(20 * time.Millisecond)

	f.mu.Lock()
	if tracked {
		delete(f.inFlight, i)
	}
	failed := f.fail[targetURL]
	body, ok := f.pages[targetURL]
	f.mu.Unlock()

	if failed {
		return nil, &ExhaustedError{URL: targetURL, Attempts: 1, Last: &StatusError{Status: http.StatusNotFound}}
	}
	if !ok {
		body = articlePage("Stub Page", "some page content for extraction")
	}
	return &Page{URL: targetURL, StatusCode: http.StatusOK, Body: body}, nil
}

func TestBatch_ChunksOfConcurrency(t *testing.T) {
	urls := make([]string, 12)
	index := make(map[string]int, len(urls))
	for i := range urls {
		urls[i] = fmt.Sprintf("http://example.test/page-%d", i)
		index[urls[i]] = i
	}

	fetcher := &chunkFetcher{
		concurrency: 5,
		index:       index,
		inFlight:    make(map[int]bool),
	}
	batch := NewBatch(BatchConfig{Concurrency: 5}, fetcher, extract.New(nil))

	outcomes := batch.FetchAll(context.Background(), urls)

	if len(outcomes) != 12 {
		t.Fatalf("expected 12 outcomes, got %d", len(outcomes))
	}
	if fetcher.calls != 12 {
		t.Errorf("expected 12 fetches, got %d", fetcher.calls)
	}
	if fetcher.maxInFlight > 5 {
		t.Errorf("expected at most 5 concurrent fetches, saw %d", fetcher.maxInFlight)
	}
	if fetcher.maxInFlight < 2 {
		t.Errorf("expected fetches within a chunk to run concurrently, saw %d", fetcher.maxInFlight)
	}
	if fetcher.overlapped {
		t.Error("URLs from different chunks ran concurrently")
	}
	for i, out := range outcomes {
		if out.URL != urls[i] {
			t.Errorf("outcome %d holds %s, want %s", i, out.URL, urls[i])
		}
	}
}

func TestBatch_FailuresKeepTheirSlots(t *testing.T) {
	urls := []string{
		"http://example.test/a",
		"http://example.test/b",
		"http://example.test/c",
		"http://example.test/d",
	}
	fetcher := &chunkFetcher{
		concurrency: 2,
		index:       map[string]int{},
		inFlight:    make(map[int]bool),
		fail: map[string]bool{
			urls[1]: true,
			urls[3]: true,
		},
	}
	batch := NewBatch(BatchConfig{Concurrency: 2}, fetcher, extract.New(nil))

	outcomes := batch.FetchAll(context.Background(), urls)

	if len(outcomes) != len(urls) {
		t.Fatalf("expected %d outcomes, got %d", len(urls), len(outcomes))
	}
	for i, out := range outcomes {
		if out.URL != urls[i] {
			t.Errorf("outcome %d holds %s, want %s", i, out.URL, urls[i])
		}
	}

	for _, i := range []int{0, 2} {
		if !outcomes[i].Fetched {
			t.Errorf("outcome %d should be fetched: note %q", i, outcomes[i].Note)
		}
		if outcomes[i].Words == 0 {
			t.Errorf("outcome %d should carry extracted words", i)
		}
	}
	for _, i := range []int{1, 3} {
		if outcomes[i].Fetched {
			t.Errorf("outcome %d should have failed", i)
		}
		if outcomes[i].Note == "" {
			t.Errorf("outcome %d should carry the failure reason", i)
		}
		if outcomes[i].Text != "" {
			t.Errorf("outcome %d should carry no text, got %d bytes", i, len(outcomes[i].Text))
		}
	}
}

func TestBatch_ContentCeiling(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 30000))
	u := "http://example.test/long"

	fetcher := &chunkFetcher{
		concurrency: 1,
		index:       map[string]int{},
		inFlight:    make(map[int]bool),
		pages:       map[string][]byte{u: articlePage("Long Read", long)},
	}
	batch := NewBatch(BatchConfig{Concurrency: 1}, fetcher, extract.New(nil))

	outcomes := batch.FetchAll(context.Background(), []string{u})

	out := outcomes[0]
	if !out.Fetched {
		t.Fatalf("expected fetch to succeed: %s", out.Note)
	}
	if out.Words != 30000 {
		t.Errorf("expected word count before the ceiling, got %d", out.Words)
	}
	if !strings.HasSuffix(out.Text, ceilingMarker) {
		t.Errorf("expected ceiling marker suffix, got tail %q", out.Text[len(out.Text)-40:])
	}
	if len(out.Text) > ContentCeiling+len(ceilingMarker) {
		t.Errorf("text exceeds ceiling: %d bytes", len(out.Text))
	}
}

func TestBatch_NoURLs(t *testing.T) {
	fetcher := &chunkFetcher{
		concurrency: 1,
		index:       map[string]int{},
		inFlight:    make(map[int]bool),
	}
	batch := NewBatch(BatchConfig{}, fetcher, extract.New(nil))

	outcomes := batch.FetchAll(context.Background(), nil)
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(outcomes))
	}
	if fetcher.calls != 0 {
		t.Errorf("expected no fetches, got %d", fetcher.calls)
	}
}

func TestBatch_RobotsDisallowed(t *testing.T) {
	robots := "User-agent: *\nDisallow: /blocked/\n"
	allowed := "http://example.test/open/story"
	blocked := "http://example.test/blocked/story"

	fetcher := &chunkFetcher{
		concurrency: 2,
		index:       map[string]int{},
		inFlight:    make(map[int]bool),
		pages: map[string][]byte{
			"http://example.test/robots.txt": []byte(robots),
			allowed:                          articlePage("Open Story", "readable content lives here"),
			blocked:                          articlePage("Blocked Story", "should never be fetched"),
		},
	}
	batch := NewBatch(BatchConfig{Concurrency: 2, RespectRobots: true}, fetcher, extract.New(nil))

	outcomes := batch.FetchAll(context.Background(), []string{allowed, blocked})

	if !outcomes[0].Fetched {
		t.Errorf("allowed URL should be fetched: %s", outcomes[0].Note)
	}
	if outcomes[1].Fetched {
		t.Error("blocked URL should not be fetched")
	}
	if outcomes[1].Note != "disallowed by robots.txt" {
		t.Errorf("expected robots note, got %q", outcomes[1].Note)
	}
}
