// Package report renders search and fetch output into the plain-text
// artifact handed back to callers.
package report

import (
	"fmt"
	"strings"

	"github.com/thejusdutt/google-search-mcp/internal/extract"
	"github.com/thejusdutt/google-search-mcp/internal/scraper"
	"github.com/thejusdutt/google-search-mcp/internal/search"
)

const truncationMarker = "... [truncated]"

// Summary carries the aggregate counts alongside the rendered artifact.
// TotalWords sums the per-page word counts taken before any truncation.
type Summary struct {
	Found      int
	Fetched    int
	TotalWords int
}

// NoResults is the artifact for a query the provider answered with zero
// items.
func NoResults(query string) string {
	return fmt.Sprintf("No results found for %q.", query)
}

// Build renders the deep-search artifact. results and outcomes must be
// index-aligned: outcomes[i] is the fetch of results[i].URL. Rendering is
// deterministic; the same inputs produce the same bytes.
func Build(query string, kind search.Kind, results []search.Result, outcomes []scraper.Outcome, maxContentPerPage int) (string, Summary) {
	summary := Summary{Found: len(results)}
	if len(results) == 0 {
		return NoResults(query), summary
	}

	for _, out := range outcomes {
		if out.Fetched {
			summary.Fetched++
			summary.TotalWords += out.Words
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Search results for %q (%s search)\n\n", query, kind)
	fmt.Fprintf(&b, "Found %d results, fetched %d pages, ~%d words total.\n",
		summary.Found, summary.Fetched, summary.TotalWords)

	for i, res := range results {
		out := outcomes[i]

		fmt.Fprintf(&b, "\n## %d. %s\n", res.Position, sectionTitle(res, out))
		fmt.Fprintf(&b, "URL: %s\n", res.URL)
		if res.PublishedTime != "" {
			fmt.Fprintf(&b, "Published: %s\n", res.PublishedTime)
		}
		b.WriteString("\n")

		switch {
		case out.Fetched && out.Text != "":
			content := out.Text
			if maxContentPerPage > 0 {
				content = extract.Truncate(content, maxContentPerPage, truncationMarker)
			}
			b.WriteString(content)
			b.WriteString("\n")
		case out.Fetched:
			b.WriteString("Could not fetch usable content from this page.\n")
			writeSnippet(&b, res.Snippet)
		default:
			if out.Note != "" {
				fmt.Fprintf(&b, "Could not fetch this page: %s.\n", out.Note)
			} else {
				b.WriteString("Could not fetch this page.\n")
			}
			writeSnippet(&b, res.Snippet)
		}
	}

	return b.String(), summary
}

// BuildSimple renders the search-only artifact: ranked titles, URLs and
// snippets, no page content.
func BuildSimple(query string, kind search.Kind, results []search.Result) string {
	if len(results) == 0 {
		return NoResults(query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Search results for %q (%s search)\n\n", query, kind)
	fmt.Fprintf(&b, "Found %d results.\n", len(results))

	for _, res := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", res.Position, res.Title, res.URL)
		if res.PublishedTime != "" {
			fmt.Fprintf(&b, "   Published: %s\n", res.PublishedTime)
		}
		if res.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", res.Snippet)
		}
	}

	return b.String()
}

// sectionTitle prefers the provider's title, falling back to the title the
// extractor found on the page itself.
func sectionTitle(res search.Result, out scraper.Outcome) string {
	if res.Title != "" {
		return res.Title
	}
	if out.Title != "" {
		return out.Title
	}
	return "(untitled)"
}

func writeSnippet(b *strings.Builder, snippet string) {
	if snippet != "" {
		fmt.Fprintf(b, "Snippet: %s\n", snippet)
	}
}
