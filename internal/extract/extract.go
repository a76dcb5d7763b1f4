// Package extract turns fetched HTML into readable article text. Extraction
// is a two-stage strategy: a readability pass first, then a selector-based
// fallback for pages readability cannot handle. Neither stage lets an error
// escape; the worst case is empty text.
package extract

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	readability "github.com/go-shiori/go-readability"

	"github.com/thejusdutt/google-search-mcp/internal/metrics"
)

// Content is the extractor's product. Degraded marks text that came from the
// selector fallback rather than the readability pass; callers may count it
// but the distinction is never surfaced to end output.
type Content struct {
	Title    string
	Text     string
	Degraded bool
}

// Containers that never hold article text.
const strippedSelectors = "script, style, noscript, iframe, nav, footer, header, " +
	".ad, .ads, .advertisement, .sidebar, .comments, #comments, .related, .share, .social"

// Candidate content containers, most specific first. The whole body is the
// last resort.
var contentCandidates = []string{
	"article",
	"main",
	"[role=main]",
	"#content",
	".content",
	"#main",
	".main",
	".post",
	".entry",
}

// minCandidateChars is how much text a candidate container must hold to be
// considered the article body.
const minCandidateChars = 200

// Extractor extracts article content from HTML documents.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract pulls title and article text out of the page. sourceURL anchors
// relative links during the readability pass.
func (e *Extractor) Extract(htmlBody []byte, sourceURL string) Content {
	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))

	// Title comes from the document head regardless of which content stage
	// wins, so resolve it before the fallback mutates the tree.
	var title string
	if docErr == nil {
		title = e.extractTitle(doc, htmlBody)
	}

	// Primary stage: readability.
	if pageURL, err := url.Parse(sourceURL); err == nil {
		article, err := readability.FromReader(bytes.NewReader(htmlBody), pageURL)
		if err == nil {
			if text := NormalizeText(article.TextContent); text != "" {
				return Content{Title: title, Text: text}
			}
		} else {
			e.logger.Debug("readability extraction failed", "url", sourceURL, "error", err)
		}
	}

	// Fallback stage: strip the noise, then probe known content containers.
	metrics.ExtractionFallbacksTotal.Inc()
	if docErr != nil {
		e.logger.Debug("html parse failed, nothing to extract", "url", sourceURL, "error", docErr)
		return Content{Title: title, Degraded: true}
	}

	return Content{Title: title, Text: fallbackText(doc), Degraded: true}
}

// fallbackText mutates doc: stripped containers are removed before probing.
func fallbackText(doc *goquery.Document) string {
	doc.Find(strippedSelectors).Remove()

	for _, sel := range contentCandidates {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := NormalizeText(node.Text()); len(text) >= minCandidateChars {
			return text
		}
	}

	return NormalizeText(doc.Find("body").Text())
}

// extractTitle resolves the page title: <title> element, then og:title, then
// a generic meta title, then empty.
func (e *Extractor) extractTitle(doc *goquery.Document, htmlBody []byte) string {
	if t := collapseInline(doc.Find("title").First().Text()); t != "" {
		return t
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(htmlBody)); err == nil {
		if t := collapseInline(og.Title); t != "" {
			return t
		}
	}

	if t, ok := doc.Find(`meta[name="title"]`).First().Attr("content"); ok {
		if t = collapseInline(t); t != "" {
			return t
		}
	}

	return ""
}

// collapseInline folds a title-like string onto one line.
func collapseInline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
