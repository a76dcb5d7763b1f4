// Package search talks to the hosted web-search API and normalizes its
// responses into ranked results.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind selects the search vertical.
type Kind string

const (
	KindWeb   Kind = "web"
	KindNews  Kind = "news"
	KindImage Kind = "image"
)

// ParseKind maps a request string to a Kind. An empty string defaults to web.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindWeb, "":
		return KindWeb, nil
	case KindNews:
		return KindNews, nil
	case KindImage:
		return KindImage, nil
	default:
		return "", fmt.Errorf("unknown search kind %q", s)
	}
}

// Bounds enforced by Params.Validate.
const (
	MaxCount         = 10
	MinContentLength = 5_000
	MaxContentLength = 100_000
)

// ErrMissingCredentials is returned before any network use when no API key
// or engine ID is available.
var ErrMissingCredentials = errors.New("missing search credentials: api key and engine id are required")

// ProviderError is a non-OK answer from the search API. Body carries the
// provider's response verbatim for diagnosis.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider returned status %d: %s", e.Status, e.Body)
}

// Credentials identify the caller to the search API. EngineID is the
// provider's programmable-engine identifier (cx on the wire).
type Credentials struct {
	APIKey   string
	EngineID string
}

// Missing reports whether either field is empty.
func (c Credentials) Missing() bool {
	return c.APIKey == "" || c.EngineID == ""
}

// Result is one normalized search hit. Position is the 1-based provider
// rank. PublishedTime is carried verbatim from the provider's page metadata
// and may be empty.
type Result struct {
	Title         string
	URL           string
	Snippet       string
	PublishedTime string
	Position      int
}

// Params describes one search invocation. Credentials travel here rather
// than in any ambient state.
type Params struct {
	Query            string
	Count            int
	Kind             Kind
	MaxContentLength int // per-page cap for deep search; 0 means not applicable
	IncludeDomains   []string
	ExcludeDomains   []string
	Credentials      Credentials
}

// Validate checks the parameter ranges before any network use.
func (p *Params) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return errors.New("query must not be empty")
	}
	if p.Count < 1 || p.Count > MaxCount {
		return fmt.Errorf("count must be between 1 and %d, got %d", MaxCount, p.Count)
	}
	switch p.Kind {
	case KindWeb, KindNews, KindImage:
	default:
		return fmt.Errorf("unknown search kind %q", p.Kind)
	}
	if p.MaxContentLength != 0 && (p.MaxContentLength < MinContentLength || p.MaxContentLength > MaxContentLength) {
		return fmt.Errorf("max content length must be between %d and %d, got %d", MinContentLength, MaxContentLength, p.MaxContentLength)
	}
	if p.Credentials.Missing() {
		return ErrMissingCredentials
	}
	return nil
}

// Provider abstracts the search API so the pipeline can be exercised against
// fakes.
type Provider interface {
	Search(ctx context.Context, p Params) ([]Result, error)
}

// BuildQuery appends domain filters to the query text. Included domains are
// ORed site: clauses; excluded domains are ANDed -site: terms.
//
//	BuildQuery("rust", ["a.com","b.com"], ["c.com"])
//	  => "rust site:a.com OR site:b.com -site:c.com"
func BuildQuery(query string, include, exclude []string) string {
	var b strings.Builder
	b.WriteString(query)

	if len(include) > 0 {
		clauses := make([]string, 0, len(include))
		for _, d := range include {
			if d = strings.TrimSpace(d); d != "" {
				clauses = append(clauses, "site:"+d)
			}
		}
		if len(clauses) > 0 {
			b.WriteString(" ")
			b.WriteString(strings.Join(clauses, " OR "))
		}
	}

	for _, d := range exclude {
		if d = strings.TrimSpace(d); d != "" {
			b.WriteString(" -site:")
			b.WriteString(d)
		}
	}

	return b.String()
}

// collapseWhitespace folds any whitespace run into a single space and trims
// the ends. Applying it twice yields the same string.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
