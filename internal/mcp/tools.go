package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thejusdutt/google-search-mcp/internal/pipeline"
	"github.com/thejusdutt/google-search-mcp/internal/search"
)

// SearchInput is the google_search input schema.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the text to search for"`
	Count    int    `json:"count,omitempty" jsonschema:"number of results to return, 1-10 (default 5)"`
	APIKey   string `json:"api_key,omitempty" jsonschema:"Google API key overriding the configured one"`
	EngineID string `json:"engine_id,omitempty" jsonschema:"programmable search engine id overriding the configured one"`
}

// DeepSearchInput is the deep_search input schema.
type DeepSearchInput struct {
	Query             string   `json:"query" jsonschema:"the text to search for"`
	Count             int      `json:"count,omitempty" jsonschema:"number of result pages to fetch, 1-10 (default 5)"`
	MaxContentPerPage int      `json:"max_content_per_page,omitempty" jsonschema:"per-page character cap, 5000-100000"`
	Kind              string   `json:"kind,omitempty" jsonschema:"search vertical: web, news or image (default web)"`
	IncludeDomains    []string `json:"include_domains,omitempty" jsonschema:"restrict results to these domains"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty" jsonschema:"drop results from these domains"`
	APIKey            string   `json:"api_key,omitempty" jsonschema:"Google API key overriding the configured one"`
	EngineID          string   `json:"engine_id,omitempty" jsonschema:"programmable search engine id overriding the configured one"`
}

// NewsSearchInput is the deep_search_news input schema.
type NewsSearchInput struct {
	Query             string `json:"query" jsonschema:"the news topic to search for"`
	Count             int    `json:"count,omitempty" jsonschema:"number of articles to fetch, 1-10 (default 5)"`
	MaxContentPerPage int    `json:"max_content_per_page,omitempty" jsonschema:"per-article character cap, 5000-100000"`
	APIKey            string `json:"api_key,omitempty" jsonschema:"Google API key overriding the configured one"`
	EngineID          string `json:"engine_id,omitempty" jsonschema:"programmable search engine id overriding the configured one"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "google_search",
		Description: "Search Google and return ranked titles, links and snippets",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "deep_search",
		Description: "Search Google, fetch every result page and return its extracted content",
	}, s.handleDeepSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "deep_search_news",
		Description: "Search recent news, fetch the articles and return their extracted content",
	}, s.handleDeepSearchNews)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	text, ok := s.pipeline.SimpleSearch(ctx, input.Query, input.Count, search.Credentials{
		APIKey:   input.APIKey,
		EngineID: input.EngineID,
	})
	return textResult(text, ok), nil, nil
}

func (s *Server) handleDeepSearch(ctx context.Context, _ *mcp.CallToolRequest, input DeepSearchInput) (*mcp.CallToolResult, any, error) {
	kind, err := search.ParseKind(input.Kind)
	if err != nil {
		return textResult(fmt.Sprintf("Error: %s", err), false), nil, nil
	}

	text, ok := s.pipeline.DeepSearch(ctx, pipeline.DeepParams{
		Query:             input.Query,
		Count:             input.Count,
		MaxContentPerPage: input.MaxContentPerPage,
		Kind:              kind,
		IncludeDomains:    input.IncludeDomains,
		ExcludeDomains:    input.ExcludeDomains,
		Credentials: search.Credentials{
			APIKey:   input.APIKey,
			EngineID: input.EngineID,
		},
	})
	return textResult(text, ok), nil, nil
}

func (s *Server) handleDeepSearchNews(ctx context.Context, _ *mcp.CallToolRequest, input NewsSearchInput) (*mcp.CallToolResult, any, error) {
	text, ok := s.pipeline.DeepSearchNews(ctx, input.Query, input.Count, input.MaxContentPerPage, search.Credentials{
		APIKey:   input.APIKey,
		EngineID: input.EngineID,
	})
	return textResult(text, ok), nil, nil
}

// textResult wraps pipeline text for the protocol. A failed invocation
// flags the result rather than failing the tool call itself.
func textResult(text string, ok bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: !ok,
	}
}
