// Command google-search-mcp serves Google search and page fetching to AI
// assistants over the Model Context Protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thejusdutt/google-search-mcp/internal/config"
	"github.com/thejusdutt/google-search-mcp/internal/extract"
	"github.com/thejusdutt/google-search-mcp/internal/fingerprint"
	mcpserver "github.com/thejusdutt/google-search-mcp/internal/mcp"
	"github.com/thejusdutt/google-search-mcp/internal/metrics"
	"github.com/thejusdutt/google-search-mcp/internal/pipeline"
	"github.com/thejusdutt/google-search-mcp/internal/scraper"
	"github.com/thejusdutt/google-search-mcp/internal/search"
	"github.com/thejusdutt/google-search-mcp/pkg/proxy"
	"github.com/thejusdutt/google-search-mcp/pkg/ratelimit"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	serve := newServeCmd(&configPath)

	root := &cobra.Command{
		Use:          "google-search-mcp",
		Short:        "Google search and page fetching for AI assistants over MCP",
		SilenceUsage: true,
		// MCP clients exec the bare binary, so no subcommand means serve.
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve.RunE(cmd, args)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file")

	root.AddCommand(serve)
	root.AddCommand(newSearchCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var (
		httpAddr    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Serves the google_search, deep_search and deep_search_news tools.

By default the server speaks JSON-RPC over stdio, for MCP clients such as
Claude Desktop. Use --http (or SEARCH_MCP_HTTP_ADDR) to expose a streamable
HTTP endpoint instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}

			p, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			server, err := mcpserver.NewServer(p, logger)
			if err != nil {
				return err
			}

			mAddr := metricsAddr
			if mAddr == "" {
				mAddr = cfg.MetricsAddr
			}
			if mAddr != "" {
				m := metrics.Start(mAddr)
				defer func() {
					_ = m.Stop(context.Background())
				}()
			}

			addr := httpAddr
			if addr == "" {
				addr = cfg.HTTPAddr
			}
			if addr != "" {
				return server.RunHTTP(cmd.Context(), addr)
			}
			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve MCP over HTTP on this address instead of stdio")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "serve Prometheus metrics on this address")

	return cmd
}

func newSearchCmd(configPath *string) *cobra.Command {
	var (
		count      int
		kind       string
		deep       bool
		maxContent int
		include    []string
		exclude    []string
	)

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Run a search from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			p, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			ctx := cmd.Context()

			var text string
			var ok bool
			if deep {
				k, err := search.ParseKind(kind)
				if err != nil {
					return err
				}
				text, ok = p.DeepSearch(ctx, pipeline.DeepParams{
					Query:             query,
					Count:             count,
					MaxContentPerPage: maxContent,
					Kind:              k,
					IncludeDomains:    include,
					ExcludeDomains:    exclude,
				})
			} else {
				text, ok = p.SimpleSearch(ctx, query, count, search.Credentials{})
			}

			if !ok {
				return errors.New(strings.TrimPrefix(text, "Error: "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", pipeline.DefaultCount, "number of results, 1-10")
	cmd.Flags().BoolVar(&deep, "deep", false, "fetch each result page and extract its content")
	cmd.Flags().StringVar(&kind, "kind", "web", "search vertical: web, news or image (deep only)")
	cmd.Flags().IntVar(&maxContent, "max-content", 0, "per-page character cap, 5000-100000 (deep only)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "restrict results to these domains")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "drop results from these domains")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "google-search-mcp version %s\n", version)
		},
	}
}

// setup loads configuration and points the default logger at stderr, away
// from the stdio transport on stdout.
func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	return cfg, logger, nil
}

// buildPipeline assembles the search provider, fetcher, extractor and batch
// according to the configuration.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	provider, err := search.NewGoogleClient(search.GoogleConfig{Logger: logger})
	if err != nil {
		return nil, err
	}

	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}

	fetchCfg := scraper.FetchConfig{
		Fingerprint:  profile,
		UseCookieJar: cfg.UseCookieJar,
		Logger:       logger,
	}
	if cfg.ProxyFile != "" {
		pool := proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(cfg.ProxyFile); err != nil {
			return nil, err
		}
		fetchCfg.ProxyPool = pool
	}
	if cfg.RequestsPerSecond > 0 {
		fetchCfg.Limiter = ratelimit.New(cfg.RequestsPerSecond, 0.1)
	}

	fetcher, err := scraper.NewFetcher(fetchCfg)
	if err != nil {
		return nil, err
	}

	batch := scraper.NewBatch(scraper.BatchConfig{
		Concurrency:   cfg.Concurrency,
		RespectRobots: cfg.RespectRobots,
		Logger:        logger,
	}, fetcher, extract.New(logger))

	return pipeline.New(pipeline.Config{
		Provider:           provider,
		Batch:              batch,
		DefaultCredentials: cfg.Credentials,
		DefaultMaxContent:  cfg.MaxContentLength,
		Logger:             logger,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
