package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchmcp_search_requests_total",
			Help: "Total number of search API requests by kind and status",
		},
		[]string{"kind", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searchmcp_search_duration_seconds",
			Help:    "Duration of search API requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"kind"},
	)

	PageFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchmcp_page_fetches_total",
			Help: "Total number of result page fetches by final status and bot wall",
		},
		[]string{"status", "wall"},
	)

	PageFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searchmcp_page_fetch_duration_seconds",
			Help:    "Duration of result page fetches in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "searchmcp_fetch_retries_total",
			Help: "Total number of fetch attempts beyond the first",
		},
	)

	ExtractionFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "searchmcp_extraction_fallbacks_total",
			Help: "Times readability extraction fell through to the selector fallback",
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchmcp_proxy_failures_total",
			Help: "Total number of proxy failures during page fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordSearch updates the search metrics for one API call.
func RecordSearch(kind, status string, d time.Duration) {
	SearchRequestsTotal.WithLabelValues(kind, status).Inc()
	SearchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordFetch updates the fetch metrics for one URL, after retries resolved.
func RecordFetch(status, wall string, d time.Duration) {
	PageFetchesTotal.WithLabelValues(status, wall).Inc()
	PageFetchDuration.Observe(d.Seconds())
}

// Server encapsulates an HTTP server exposing Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
