// Package config loads process-wide settings from the environment and an
// optional config file.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/thejusdutt/google-search-mcp/internal/search"
)

// Defaults applied by Load when neither file nor environment sets a value.
const (
	DefaultConcurrency      = 5
	DefaultMaxContentLength = 10_000
)

// Config holds the runtime settings. Credentials here are the process
// defaults; callers may still pass their own per invocation.
type Config struct {
	Credentials search.Credentials
	LogLevel    slog.Level
	MetricsAddr string // empty disables the metrics endpoint
	HTTPAddr    string // empty serves MCP over stdio

	Concurrency      int
	MaxContentLength int

	// Fetch hardening. Zero values keep every knob off so the default
	// retry and timing behavior stays untouched.
	RequestsPerSecond float64
	RespectRobots     bool
	ProxyFile         string
	Fingerprint       string
	UseCookieJar      bool
}

// Load reads settings from path when non-empty, then lets the environment
// override. Credentials come from GOOGLE_API_KEY and
// GOOGLE_SEARCH_ENGINE_ID; everything else is prefixed SEARCH_MCP_.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("max_content_length", DefaultMaxContentLength)

	// The credential variables keep their conventional Google names.
	_ = v.BindEnv("api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("engine_id", "GOOGLE_SEARCH_ENGINE_ID")

	v.SetEnvPrefix("SEARCH_MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	level, err := ParseLevel(v.GetString("log_level"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Credentials: search.Credentials{
			APIKey:   v.GetString("api_key"),
			EngineID: v.GetString("engine_id"),
		},
		LogLevel:          level,
		MetricsAddr:       v.GetString("metrics_addr"),
		HTTPAddr:          v.GetString("http_addr"),
		Concurrency:       v.GetInt("concurrency"),
		MaxContentLength:  v.GetInt("max_content_length"),
		RequestsPerSecond: v.GetFloat64("requests_per_second"),
		RespectRobots:     v.GetBool("respect_robots"),
		ProxyFile:         v.GetString("proxy_file"),
		Fingerprint:       v.GetString("fingerprint"),
		UseCookieJar:      v.GetBool("cookie_jar"),
	}, nil
}

// ParseLevel maps a level name to its slog value.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// ResolveCredentials picks per-call credentials field-wise over the process
// defaults. Credentials always travel as explicit values, never as shared
// state.
func ResolveCredentials(explicit, fallback search.Credentials) search.Credentials {
	resolved := fallback
	if explicit.APIKey != "" {
		resolved.APIKey = explicit.APIKey
	}
	if explicit.EngineID != "" {
		resolved.EngineID = explicit.EngineID
	}
	return resolved
}
