package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/deepcrawl/models"
)

// Config holds all application configuration.
type Config struct {
	Crawl     models.CrawlConfig
	Fetch     FetchConfig
	Extract   ExtractConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// FetchConfig controls the HTTP engine.
type FetchConfig struct {
	// Timeout bounds a single page retrieval.
	Timeout time.Duration // default: 30s

	// UserAgent is sent with every request.
	UserAgent string

	// Proxy is an http(s) proxy URL applied to every request.
	Proxy string

	// TLSFingerprint dials TLS with a Chrome ClientHello (utls).
	TLSFingerprint bool // default: false

	// HostRPS throttles requests per host. Zero or less disables throttling.
	HostRPS float64 // default: 0

	// HostBurst is the token-bucket burst per host.
	HostBurst int // default: 1

	// Headers are added to every request.
	Headers map[string]string
}

// ExtractConfig controls the extractor chain.
type ExtractConfig struct {
	// Mode selects which strategies run: auto, readability, pruning, text, raw.
	Mode string // default: "auto"

	// ContentFormat is the article output of the primary extractor:
	// "text" or "markdown".
	ContentFormat string // default: "text"

	// Selector, when set, runs a CSS-selector strategy first.
	Selector string

	// ExcludeSelectors are removed from every page before extraction.
	ExcludeSelectors []string
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the crawl document cache of the API server.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached documents.
	MaxEntries int // default: 100
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Crawl: models.CrawlConfig{
			MaxDepth:    1,
			Concurrency: 3,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			UserAgent: DefaultUserAgent,
			HostBurst: 1,
		},
		Extract: ExtractConfig{
			Mode:          "auto",
			ContentFormat: "text",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5.0,
			Burst:             10,
		},
		Cache: CacheConfig{
			MaxEntries: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// applyEnv overrides cfg with every DEEPCRAWL_* variable that is set.
func (cfg *Config) applyEnv() {
	cfg.Crawl.SeedURL = envOr("DEEPCRAWL_SEED_URL", cfg.Crawl.SeedURL)
	cfg.Crawl.MaxDepth = envIntOr("DEEPCRAWL_MAX_DEPTH", cfg.Crawl.MaxDepth)
	cfg.Crawl.IncludeExternal = envBoolOr("DEEPCRAWL_INCLUDE_EXTERNAL", cfg.Crawl.IncludeExternal)
	cfg.Crawl.Concurrency = envIntOr("DEEPCRAWL_CONCURRENCY", cfg.Crawl.Concurrency)
	cfg.Crawl.MaxPages = envIntOr("DEEPCRAWL_MAX_PAGES", cfg.Crawl.MaxPages)
	cfg.Crawl.ExcludePatterns = envSliceOr("DEEPCRAWL_EXCLUDE", cfg.Crawl.ExcludePatterns)

	cfg.Fetch.Timeout = envDurationOr("DEEPCRAWL_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.UserAgent = envOr("DEEPCRAWL_USER_AGENT", cfg.Fetch.UserAgent)
	cfg.Fetch.Proxy = envOr("DEEPCRAWL_PROXY", cfg.Fetch.Proxy)
	cfg.Fetch.TLSFingerprint = envBoolOr("DEEPCRAWL_TLS_FINGERPRINT", cfg.Fetch.TLSFingerprint)
	cfg.Fetch.HostRPS = envFloatOr("DEEPCRAWL_HOST_RPS", cfg.Fetch.HostRPS)
	cfg.Fetch.HostBurst = envIntOr("DEEPCRAWL_HOST_BURST", cfg.Fetch.HostBurst)

	cfg.Extract.Mode = envOr("DEEPCRAWL_EXTRACT_MODE", cfg.Extract.Mode)
	cfg.Extract.ContentFormat = envOr("DEEPCRAWL_CONTENT_FORMAT", cfg.Extract.ContentFormat)
	cfg.Extract.Selector = envOr("DEEPCRAWL_SELECTOR", cfg.Extract.Selector)
	cfg.Extract.ExcludeSelectors = envSliceOr("DEEPCRAWL_EXCLUDE_SELECTORS", cfg.Extract.ExcludeSelectors)

	cfg.Server.Host = envOr("DEEPCRAWL_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("DEEPCRAWL_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("DEEPCRAWL_MODE", cfg.Server.Mode)

	cfg.Auth.Enabled = envBoolOr("DEEPCRAWL_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.APIKeys = envSliceOr("DEEPCRAWL_API_KEYS", cfg.Auth.APIKeys)

	cfg.RateLimit.RequestsPerSecond = envFloatOr("DEEPCRAWL_RATE_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = envIntOr("DEEPCRAWL_RATE_BURST", cfg.RateLimit.Burst)

	cfg.Cache.MaxEntries = envIntOr("DEEPCRAWL_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)

	cfg.Log.Level = envOr("DEEPCRAWL_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("DEEPCRAWL_LOG_FORMAT", cfg.Log.Format)
}

// DefaultUserAgent identifies the crawler to servers.
const DefaultUserAgent = "Mozilla/5.0 (compatible; deepcrawl/1.0; +https://github.com/use-agent/deepcrawl)"

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
