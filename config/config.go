package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Fetch     FetchConfig
	Browser   BrowserConfig
	UI        UIConfig
	Download  DownloadConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// FetchConfig controls the outbound page fetch.
type FetchConfig struct {
	// Timeout is the budget for fetching the target page. When it expires
	// the lookup degrades to the conventional /favicon.ico guess.
	Timeout time.Duration // default: 8s

	// Engine selects the fetch engine: "http" or "browser".
	Engine string // default: "http"

	// BlockPrivate rejects loopback, private and link-local literal hosts.
	BlockPrivate bool // default: true

	// MaxBodyBytes caps how much of the page is read.
	MaxBodyBytes int64 // default: 10 MiB
}

// BrowserConfig controls the Rod browser used by the "browser" engine.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-bot-detection evasions before navigation.
	Stealth bool // default: true

	// BlockResources lists resource types the tab never loads.
	// Valid: Image, Stylesheet, Font, Media.
	BlockResources []string // default: Image, Stylesheet, Font, Media

	// BlockAds drops requests to known ad and tracking domains.
	BlockAds bool // default: true
}

// UIConfig controls the single-page UI.
type UIConfig struct {
	// Mode is the default lookup path: "server" (via /api/favicon) or
	// "client" (favicon service only).
	Mode string // default: "server"

	// IconSize is the size requested from the favicon service.
	IconSize int // default: 32
}

// DownloadConfig controls GET /api/favicon/download.
type DownloadConfig struct {
	MaxBytes int64         // default: 5 MiB
	Timeout  time.Duration // default: 10s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication on /api routes.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key or client IP.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per identity.
	Burst int // default: 10
}

// CacheConfig controls the opt-in lookup cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached lookups.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("FAVGRAB_HOST", "0.0.0.0"),
			Port: envIntOr("FAVGRAB_PORT", 8080),
			Mode: envOr("FAVGRAB_MODE", "release"),
		},
		Fetch: FetchConfig{
			Timeout:      envDurationOr("FAVGRAB_FETCH_TIMEOUT", 8*time.Second),
			Engine:       envOneOf("FAVGRAB_ENGINE", "http", "http", "browser"),
			BlockPrivate: envBoolOr("FAVGRAB_BLOCK_PRIVATE", true),
			MaxBodyBytes: int64(envIntOr("FAVGRAB_MAX_BODY_BYTES", 10<<20)),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("FAVGRAB_HEADLESS", true),
			NoSandbox:      envBoolOr("FAVGRAB_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("FAVGRAB_BROWSER_BIN"),
			Stealth:        envBoolOr("FAVGRAB_STEALTH", true),
			BlockResources: envSliceOr("FAVGRAB_BLOCK_RESOURCES", []string{"Image", "Stylesheet", "Font", "Media"}),
			BlockAds:       envBoolOr("FAVGRAB_BLOCK_ADS", true),
		},
		UI: UIConfig{
			Mode:     envOneOf("FAVGRAB_UI_MODE", "server", "server", "client"),
			IconSize: envIntOr("FAVGRAB_ICON_SIZE", 32),
		},
		Download: DownloadConfig{
			MaxBytes: int64(envIntOr("FAVGRAB_DOWNLOAD_MAX_BYTES", 5<<20)),
			Timeout:  envDurationOr("FAVGRAB_DOWNLOAD_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("FAVGRAB_AUTH_ENABLED", false),
			APIKeys: envSliceOr("FAVGRAB_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FAVGRAB_RATE_RPS", 5.0),
			Burst:             envIntOr("FAVGRAB_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("FAVGRAB_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("FAVGRAB_LOG_LEVEL", "info"),
			Format: envOr("FAVGRAB_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envOneOf returns the lower-cased value of key if it is one of allowed,
// otherwise fallback.
func envOneOf(key, fallback string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	for _, a := range allowed {
		if v == a {
			return v
		}
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
