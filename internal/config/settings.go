package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rsx129921/FortinetExternalFeeds/internal/servicetags"
	"github.com/rsx129921/FortinetExternalFeeds/internal/support"
)

const (
	DiscoveryHTTP    = "http"
	DiscoveryBrowser = "browser"
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Config is read once at startup and never changed afterwards.
type Config struct {
	RefreshIntervalHours int
	ListenHost           string
	ListenPort           int

	LogLevel  string
	LogFormat string
	LogFile   string

	APIToken       string
	APITokenBcrypt string
	JWTSecret      string

	DownloadPageURL   string
	DiscoveryMode     string
	BrowserControlURL string
	FetchTimeout      time.Duration
	MaxFeedBytes      int64

	RedisURL    string
	DatabaseURL string

	RateLimitTagsPerMinute  int
	RateLimitFeedsPerMinute int
	RateLimitIndexPerMinute int
	TrustProxyHeaders       bool
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg := Config{
		ListenHost:        strings.TrimSpace(support.GetEnv("LISTEN_HOST", "0.0.0.0")),
		LogLevel:          support.GetEnv("LOG_LEVEL", "info"),
		LogFormat:         support.GetEnv("LOG_FORMAT", "text"),
		LogFile:           strings.TrimSpace(support.GetEnv("LOG_FILE", "")),
		APIToken:          support.GetEnv("API_TOKEN", ""),
		APITokenBcrypt:    strings.TrimSpace(support.GetEnv("API_TOKEN_BCRYPT", "")),
		JWTSecret:         support.GetEnv("JWT_SECRET", ""),
		DownloadPageURL:   strings.TrimSpace(support.GetEnv("DOWNLOAD_PAGE_URL", servicetags.DefaultDownloadPageURL)),
		DiscoveryMode:     strings.ToLower(strings.TrimSpace(support.GetEnv("DISCOVERY_MODE", DiscoveryHTTP))),
		BrowserControlURL: strings.TrimSpace(support.GetEnv("BROWSER_CONTROL_URL", "")),
		RedisURL:          strings.TrimSpace(support.GetEnv("REDIS_URL", "")),
		DatabaseURL:       strings.TrimSpace(support.GetEnv("DATABASE_URL", "")),
	}

	var errs []error
	intVar := func(key string, fallback int, dst *int) {
		v, err := support.ParseEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = v
	}

	intVar("REFRESH_INTERVAL_HOURS", 24, &cfg.RefreshIntervalHours)
	intVar("LISTEN_PORT", 8080, &cfg.ListenPort)
	intVar("RATE_LIMIT_TAGS_PER_MINUTE", 30, &cfg.RateLimitTagsPerMinute)
	intVar("RATE_LIMIT_FEEDS_PER_MINUTE", 60, &cfg.RateLimitFeedsPerMinute)
	intVar("RATE_LIMIT_INDEX_PER_MINUTE", 30, &cfg.RateLimitIndexPerMinute)

	var fetchSeconds, maxBytes int
	intVar("FETCH_TIMEOUT_SECONDS", int(servicetags.DefaultFetchTimeout/time.Second), &fetchSeconds)
	intVar("MAX_FEED_BYTES", int(servicetags.DefaultMaxFeedBytes), &maxBytes)
	cfg.FetchTimeout = time.Duration(fetchSeconds) * time.Second
	cfg.MaxFeedBytes = int64(maxBytes)

	trust, err := support.ParseEnvBool("TRUST_PROXY_HEADERS", false)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.TrustProxyHeaders = trust

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.RefreshIntervalHours < 1 {
		errs = append(errs, fmt.Errorf("REFRESH_INTERVAL_HOURS must be at least 1, got %d", c.RefreshIntervalHours))
	}
	if c.ListenHost == "" {
		errs = append(errs, errors.New("LISTEN_HOST must not be empty"))
	}
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("LISTEN_PORT must be between 1 and 65535, got %d", c.ListenPort))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive, got %s", c.FetchTimeout))
	}
	if c.MaxFeedBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FEED_BYTES must be positive, got %d", c.MaxFeedBytes))
	}
	for key, v := range map[string]int{
		"RATE_LIMIT_TAGS_PER_MINUTE":  c.RateLimitTagsPerMinute,
		"RATE_LIMIT_FEEDS_PER_MINUTE": c.RateLimitFeedsPerMinute,
		"RATE_LIMIT_INDEX_PER_MINUTE": c.RateLimitIndexPerMinute,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", key, v))
		}
	}
	switch c.DiscoveryMode {
	case DiscoveryHTTP, DiscoveryBrowser:
	default:
		errs = append(errs, fmt.Errorf("DISCOVERY_MODE must be %q or %q, got %q", DiscoveryHTTP, DiscoveryBrowser, c.DiscoveryMode))
	}
	if u, err := url.Parse(c.DownloadPageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("DOWNLOAD_PAGE_URL must be an absolute http(s) URL, got %q", c.DownloadPageURL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}
