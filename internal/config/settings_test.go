package config

import (
	"errors"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"REFRESH_INTERVAL_HOURS", "LISTEN_HOST", "LISTEN_PORT", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"API_TOKEN", "API_TOKEN_BCRYPT", "JWT_SECRET", "DOWNLOAD_PAGE_URL", "DISCOVERY_MODE",
	"BROWSER_CONTROL_URL", "FETCH_TIMEOUT_SECONDS", "MAX_FEED_BYTES", "REDIS_URL", "DATABASE_URL",
	"RATE_LIMIT_TAGS_PER_MINUTE", "RATE_LIMIT_FEEDS_PER_MINUTE", "RATE_LIMIT_INDEX_PER_MINUTE",
	"TRUST_PROXY_HEADERS",
}

// clearConfigEnv blanks every variable Load reads. Blank values count as
// unset for the numeric and boolean keys.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
	t.Setenv("LISTEN_HOST", "0.0.0.0")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("DOWNLOAD_PAGE_URL", "https://www.microsoft.com/en-us/download/details.aspx?id=56519")
	t.Setenv("DISCOVERY_MODE", "http")
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned %v", err)
	}

	if cfg.RefreshIntervalHours != 24 {
		t.Fatalf("RefreshIntervalHours = %d, want 24", cfg.RefreshIntervalHours)
	}
	if cfg.RefreshInterval() != 24*time.Hour {
		t.Fatalf("RefreshInterval = %s, want 24h", cfg.RefreshInterval())
	}
	if cfg.ListenAddr() != "0.0.0.0:8080" {
		t.Fatalf("ListenAddr = %q, want 0.0.0.0:8080", cfg.ListenAddr())
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.FetchTimeout != 60*time.Second || cfg.MaxFeedBytes != 64<<20 {
		t.Fatalf("fetch limits = (%s, %d)", cfg.FetchTimeout, cfg.MaxFeedBytes)
	}
	if cfg.RateLimitTagsPerMinute != 30 || cfg.RateLimitFeedsPerMinute != 60 || cfg.RateLimitIndexPerMinute != 30 {
		t.Fatalf("rate limits = (%d, %d, %d), want (30, 60, 30)",
			cfg.RateLimitTagsPerMinute, cfg.RateLimitFeedsPerMinute, cfg.RateLimitIndexPerMinute)
	}
	if cfg.TrustProxyHeaders || cfg.APIToken != "" || cfg.APITokenBcrypt != "" || cfg.JWTSecret != "" {
		t.Fatal("proxy headers trusted or a token configured by default")
	}
}

func TestLoadCustomValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("REFRESH_INTERVAL_HOURS", "12")
	t.Setenv("LISTEN_PORT", "9090")
	t.Setenv("API_TOKEN", "secret")
	t.Setenv("DISCOVERY_MODE", "Browser")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	t.Setenv("RATE_LIMIT_FEEDS_PER_MINUTE", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned %v", err)
	}
	if cfg.RefreshIntervalHours != 12 || cfg.ListenPort != 9090 {
		t.Fatalf("Load returned interval %d port %d, want 12 and 9090", cfg.RefreshIntervalHours, cfg.ListenPort)
	}
	if cfg.DiscoveryMode != DiscoveryBrowser {
		t.Fatalf("DiscoveryMode = %q, want browser", cfg.DiscoveryMode)
	}
	if !cfg.TrustProxyHeaders || cfg.APIToken != "secret" {
		t.Fatal("TRUST_PROXY_HEADERS or API_TOKEN ignored")
	}
	if cfg.RateLimitFeedsPerMinute != 0 {
		t.Fatalf("RateLimitFeedsPerMinute = %d, want 0", cfg.RateLimitFeedsPerMinute)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"interval not a number", "REFRESH_INTERVAL_HOURS", "daily"},
		{"interval zero", "REFRESH_INTERVAL_HOURS", "0"},
		{"port out of range", "LISTEN_PORT", "70000"},
		{"port zero", "LISTEN_PORT", "0"},
		{"negative rate limit", "RATE_LIMIT_TAGS_PER_MINUTE", "-1"},
		{"unknown discovery mode", "DISCOVERY_MODE", "ftp"},
		{"relative page url", "DOWNLOAD_PAGE_URL", "/download"},
		{"bad boolean", "TRUST_PROXY_HEADERS", "sometimes"},
		{"zero timeout", "FETCH_TIMEOUT_SECONDS", "0"},
		{"empty host", "LISTEN_HOST", "  "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Load returned %v, want ErrInvalidConfig", err)
			}
		})
	}
}
