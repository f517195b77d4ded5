package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rsx129921/FortinetExternalFeeds/internal/app/server"
	"github.com/rsx129921/FortinetExternalFeeds/internal/auth"
	"github.com/rsx129921/FortinetExternalFeeds/internal/config"
	"github.com/rsx129921/FortinetExternalFeeds/internal/database"
	"github.com/rsx129921/FortinetExternalFeeds/internal/feed"
	"github.com/rsx129921/FortinetExternalFeeds/internal/jobs/runtime"
	"github.com/rsx129921/FortinetExternalFeeds/internal/ratelimit"
	"github.com/rsx129921/FortinetExternalFeeds/internal/servicetags"
	"github.com/rsx129921/FortinetExternalFeeds/internal/support"
)

const startupCheckTimeout = 10 * time.Second

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	hostFlag := flag.String("host", "", "Listen host (overrides LISTEN_HOST)")
	portFlag := flag.Int("port", 0, "Listen port (overrides LISTEN_PORT)")
	issueFlag := flag.String("issue-token", "", "Print a signed feed token for this subject and exit (needs JWT_SECRET)")
	ttlFlag := flag.Duration("token-ttl", 30*24*time.Hour, "Lifetime of the token printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = applyFlagOverrides(cfg, *hostFlag, *portFlag)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if *issueFlag != "" {
		return issueToken(os.Stdout, cfg, *issueFlag, *ttlFlag)
	}

	logCloser := support.ConfigureLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg)
}

// issueToken writes one signed token for subject to w.
func issueToken(w io.Writer, cfg config.Config, subject string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("issue token: ttl must be positive, got %s", ttl)
	}
	tokens, err := auth.NewTokenVerifier(cfg.APIToken, cfg.APITokenBcrypt, cfg.JWTSecret)
	if err != nil {
		return err
	}
	token, err := tokens.IssueToken(subject, ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func serve(ctx context.Context, cfg config.Config) error {
	tokens, err := auth.NewTokenVerifier(cfg.APIToken, cfg.APITokenBcrypt, cfg.JWTSecret)
	if err != nil {
		return err
	}
	if !tokens.Enabled() {
		log.Warn("No API token configured, feeds are served without authentication")
	}

	limiter, closeLimiter := newLimiter(ctx, cfg.RedisURL)
	defer closeLimiter()

	var (
		opts    []runtime.RefresherOption
		history server.HistoryReader
	)
	if cfg.DatabaseURL != "" {
		store, closeStore, err := openHistory(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn("Refresh history disabled", "error", err)
		} else {
			defer closeStore()
			opts = append(opts, runtime.WithRecorder(store))
			history = store
		}
	}

	cache := feed.NewCache()
	source := servicetags.NewSource(
		newDiscoverer(cfg),
		servicetags.WithHTTPClient(servicetags.NewHTTPClient(cfg.FetchTimeout)),
		servicetags.WithMaxBytes(cfg.MaxFeedBytes),
	)
	refresher := runtime.NewFeedRefresher(source, cache, cfg.RefreshInterval(), opts...)

	router := server.NewRouter(server.Dependencies{
		Cache:   cache,
		Tokens:  tokens,
		Limiter: limiter,
		Limits: server.Limits{
			Tags:  cfg.RateLimitTagsPerMinute,
			Feeds: cfg.RateLimitFeedsPerMinute,
			Index: cfg.RateLimitIndexPerMinute,
		},
		History:           history,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	log.Info("Starting feed relay",
		"addr", cfg.ListenAddr(),
		"refresh_interval", cfg.RefreshInterval(),
		"discovery", cfg.DiscoveryMode,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := refresher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return server.OpenRoutes(gctx, cfg.ListenAddr(), router)
	})

	err = g.Wait()
	log.Info("Feed relay stopped")
	return err
}

func applyFlagOverrides(cfg config.Config, host string, port int) config.Config {
	if host != "" {
		cfg.ListenHost = host
	}
	if port != 0 {
		cfg.ListenPort = port
	}
	return cfg
}

func newDiscoverer(cfg config.Config) servicetags.Discoverer {
	if cfg.DiscoveryMode == config.DiscoveryBrowser {
		return servicetags.NewBrowserDiscoverer(cfg.DownloadPageURL, cfg.BrowserControlURL, 0)
	}
	return servicetags.NewHTTPDiscoverer(cfg.DownloadPageURL, servicetags.NewHTTPClient(cfg.FetchTimeout))
}

// newLimiter returns the Redis-backed limiter when redisURL is set and
// reachable, the in-process one otherwise.
func newLimiter(ctx context.Context, redisURL string) (ratelimit.Limiter, func()) {
	if redisURL == "" {
		return ratelimit.NewMemoryLimiter(), func() {}
	}

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()

	client, err := support.GetRedisClient(checkCtx, redisURL)
	if err != nil {
		log.Warn("Redis unavailable, using in-process rate limits", "error", err)
		return ratelimit.NewMemoryLimiter(), func() {}
	}
	log.Info("Using Redis for rate limits")
	return ratelimit.NewRedisLimiter(client), func() {
		if err := support.CloseRedisClient(); err != nil {
			log.Warn("error closing redis client", "error", err)
		}
	}
}

func openHistory(ctx context.Context, dsn string, opts ...database.Option) (*database.HistoryStore, func(), error) {
	db, err := database.SetupDB(dsn, opts...)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := database.Close(db); err != nil {
			log.Warn("error closing database", "error", err)
		}
	}

	store := database.NewHistoryStore(db)

	checkCtx, cancel := context.WithTimeout(ctx, startupCheckTimeout)
	defer cancel()
	last, err := store.LastSuccess(checkCtx)
	switch {
	case err != nil:
		log.Warn("Failed to read last successful refresh", "error", err)
	case last != nil && last.ChangeNumber != nil:
		log.Info("Last successful refresh before restart",
			"change_number", *last.ChangeNumber,
			"started_at", last.StartedAt,
			"tags", last.TagCount,
		)
	}
	return store, closeDB, nil
}
