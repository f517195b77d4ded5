package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rsx129921/FortinetExternalFeeds/internal/auth"
	"github.com/rsx129921/FortinetExternalFeeds/internal/domain"
	"github.com/rsx129921/FortinetExternalFeeds/internal/feed"
	"github.com/rsx129921/FortinetExternalFeeds/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// HistoryReader lists recorded refresh attempts, newest first.
type HistoryReader interface {
	RecentRefreshes(ctx context.Context, limit int) ([]domain.FeedRefresh, error)
}

// Limits are requests per minute per client address. Zero disables a limit.
type Limits struct {
	Tags  int
	Feeds int
	Index int
}

type Dependencies struct {
	Cache             *feed.Cache
	Tokens            *auth.TokenVerifier
	Limiter           ratelimit.Limiter
	Limits            Limits
	History           HistoryReader
	TrustProxyHeaders bool
}

type handler struct {
	cache   *feed.Cache
	history HistoryReader
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, "Not found", http.StatusNotFound)
}

// NewRouter wires every route and the shared middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	h := &handler{cache: deps.Cache, history: deps.History}
	if h.cache == nil {
		h.cache = feed.NewCache()
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter()
	}

	requireToken := auth.RequireToken(deps.Tokens)
	limit := func(group string, perMinute int, next http.Handler) http.Handler {
		return rateLimit(limiter, group, perMinute, deps.TrustProxyHeaders, next)
	}

	router := http.NewServeMux()
	router.HandleFunc("GET /health", h.getHealth)
	router.HandleFunc("GET /version", getVersion)
	router.Handle("GET /tags", limit("tags", deps.Limits.Tags, requireToken(http.HandlerFunc(h.getTags))))
	router.Handle("GET /feeds/{tag...}", limit("feeds", deps.Limits.Feeds, requireToken(http.HandlerFunc(h.getFeed))))
	router.Handle("GET /refreshes", requireToken(http.HandlerFunc(h.getRefreshes)))
	router.Handle("GET /{$}", limit("index", deps.Limits.Index, http.HandlerFunc(h.getIndex)))
	router.HandleFunc("/", notFound)

	return withRequestID(accessLog(securityHeaders(rejectTraversal(router))))
}

// OpenRoutes serves handler on addr until ctx is cancelled, then drains
// in-flight requests for up to ten seconds.
func OpenRoutes(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting feed server", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down feed server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
