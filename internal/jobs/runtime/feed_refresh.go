package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/rsx129921/FortinetExternalFeeds/internal/domain"
	"github.com/rsx129921/FortinetExternalFeeds/internal/feed"
)

const (
	MaxStartupRetries = 5
	StartupRetryDelay = 30 * time.Second

	feedRefreshFallbackEvery = 24 * time.Hour
	recordTimeout            = 5 * time.Second
)

// FeedSource produces the latest raw feed document.
type FeedSource interface {
	FetchLatest(ctx context.Context) (*feed.Document, error)
}

// RefreshRecorder receives one entry per refresh attempt.
type RefreshRecorder interface {
	RecordRefresh(ctx context.Context, entry domain.FeedRefresh) error
}

// FeedRefresher is the only writer of the feed cache. Run performs the
// startup attempts and then refreshes once per interval until its context is
// cancelled.
type FeedRefresher struct {
	source   FeedSource
	cache    *feed.Cache
	interval time.Duration

	startupAttempts int
	retryDelay      time.Duration
	recorder        RefreshRecorder

	wait  func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	group singleflight.Group
}

type RefresherOption func(*FeedRefresher)

// WithRecorder stores every attempt through r.
func WithRecorder(r RefreshRecorder) RefresherOption {
	return func(fr *FeedRefresher) {
		fr.recorder = r
	}
}

// WithStartupPolicy overrides the number of startup attempts and the delay
// between them.
func WithStartupPolicy(attempts int, delay time.Duration) RefresherOption {
	return func(fr *FeedRefresher) {
		if attempts > 0 {
			fr.startupAttempts = attempts
		}
		if delay >= 0 {
			fr.retryDelay = delay
		}
	}
}

func NewFeedRefresher(source FeedSource, cache *feed.Cache, interval time.Duration, opts ...RefresherOption) *FeedRefresher {
	if interval <= 0 {
		interval = feedRefreshFallbackEvery
	}
	fr := &FeedRefresher{
		source:          source,
		cache:           cache,
		interval:        interval,
		startupAttempts: MaxStartupRetries,
		retryDelay:      StartupRetryDelay,
		wait:            sleepContext,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(fr)
	}
	return fr
}

// Run blocks until ctx is done and returns ctx.Err(). Refresh failures are
// logged, never returned.
func (r *FeedRefresher) Run(ctx context.Context) error {
	r.runStartup(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		if err := r.wait(ctx, r.interval); err != nil {
			return err
		}
		r.trigger(ctx, "scheduled", 1)
	}
}

func (r *FeedRefresher) runStartup(ctx context.Context) {
	for attempt := 1; attempt <= r.startupAttempts; attempt++ {
		err := r.trigger(ctx, "startup", attempt)
		if err == nil || ctx.Err() != nil {
			return
		}
		log.Error("Startup feed refresh attempt failed",
			"attempt", attempt,
			"max", r.startupAttempts,
			"error", err,
		)
		if attempt == r.startupAttempts {
			break
		}
		if err := r.wait(ctx, r.retryDelay); err != nil {
			return
		}
	}
	log.Warn("Startup feed refresh attempts exhausted, serving without data until the next scheduled refresh",
		"attempts", r.startupAttempts,
		"next_in", r.interval,
	)
}

// RefreshOnce fetches the latest document and publishes it. It does not
// retry. Concurrent callers share a single in-flight refresh.
func (r *FeedRefresher) RefreshOnce(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		return nil, r.doRefresh(ctx)
	})
	return err
}

func (r *FeedRefresher) doRefresh(ctx context.Context) error {
	previous, hadPrevious := r.cache.ChangeNumber()

	doc, err := r.source.FetchLatest(ctx)
	if err != nil {
		return err
	}
	if err := r.cache.Load(doc); err != nil {
		return err
	}

	if current, _ := r.cache.ChangeNumber(); hadPrevious && current < previous {
		log.Warn("Feed change number went backwards", "previous", previous, "current", current)
	}
	return nil
}

func (r *FeedRefresher) trigger(ctx context.Context, reason string, attempt int) error {
	started := r.now()
	err := r.RefreshOnce(ctx)

	entry := domain.FeedRefresh{
		Reason:     reason,
		Attempt:    attempt,
		Success:    err == nil,
		DurationMs: r.now().Sub(started).Milliseconds(),
		StartedAt:  started.UTC(),
	}

	switch {
	case err == nil:
		snap := r.cache.Snapshot()
		change := snap.ChangeNumber
		entry.ChangeNumber = &change
		entry.TagCount = snap.Len()
		log.Info("Feed cache refreshed",
			"reason", reason,
			"change_number", change,
			"tags", snap.Len(),
		)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		log.Info("Feed refresh canceled", "reason", reason)
		return err
	case reason != "startup":
		log.Error("Feed refresh failed", "reason", reason, "error", err)
	}

	if err != nil {
		entry.Error = err.Error()
	}
	r.record(ctx, entry)
	return err
}

func (r *FeedRefresher) record(ctx context.Context, entry domain.FeedRefresh) {
	if r.recorder == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := r.recorder.RecordRefresh(recordCtx, entry); err != nil {
		log.Warn("Failed to record feed refresh", "reason", entry.Reason, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
