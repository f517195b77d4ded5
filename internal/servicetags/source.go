package servicetags

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rsx129921/FortinetExternalFeeds/internal/feed"
)

const (
	DefaultFetchTimeout = 60 * time.Second
	DefaultMaxFeedBytes = 64 << 20 // 64 MiB; the public file is ~4 MiB
)

// Source obtains the latest ServiceTags document: discover the current file
// URL, then download and decode it. Every failure is wrapped with
// feed.ErrSourceUnavailable.
type Source struct {
	discoverer Discoverer
	client     *http.Client
	maxBytes   int64
}

type Option func(*Source)

// WithHTTPClient replaces the client used to download the JSON file.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithMaxBytes caps the size of the JSON body.
func WithMaxBytes(n int64) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func NewSource(discoverer Discoverer, opts ...Option) *Source {
	s := &Source{
		discoverer: discoverer,
		client:     &http.Client{Timeout: DefaultFetchTimeout},
		maxBytes:   DefaultMaxFeedBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHTTPClient returns a client with the given overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (s *Source) FetchLatest(ctx context.Context) (*feed.Document, error) {
	url, err := s.discoverer.DiscoverURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: discover: %w", feed.ErrSourceUnavailable, err)
	}

	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", feed.ErrSourceUnavailable, err)
	}
	log.Info("Fetched ServiceTags", "change_number", *doc.ChangeNumber, "tags", len(doc.Values))
	return doc, nil
}

func (s *Source) fetchDocument(ctx context.Context, url string) (*feed.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Read one byte past the cap so an oversized body is detected rather
	// than silently truncated into invalid JSON.
	content, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(content)) > s.maxBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", s.maxBytes)
	}

	return feed.ParseDocument(content)
}
