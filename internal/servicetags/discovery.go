package servicetags

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
)

const (
	// DefaultDownloadPageURL is the Microsoft page that links the weekly
	// "Azure IP Ranges and Service Tags – Public Cloud" file.
	DefaultDownloadPageURL = "https://www.microsoft.com/en-us/download/details.aspx?id=56519"

	maxPageBytes = 2 << 20 // 2 MiB
	userAgent    = "fortinet-external-feeds/1.0"
)

var (
	downloadURLPattern = regexp.MustCompile(`https://download\.microsoft\.com/download/[^"'\s<>]+ServiceTags_Public_\d+\.json`)

	// ErrDownloadURLNotFound is returned when the page holds no ServiceTags link.
	ErrDownloadURLNotFound = errors.New("servicetags: download url not found on page")
)

// Discoverer resolves the URL of the current ServiceTags JSON file.
type Discoverer interface {
	DiscoverURL(ctx context.Context) (string, error)
}

// HTTPDiscoverer fetches the download page with a plain HTTP GET.
type HTTPDiscoverer struct {
	pageURL string
	client  *http.Client
}

func NewHTTPDiscoverer(pageURL string, client *http.Client) *HTTPDiscoverer {
	if pageURL == "" {
		pageURL = DefaultDownloadPageURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDiscoverer{pageURL: pageURL, client: client}
}

func (d *HTTPDiscoverer) DiscoverURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch download page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("fetch download page: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	url, err := FindDownloadURL(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	log.Info("Discovered ServiceTags download URL", "url", url)
	return url, nil
}

// FindDownloadURL scans an HTML document for the ServiceTags JSON link. Link
// attributes are checked first; the page also embeds the URL in inline
// script data, so text nodes are searched as a fallback.
func FindDownloadURL(r io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(r)
	var fromText string

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("parse download page: %w", err)
			}
			if fromText != "" {
				return fromText, nil
			}
			return "", ErrDownloadURLNotFound
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			for _, attr := range token.Attr {
				if match := downloadURLPattern.FindString(attr.Val); match != "" {
					return match, nil
				}
			}
		case html.TextToken:
			if fromText == "" {
				fromText = downloadURLPattern.FindString(string(tokenizer.Text()))
			}
		}
	}
}
