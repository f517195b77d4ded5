package servicetags

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

const defaultBrowserTimeout = 90 * time.Second

// BrowserDiscoverer renders the download page in a headless Chrome and reads
// the link from the resulting DOM. It is meant for when the page only exposes
// the link after client-side rendering.
type BrowserDiscoverer struct {
	pageURL    string
	controlURL string
	timeout    time.Duration
}

// NewBrowserDiscoverer returns a discoverer that attaches to the DevTools
// endpoint at controlURL, or launches a local headless browser when it is
// empty.
func NewBrowserDiscoverer(pageURL, controlURL string, timeout time.Duration) *BrowserDiscoverer {
	if pageURL == "" {
		pageURL = DefaultDownloadPageURL
	}
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}
	return &BrowserDiscoverer{pageURL: pageURL, controlURL: controlURL, timeout: timeout}
}

func (d *BrowserDiscoverer) DiscoverURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	controlURL := d.controlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Leakless(true).Headless(true).Context(ctx)
		launched, err := l.Launch()
		if err != nil {
			return "", fmt.Errorf("launch browser: %w", err)
		}
		controlURL = launched
		defer l.Kill()
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	session, release, err := openSession(browser, l != nil)
	if err != nil {
		return "", err
	}
	defer release()

	page, err := stealth.Page(session)
	if err != nil {
		return "", fmt.Errorf("stealth page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("page close failed", "error", err)
		}
	}()

	if err := page.Navigate(d.pageURL); err != nil {
		return "", fmt.Errorf("navigate download page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait download page: %w", err)
	}

	content, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read download page: %w", err)
	}

	url, err := FindDownloadURL(strings.NewReader(content))
	if err != nil {
		return "", err
	}
	log.Info("Discovered ServiceTags download URL", "url", url, "mode", "browser")
	return url, nil
}

// openSession returns the browser to open pages in and the func that tears it
// down. A launched browser is closed outright. An attached browser keeps
// running; pages go into a fresh incognito context and only that context is
// disposed.
func openSession(browser *rod.Browser, launched bool) (*rod.Browser, func(), error) {
	if launched {
		return browser, func() {
			if err := browser.Close(); err != nil {
				log.Debug("browser close failed", "error", err)
			}
		}, nil
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, nil, fmt.Errorf("open browser context: %w", err)
	}
	return incognito, func() {
		if err := incognito.Close(); err != nil {
			log.Debug("browser context dispose failed", "error", err)
		}
	}, nil
}
