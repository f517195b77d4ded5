package servicetags

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rsx129921/FortinetExternalFeeds/internal/feed"
)

const fakeDownloadPage = `
<html><body>
<a href="https://download.microsoft.com/download/7/1/d/71d86715-5596-4529-9b13-da13a5de5b63/ServiceTags_Public_20260223.json"
   class="btn">Download</a>
</body></html>
`

const fakeServiceTags = `{
  "changeNumber": 200,
  "cloud": "Public",
  "values": [
    {
      "name": "AzureCloud",
      "id": "AzureCloud",
      "properties": {
        "changeNumber": 10,
        "platform": "Azure",
        "addressPrefixes": ["10.0.0.0/8"],
        "networkFeatures": []
      }
    }
  ]
}`

type staticDiscoverer struct {
	url string
	err error
}

func (d staticDiscoverer) DiscoverURL(context.Context) (string, error) {
	return d.url, d.err
}

func TestFindDownloadURL(t *testing.T) {
	t.Run("anchor href", func(t *testing.T) {
		got, err := FindDownloadURL(strings.NewReader(fakeDownloadPage))
		if err != nil {
			t.Fatalf("FindDownloadURL returned %v", err)
		}
		want := "https://download.microsoft.com/download/7/1/d/71d86715-5596-4529-9b13-da13a5de5b63/ServiceTags_Public_20260223.json"
		if got != want {
			t.Fatalf("FindDownloadURL returned %q, want %q", got, want)
		}
	})

	t.Run("inline script data", func(t *testing.T) {
		page := `<html><head><script>window.__DLCDetails__={"url":"https://download.microsoft.com/download/a/b/ServiceTags_Public_20260302.json"}</script></head><body></body></html>`
		got, err := FindDownloadURL(strings.NewReader(page))
		if err != nil {
			t.Fatalf("FindDownloadURL returned %v", err)
		}
		if !strings.HasSuffix(got, "ServiceTags_Public_20260302.json") {
			t.Fatalf("FindDownloadURL returned %q", got)
		}
	})

	t.Run("anchor preferred over text", func(t *testing.T) {
		page := `<p>https://download.microsoft.com/download/old/ServiceTags_Public_20250101.json</p>` +
			`<a href="https://download.microsoft.com/download/new/ServiceTags_Public_20260101.json">x</a>`
		got, err := FindDownloadURL(strings.NewReader(page))
		if err != nil {
			t.Fatalf("FindDownloadURL returned %v", err)
		}
		if !strings.HasSuffix(got, "ServiceTags_Public_20260101.json") {
			t.Fatalf("FindDownloadURL returned %q, want the anchor link", got)
		}
	})

	t.Run("missing link", func(t *testing.T) {
		_, err := FindDownloadURL(strings.NewReader(`<html><a href="https://example.com/file.json">x</a></html>`))
		if !errors.Is(err, ErrDownloadURLNotFound) {
			t.Fatalf("FindDownloadURL returned %v, want ErrDownloadURLNotFound", err)
		}
	})
}

func TestHTTPDiscoverer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request carried no User-Agent")
		}
		fmt.Fprint(w, fakeDownloadPage)
	}))
	defer srv.Close()

	url, err := NewHTTPDiscoverer(srv.URL, srv.Client()).DiscoverURL(context.Background())
	if err != nil {
		t.Fatalf("DiscoverURL returned %v", err)
	}
	if !strings.Contains(url, "ServiceTags_Public") || !strings.HasSuffix(url, ".json") {
		t.Fatalf("DiscoverURL returned %q", url)
	}
}

func TestHTTPDiscovererStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPDiscoverer(srv.URL, srv.Client()).DiscoverURL(context.Background())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("DiscoverURL returned %v, want a 503 error", err)
	}
}

func TestSourceFetchLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, fakeServiceTags)
	}))
	defer srv.Close()

	source := NewSource(staticDiscoverer{url: srv.URL + "/fake.json"}, WithHTTPClient(srv.Client()))
	doc, err := source.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest returned %v", err)
	}
	if *doc.ChangeNumber != 200 {
		t.Fatalf("ChangeNumber = %d, want 200", *doc.ChangeNumber)
	}
	if len(doc.Values) != 1 {
		t.Fatalf("len(Values) = %d, want 1", len(doc.Values))
	}
}

func TestSourceFetchLatestFailures(t *testing.T) {
	t.Run("discovery error", func(t *testing.T) {
		source := NewSource(staticDiscoverer{err: ErrDownloadURLNotFound})
		_, err := source.FetchLatest(context.Background())
		if !errors.Is(err, feed.ErrSourceUnavailable) || !errors.Is(err, ErrDownloadURLNotFound) {
			t.Fatalf("FetchLatest returned %v, want ErrSourceUnavailable wrapping ErrDownloadURLNotFound", err)
		}
	})

	t.Run("upstream status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		source := NewSource(staticDiscoverer{url: srv.URL}, WithHTTPClient(srv.Client()))
		if _, err := source.FetchLatest(context.Background()); !errors.Is(err, feed.ErrSourceUnavailable) {
			t.Fatalf("FetchLatest returned %v, want ErrSourceUnavailable", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"values": []}`)
		}))
		defer srv.Close()

		source := NewSource(staticDiscoverer{url: srv.URL}, WithHTTPClient(srv.Client()))
		_, err := source.FetchLatest(context.Background())
		if !errors.Is(err, feed.ErrSourceUnavailable) || !errors.Is(err, feed.ErrMalformedFeed) {
			t.Fatalf("FetchLatest returned %v, want ErrSourceUnavailable and ErrMalformedFeed", err)
		}
	})

	t.Run("body over cap", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, fakeServiceTags)
		}))
		defer srv.Close()

		source := NewSource(staticDiscoverer{url: srv.URL}, WithHTTPClient(srv.Client()), WithMaxBytes(64))
		_, err := source.FetchLatest(context.Background())
		if !errors.Is(err, feed.ErrSourceUnavailable) || !strings.Contains(err.Error(), "exceeds") {
			t.Fatalf("FetchLatest returned %v, want a size error", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, fakeServiceTags)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		source := NewSource(staticDiscoverer{url: srv.URL}, WithHTTPClient(srv.Client()))
		if _, err := source.FetchLatest(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("FetchLatest returned %v, want context.Canceled", err)
		}
	})
}
