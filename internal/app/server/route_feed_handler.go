package server

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/rsx129921/FortinetExternalFeeds/internal/support"
)

var serviceTagPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

func (h *handler) getTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.TagNames())
}

// getFeed returns the prefixes of one tag as text, one per line. IPv6
// prefixes are left out unless ?ipv6=true.
func (h *handler) getFeed(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	if !serviceTagPattern.MatchString(tag) {
		notFound(w, r)
		return
	}

	includeIPv6, err := parseIPv6Flag(r.URL.Query().Get("ipv6"))
	if err != nil {
		writeError(w, "Invalid ipv6 parameter", http.StatusBadRequest)
		return
	}

	prefixes, ok := h.cache.Tag(tag, includeIPv6)
	if !ok {
		notFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(strings.Join(prefixes, "\n") + "\n"))
}

func parseIPv6Flag(raw string) (bool, error) {
	if strings.TrimSpace(raw) == "" {
		return false, nil
	}
	v, ok := support.ParseBool(raw)
	if !ok {
		return false, errInvalidFlag
	}
	return v, nil
}
