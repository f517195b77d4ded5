package server

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultRefreshLimit = 50
	maxRefreshLimit     = 500
)

var errInvalidFlag = errors.New("invalid boolean flag")

type healthResponse struct {
	Status       string  `json:"status"`
	ChangeNumber *int64  `json:"change_number"`
	LastRefresh  *string `json:"last_refresh"`
}

func (h *handler) getHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if snap := h.cache.Snapshot(); snap != nil {
		change := snap.ChangeNumber
		refreshed := snap.RefreshedAt.UTC().Format(time.RFC3339)
		resp.ChangeNumber = &change
		resp.LastRefresh = &refreshed
	}
	writeJSON(w, http.StatusOK, resp)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Fortinet External Feeds</title></head>
<body>
<h1>Available Service Tags</h1>
<p>{{len .}} service tags available. Each link returns a plain-text list of IP/CIDR prefixes.</p>
<ul>{{range .}}
<li><a href="/feeds/{{.}}">{{.}}</a></li>{{end}}
</ul>
</body>
</html>
`))

func (h *handler) getIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := indexTemplate.Execute(w, h.cache.TagNames()); err != nil {
		log.Warn("Failed to render index", "error", err)
	}
}

func (h *handler) getRefreshes(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		notFound(w, r)
		return
	}

	limit := defaultRefreshLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRefreshLimit {
			writeError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.history.RecentRefreshes(r.Context(), limit)
	if err != nil {
		log.Error("Failed to read refresh history", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
