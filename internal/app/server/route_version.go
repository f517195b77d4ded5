package server

import (
	"net/http"

	"github.com/rsx129921/FortinetExternalFeeds/internal/app/version"
)

func getVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
