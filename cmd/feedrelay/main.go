package main

import (
	"github.com/charmbracelet/log"

	"github.com/rsx129921/FortinetExternalFeeds/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal("application terminated", "error", err)
	}
}
