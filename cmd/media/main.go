package main

import (
	"os"

	"github.com/romariotrain/video-ingest/internal/app"
)

func main() {
	os.Exit(app.Run("media", run))
}
