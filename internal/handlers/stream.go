package handlers

import (
	"net/http"

	"kybervision-api/internal/streaming"
)

// StreamVideo handles GET /videos/stream/{id}. Open-ended ranges are
// answered with a bounded window rather than the whole remainder, so a
// seeking player never pulls gigabytes it will immediately discard.
func (h *Handlers) StreamVideo(w http.ResponseWriter, r *http.Request) {
	h.serveVideo(w, r, "stream", streaming.Options{
		NoRange:    streaming.ServeFull,
		EndDefault: streaming.Window,
		WindowSize: streaming.DefaultWindowSize,
	})
}

// StreamOnlyVideo handles GET /videos/stream-only/{id}: the strict
// variant that refuses whole-file responses outright.
func (h *Handlers) StreamOnlyVideo(w http.ResponseWriter, r *http.Request) {
	h.serveVideo(w, r, "stream_only", streaming.Options{
		NoRange:    streaming.RequireRange,
		EndDefault: streaming.Window,
		WindowSize: streaming.DefaultWindowSize,
	})
}
