package handlers

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"kybervision-api/internal/logging"
	"kybervision-api/internal/metrics"
)

// resolveArtifact verifies the capability token and maps its filename
// claim to a file inside the montage directory. Any verification
// failure is a 401; a missing or escaped file is a 404. There is never
// a fallback artifact.
func (h *Handlers) resolveArtifact(w http.ResponseWriter, r *http.Request) (string, bool) {
	tokenStr := mux.Vars(r)["token"]

	filename, err := h.signer.Verify(tokenStr)
	if err != nil {
		metrics.TokenVerificationsTotal.WithLabelValues("invalid").Inc()
		respondError(w, http.StatusUnauthorized, "unauthorized: invalid token")
		return "", false
	}
	metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()

	path, err := h.layout.ResolveMontage(filename)
	if err != nil {
		logging.Warn("artifact token resolved to unsafe name %q: %v", filename, err)
		respondError(w, http.StatusNotFound, "Video not found")
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "Video not found")
		return "", false
	}
	return path, true
}

// PlayMontage handles GET /videos/montage-service/play-video/{token}:
// inline playback of a finished montage.
func (h *Handlers) PlayMontage(w http.ResponseWriter, r *http.Request) {
	path, ok := h.resolveArtifact(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// DownloadMontage handles GET /videos/montage-service/download-video/{token}:
// the same artifact forced as an attachment.
func (h *Handlers) DownloadMontage(w http.ResponseWriter, r *http.Request) {
	path, ok := h.resolveArtifact(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment")
	http.ServeFile(w, r, path)
}
