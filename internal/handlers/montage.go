package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"kybervision-api/internal/database"
	"kybervision-api/internal/logging"
	"kybervision-api/internal/montage"
)

// QueueMontageJob handles POST /videos/montage-service/queue-a-job:
// accepts the clip list, hands the work to the queue, and returns
// before any processing starts.
func (h *Handlers) QueueMontageJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		VideoID int64          `json:"videoId"`
		Clips   []montage.Clip `json:"actionsArray"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	video, err := h.db.GetVideo(ctx, req.VideoID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		logging.Error("failed to load video %d for montage: %v", req.VideoID, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	sourcePath, err := h.layout.ResolveVideo(video.Filename)
	if err != nil {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if _, err := os.Stat(sourcePath); err != nil {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}

	// The worker calls back into this service when the artifact lands;
	// it authenticates with a token minted for the requesting user.
	bearer, err := h.mintServiceToken(userID)
	if err != nil {
		logging.Error("failed to mint worker token for user %d: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	job := montage.Job{
		Kind:        montage.KindMontage,
		VideoID:     video.ID,
		SourcePath:  sourcePath,
		Clips:       req.Clips,
		RequestedBy: userID,
		CallbackURL: h.cfg.BaseURL + "/videos/montage-service/video-completed-notify-user",
		BearerToken: bearer,
	}
	if err := job.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.queue.Enqueue(ctx, job); err != nil {
		logging.Error("failed to enqueue montage job for video %d: %v", video.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to process job")
		return
	}

	logging.Info("montage job queued for video %d (%d clips) by user %d", video.ID, len(req.Clips), userID)
	writeJSON(w, map[string]interface{}{
		"result":  true,
		"message": "Job queued successfully",
	})
}

// CreateMontage handles POST /videos/montage/{id}: the legacy
// synchronous path. The request blocks until ffmpeg finishes and the
// response carries the artifact name directly.
func (h *Handlers) CreateMontage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "videoId")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	var req struct {
		Clips []montage.Clip `json:"actionsArray"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Clips) == 0 {
		respondError(w, http.StatusBadRequest, "actionsArray is required")
		return
	}
	for _, c := range req.Clips {
		if err := c.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	video, err := h.db.GetVideo(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		logging.Error("failed to load video %d for montage: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	sourcePath, err := h.layout.ResolveVideo(video.Filename)
	if err != nil {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}

	outputName, err := h.runner.GenerateMontage(ctx, sourcePath, req.Clips)
	if err != nil {
		logging.Error("montage generation failed for video %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate montage")
		return
	}

	writeJSON(w, map[string]interface{}{
		"result":   true,
		"message":  "Montage created successfully",
		"filename": outputName,
	})
}

// VideoCompletedNotifyUser handles the worker's completion callback:
// it is the only place an artifact token is minted. The link mailed to
// the user embeds that token, so possession of the email is the whole
// credential for playback.
func (h *Handlers) VideoCompletedNotifyUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		respondError(w, http.StatusBadRequest, "filename is required")
		return
	}

	// The filename must resolve inside the montage dir before a token is
	// minted for it.
	if _, err := h.layout.ResolveMontage(req.Filename); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	user, err := h.db.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logging.Error("failed to load user %d for completion notice: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	artifactToken, err := h.signer.Mint(req.Filename)
	if err != nil {
		logging.Error("failed to mint artifact token for %s: %v", req.Filename, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	playURL := fmt.Sprintf("%s/videos/montage-service/play-video/%s", h.cfg.BaseURL, artifactToken)
	body := fmt.Sprintf("Hi %s,\n\nYour montage is ready. Watch it here:\n\n%s\n", user.Username, playURL)

	if err := h.sender.Send(user.Email, "Your montage is ready", body); err != nil {
		logging.Error("failed to send completion notice to %s: %v", user.Email, err)
		respondError(w, http.StatusInternalServerError, "Failed to send notification")
		return
	}

	logging.Info("completion notice sent to user %d for %s", userID, req.Filename)
	writeJSON(w, map[string]interface{}{
		"result":  true,
		"message": "User notified successfully",
	})
}
