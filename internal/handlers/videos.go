package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"kybervision-api/internal/database"
	"kybervision-api/internal/logging"
	"kybervision-api/internal/metrics"
	"kybervision-api/internal/montage"
	"kybervision-api/internal/storage"
	"kybervision-api/internal/streaming"
)

// maxMultipartMemory bounds how much of the multipart form is held in
// memory; the file part itself spools to disk above this.
const maxMultipartMemory = 32 << 20

// UploadVideo handles POST /videos/upload.
func (h *Handlers) UploadVideo(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, false)
}

// UploadVideoYouTube handles POST /videos/upload-youtube: the same
// ingestion flow, plus a trigger for the external publishing pipeline.
func (h *Handlers) UploadVideoYouTube(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, true)
}

func (h *Handlers) handleUpload(w http.ResponseWriter, r *http.Request, publishYouTube bool) {
	ctx := r.Context()

	userID, ok := userIDFrom(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	matchID, err := strconv.ParseInt(r.FormValue("matchId"), 10, 64)
	if err != nil || matchID < 1 {
		respondError(w, http.StatusBadRequest, "matchId is required")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No video file uploaded")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close uploaded file: %v", err)
		}
	}()

	// Write the body to a scratch name on the destination volume so the
	// later publish rename is atomic.
	tmpPath := h.layout.TempUploadName()
	written, err := writeUploadTemp(tmpPath, file)
	if err != nil {
		logging.Error("failed to persist upload to %s: %v", tmpPath, err)
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	sizeMB := storage.SizeMB(written)
	logging.Info("upload received: %s (%s MB) for match %d by user %d", header.Filename, sizeMB, matchID, userID)

	// Record first: the store-assigned id seeds the deterministic
	// filename. The scratch name holds the UNIQUE slot until then.
	video, err := h.db.CreateVideo(ctx, matchID, filepath.Base(tmpPath), header.Filename, sizeMB)
	if err != nil {
		logging.Error("failed to create video record for %s: %v", tmpPath, err)
		removeOrphan(tmpPath)
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	finalName := storage.VideoFilename(video.ID, matchID, userID)
	finalPath, err := h.layout.CommitUpload(tmpPath, finalName)
	if err != nil {
		// The record exists but the file is still under its scratch
		// name; log both so the orphan can be reconciled by hand.
		logging.Error("failed to commit upload for video %d (temp file %s): %v", video.ID, tmpPath, err)
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	url := fmt.Sprintf("%s/videos/%d", h.cfg.BaseURL, video.ID)
	if err := h.db.FinalizeVideo(ctx, video.ID, finalName, url); err != nil {
		logging.Error("failed to finalize video %d (file %s): %v", video.ID, finalPath, err)
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// Reconciliation is best effort: a failure must not fail the upload.
	syncUpdates, err := h.db.RebindSyncContracts(ctx, video.ID, matchID)
	if err != nil {
		logging.Error("sync contract rebinding failed for video %d: %v", video.ID, err)
		syncUpdates = 0
	} else {
		logging.Info("rebound %d sync contract(s) to video %d", syncUpdates, video.ID)
	}

	// Acknowledge before processing: the ingest job runs out of band.
	h.enqueueUploadJobs(video.ID, finalPath, userID, publishYouTube)

	video, err = h.db.GetVideo(ctx, video.ID)
	if err != nil {
		logging.Error("failed to reload video %d after upload: %v", video.ID, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.UploadBytesTotal.Add(float64(written))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]interface{}{
		"result":               true,
		"message":              "Video uploaded successfully",
		"video":                video,
		"syncContractsUpdated": syncUpdates,
	})
}

func (h *Handlers) enqueueUploadJobs(videoID int64, sourcePath string, userID int64, publishYouTube bool) {
	jobs := []montage.Job{{
		Kind:        montage.KindIngest,
		VideoID:     videoID,
		SourcePath:  sourcePath,
		RequestedBy: userID,
	}}
	if publishYouTube {
		jobs = append(jobs, montage.Job{
			Kind:        montage.KindPublishYouTube,
			VideoID:     videoID,
			SourcePath:  sourcePath,
			RequestedBy: userID,
		})
	}

	// Enqueue happens after the response is committed conceptually, so a
	// request-scoped context would be wrong here.
	ctx := context.Background()
	for _, job := range jobs {
		if err := h.queue.Enqueue(ctx, job); err != nil {
			// Non-fatal: the record stays pending and can be reprocessed.
			logging.Error("failed to enqueue %s job for video %d: %v", job.Kind, videoID, err)
		}
	}
}

func writeUploadTemp(tmpPath string, src io.Reader) (int64, error) {
	dst, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		removeOrphan(tmpPath)
		return 0, err
	}
	return written, nil
}

func removeOrphan(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Error("failed to remove orphaned upload %s: %v", path, err)
	}
}

// ListVideos handles GET /videos: every record enriched with resolved
// match and team data.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.db.ListVideos(ctx)
	if err != nil {
		logging.Error("failed to list videos: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	enriched := make([]database.VideoWithMatch, 0, len(videos))
	for _, v := range videos {
		item := database.VideoWithMatch{Video: v}
		if match, err := h.db.MatchWithTeams(ctx, v.MatchID); err == nil {
			item.Match = match
		}
		enriched = append(enriched, item)
	}

	writeJSON(w, map[string]interface{}{
		"result": true,
		"videos": enriched,
	})
}

// GetVideo handles GET /videos/{id}: the full-file endpoint. Without a
// Range header the whole file is served with a 200; with one, an
// open-ended range runs to end of file.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	h.serveVideo(w, r, "get", streaming.Options{
		NoRange:    streaming.ServeFull,
		EndDefault: streaming.EndOfFile,
	})
}

func (h *Handlers) serveVideo(w http.ResponseWriter, r *http.Request, endpoint string, opts streaming.Options) {
	id, ok := pathID(r, "videoId")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	video, err := h.db.GetVideo(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		metrics.StreamRequestsTotal.WithLabelValues(endpoint, "not_found").Inc()
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		logging.Error("failed to load video %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	path, err := h.layout.ResolveVideo(video.Filename)
	if err != nil {
		logging.Error("video %d has unresolvable filename %q: %v", id, video.Filename, err)
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		metrics.StreamRequestsTotal.WithLabelValues(endpoint, "not_found").Inc()
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}

	metrics.StreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	if err := streaming.ServeFileRange(w, r, path, opts); err != nil {
		logging.Debug("stream of video %d ended with: %v", id, err)
	}
}

// DeleteVideo handles DELETE /videos/{id}: removes the record and the
// backing file together.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "videoId")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	video, err := h.db.GetVideo(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		logging.Error("failed to load video %d for delete: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if err := h.layout.RemoveVideo(video.Filename); err != nil {
		logging.Error("failed to remove file for video %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if err := h.db.DeleteVideo(ctx, id); err != nil && !errors.Is(err, database.ErrNotFound) {
		logging.Error("failed to delete video record %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	logging.Info("deleted video %d (%s)", id, video.Filename)
	writeJSON(w, map[string]interface{}{
		"result":  true,
		"message": "Video deleted successfully",
	})
}

// UpdateVideo handles POST /videos/update/{id}. Only the human-supplied
// creation-time estimate may change through this endpoint.
func (h *Handlers) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "videoId")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid video id")
		return
	}

	var req struct {
		Estimate string `json:"videoFileCreatedDateTimeEstimate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.db.SetVideoCreatedEstimate(ctx, id, req.Estimate)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video not found")
		return
	}
	if err != nil {
		logging.Error("failed to update estimate for video %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, map[string]interface{}{
		"result":  true,
		"message": "Video updated successfully",
	})
}
