package montage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"kybervision-api/internal/database"
	"kybervision-api/internal/logging"
	"kybervision-api/internal/metrics"
	"kybervision-api/internal/storage"
)

// Runner executes montage jobs. When an external worker binary is
// configured it is started fire-and-forget; otherwise clip extraction
// runs in-process with ffmpeg.
type Runner struct {
	db        *database.Database
	layout    storage.Layout
	workerBin string
	client    *http.Client

	processMu sync.Mutex
	processes map[string]*exec.Cmd
}

// NewRunner creates a Runner. workerBin may be empty for in-process
// ffmpeg execution.
func NewRunner(db *database.Database, layout storage.Layout, workerBin string) *Runner {
	return &Runner{
		db:        db,
		layout:    layout,
		workerBin: workerBin,
		client:    &http.Client{Timeout: 30 * time.Second},
		processes: make(map[string]*exec.Cmd),
	}
}

// Run executes one job to its terminal state.
func (r *Runner) Run(ctx context.Context, job Job) error {
	start := time.Now()
	err := r.run(ctx, job)
	metrics.MontageJobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "failed").Inc()
		return err
	}
	metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "completed").Inc()
	return nil
}

func (r *Runner) run(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindIngest:
		return r.runIngest(ctx, job)
	case KindMontage:
		if r.workerBin != "" {
			return r.dispatchWorker(job)
		}
		return r.runMontage(ctx, job)
	case KindPublishYouTube:
		// The publishing pipeline is an external collaborator; all we
		// own is handing it the file.
		if r.workerBin == "" {
			logging.Warn("publish-youtube job for video %d skipped: no worker binary configured", job.VideoID)
			return nil
		}
		return r.dispatchWorker(job)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// runIngest validates a fresh upload with ffprobe and advances the
// record's processing status. Failures mark the record failed instead
// of leaving it pending forever.
func (r *Runner) runIngest(ctx context.Context, job Job) error {
	if err := r.db.SetVideoStatus(ctx, job.VideoID, database.StatusProcessing); err != nil {
		return fmt.Errorf("failed to mark video %d processing: %w", job.VideoID, err)
	}

	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-show_format", job.SourcePath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if statusErr := r.db.SetVideoStatus(ctx, job.VideoID, database.StatusFailed); statusErr != nil {
			logging.Error("failed to mark video %d failed: %v", job.VideoID, statusErr)
		}
		return fmt.Errorf("ffprobe rejected %s: %w - %s", job.SourcePath, err, stderr.String())
	}

	if err := r.db.SetVideoStatus(ctx, job.VideoID, database.StatusCompleted); err != nil {
		return fmt.Errorf("failed to mark video %d completed: %w", job.VideoID, err)
	}

	logging.Info("ingest completed for video %d", job.VideoID)
	return nil
}

// runMontage extracts each clip and concatenates them, then reports
// completion through the callback endpoint with the job's credential.
func (r *Runner) runMontage(ctx context.Context, job Job) error {
	outputName, err := r.GenerateMontage(ctx, job.SourcePath, job.Clips)
	if err != nil {
		return err
	}

	if job.CallbackURL == "" {
		logging.Info("montage %s finished for video %d (no callback configured)", outputName, job.VideoID)
		return nil
	}
	return r.notifyCompleted(ctx, job, outputName)
}

// GenerateMontage cuts the clip windows out of sourcePath and joins
// them into a single artifact in the montage directory. Returns the
// bare artifact filename. Also used directly by the legacy synchronous
// montage endpoint.
func (r *Runner) GenerateMontage(ctx context.Context, sourcePath string, clips []Clip) (string, error) {
	segDir, err := os.MkdirTemp(r.layout.MontageDir, "segments-")
	if err != nil {
		return "", fmt.Errorf("failed to create segment directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(segDir); err != nil {
			logging.Warn("failed to remove segment directory %s: %v", segDir, err)
		}
	}()

	// Cut each window with stream copy: no re-encode, cuts land on the
	// nearest keyframes, which is what the montage tooling expects.
	var listBuf strings.Builder
	for i, clip := range clips {
		segPath := filepath.Join(segDir, fmt.Sprintf("segment_%03d.mp4", i))
		args := []string{
			"-y",
			"-ss", formatSeconds(clip.Start),
			"-to", formatSeconds(clip.End),
			"-i", sourcePath,
			"-c", "copy",
			segPath,
		}
		if err := r.runFFmpeg(ctx, fmt.Sprintf("%s#%d", sourcePath, i), args); err != nil {
			return "", fmt.Errorf("failed to extract clip %d (%.3f-%.3f): %w", i, clip.Start, clip.End, err)
		}
		fmt.Fprintf(&listBuf, "file '%s'\n", segPath)
	}

	listPath := filepath.Join(segDir, "segments.txt")
	if err := os.WriteFile(listPath, []byte(listBuf.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	outputName := fmt.Sprintf("montage_%s_%d.mp4", base, time.Now().Unix())
	outputPath := filepath.Join(r.layout.MontageDir, outputName)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	if err := r.runFFmpeg(ctx, outputPath, args); err != nil {
		return "", fmt.Errorf("failed to concatenate %d segments: %w", len(clips), err)
	}

	logging.Info("montage written: %s (%d clips)", outputPath, len(clips))
	return outputName, nil
}

func (r *Runner) runFFmpeg(ctx context.Context, key string, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.processMu.Lock()
	r.processes[key] = cmd
	r.processMu.Unlock()
	defer func() {
		r.processMu.Lock()
		delete(r.processes, key)
		r.processMu.Unlock()
	}()

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Error("ffmpeg stderr: %s", stderr.String())
		return fmt.Errorf("ffmpeg error: %w", err)
	}
	return nil
}

// dispatchWorker starts the external worker executable and returns as
// soon as it is running. The worker reconstructs paths from the base
// directory plus names, runs the transcoding engine, and reports back
// through the callback endpoint on its own schedule.
func (r *Runner) dispatchWorker(job Job) error {
	clipSpecs := make([]string, 0, len(job.Clips))
	for _, c := range job.Clips {
		clipSpecs = append(clipSpecs, fmt.Sprintf("%s-%s", formatSeconds(c.Start), formatSeconds(c.End)))
	}

	args := []string{
		"-mode", string(job.Kind),
		"-input", job.SourcePath,
		"-output-dir", r.layout.MontageDir,
		"-callback", job.CallbackURL,
		"-token", job.BearerToken,
	}
	if len(clipSpecs) > 0 {
		args = append(args, "-clips", strings.Join(clipSpecs, ","))
	}

	cmd := exec.Command(r.workerBin, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start montage worker %s: %w", r.workerBin, err)
	}

	logging.Info("montage worker started (pid %d) for video %d", cmd.Process.Pid, job.VideoID)

	// Reap in the background; the worker owns its own lifecycle.
	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Error("montage worker for video %d exited with error: %v", job.VideoID, err)
		}
	}()
	return nil
}

// notifyCompleted calls back into the service's completion endpoint
// using the credential supplied with the job.
func (r *Runner) notifyCompleted(ctx context.Context, job Job, outputName string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"filename": outputName,
		"videoId":  job.VideoID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+job.BearerToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("completion callback failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn("failed to close callback response body: %v", err)
		}
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("completion callback returned %s", resp.Status)
	}

	logging.Info("completion reported for video %d: %s", job.VideoID, outputName)
	return nil
}

// Cleanup kills any in-flight ffmpeg processes. Called on shutdown.
func (r *Runner) Cleanup() {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	for key, cmd := range r.processes {
		if cmd.Process != nil {
			logging.Info("killing ffmpeg process for %s", key)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", key, err)
			}
		}
	}
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
