// Package montage owns background processing of uploaded video: the job
// handoff queue, the ffmpeg-based clip extraction, and the dispatch of
// the external montage worker. Jobs are transient: once accepted by a
// queue the enqueuer discards them, and all further state transitions
// belong to the worker side.
package montage

import (
	"errors"
	"fmt"
)

// JobKind selects what the worker does with a job.
type JobKind string

const (
	// KindIngest finalizes a fresh upload: probe the file and advance
	// the record's processing status.
	KindIngest JobKind = "ingest"
	// KindMontage extracts the requested clips and concatenates them
	// into a finished montage artifact.
	KindMontage JobKind = "montage"
	// KindPublishYouTube triggers the external publishing pipeline for
	// an upload destined for YouTube.
	KindPublishYouTube JobKind = "publish-youtube"
)

// Clip is one timestamp pair: an inclusive start/end window in seconds.
type Clip struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Validate rejects windows the transcoder cannot cut.
func (c Clip) Validate() error {
	if c.Start < 0 || c.End <= c.Start {
		return fmt.Errorf("invalid clip window %.3f-%.3f", c.Start, c.End)
	}
	return nil
}

// Job is a single unit of out-of-band work. It carries everything the
// worker needs to run independently of the HTTP layer: the source file,
// the ordered clip windows, the requesting identity, and the bearer
// credential for the completion callback into this service.
type Job struct {
	Kind        JobKind `json:"kind"`
	VideoID     int64   `json:"videoId"`
	SourcePath  string  `json:"sourcePath"`
	Clips       []Clip  `json:"clips,omitempty"`
	RequestedBy int64   `json:"requestedBy"`
	CallbackURL string  `json:"callbackUrl,omitempty"`
	BearerToken string  `json:"bearerToken,omitempty"`
}

// Validate checks the fields each kind requires.
func (j Job) Validate() error {
	if j.SourcePath == "" {
		return errors.New("job has no source path")
	}
	if j.Kind == KindMontage {
		if len(j.Clips) == 0 {
			return errors.New("montage job has no clips")
		}
		for _, c := range j.Clips {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
