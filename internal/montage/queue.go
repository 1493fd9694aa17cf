package montage

import (
	"context"
	"errors"
	"sync"

	"kybervision-api/internal/logging"
	"kybervision-api/internal/metrics"
)

// ErrQueueFull is returned when the handoff slot is occupied. The job
// is not started; callers surface this as a generic processing error.
var ErrQueueFull = errors.New("job queue is full")

// ErrQueueClosed is returned after Close.
var ErrQueueClosed = errors.New("job queue is closed")

// Queue is the single accept-and-dispatch point for background jobs.
// Enqueue must not block the caller beyond admission: the HTTP handler
// returns success as soon as the job is accepted, not when it finishes.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}

// MemoryQueue is the default in-process handoff: a small buffered
// channel drained by a fixed set of workers (one by default, matching
// the single-job-at-a-time contract).
type MemoryQueue struct {
	runner *Runner
	jobs   chan Job
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue starts the worker goroutines and returns the queue.
// workers and capacity are clamped to at least 1.
func NewMemoryQueue(runner *Runner, workers, capacity int) *MemoryQueue {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}

	q := &MemoryQueue{
		runner: runner,
		jobs:   make(chan Job, capacity),
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work(i)
	}

	logging.Info("montage queue started: %d worker(s), capacity %d", workers, capacity)
	return q
}

// Enqueue admits the job or fails immediately. A full channel means the
// single handoff slot is taken; the job is considered not started.
func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	if err := job.Validate(); err != nil {
		metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "rejected").Inc()
		return err
	}

	// The send happens under the lock so Close cannot close the channel
	// between the closed check and the send.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "queued").Inc()
		logging.Info("queued %s job for video %d", job.Kind, job.VideoID)
		return nil
	default:
		metrics.MontageJobsTotal.WithLabelValues(string(job.Kind), "rejected").Inc()
		return ErrQueueFull
	}
}

func (q *MemoryQueue) work(id int) {
	defer q.wg.Done()

	for job := range q.jobs {
		// Jobs own their lifecycle once accepted; the request context
		// that enqueued them is long gone.
		if err := q.runner.Run(context.Background(), job); err != nil {
			logging.Error("worker %d: %s job for video %d failed: %v", id, job.Kind, job.VideoID, err)
		}
	}
}

// Close stops admission and waits for in-flight jobs to finish.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
