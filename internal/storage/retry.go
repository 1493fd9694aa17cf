package storage

import (
	"errors"
	"os"
	"syscall"
	"time"

	"kybervision-api/internal/logging"
)

// Rename and remove hit network filesystems in some deployments, where
// transient ESTALE/EIO errors show up under load. A short bounded retry
// absorbs those without hiding real failures.

const (
	maxRetries     = 3
	initialBackoff = 50 * time.Millisecond
)

func isTransient(err error) bool {
	return errors.Is(err, syscall.ESTALE) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.EBUSY)
}

func withRetry(op string, path string, fn func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		logging.Warn("transient %s error on %s (attempt %d/%d): %v", op, path, attempt+1, maxRetries+1, err)
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func renameWithRetry(oldPath, newPath string) error {
	return withRetry("rename", newPath, func() error {
		return os.Rename(oldPath, newPath)
	})
}

func removeWithRetry(path string) error {
	return withRetry("remove", path, func() error {
		return os.Remove(path)
	})
}
