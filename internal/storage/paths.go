// Package storage centralizes filesystem path resolution for video and
// montage artifacts. Filenames handed to the filesystem are always
// derived from record identifiers, never from client-supplied input;
// names arriving from the outside (token claims, URLs) are validated
// against traversal before being joined to a base directory.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsafeName is returned for names containing path separators or
// traversal segments.
var ErrUnsafeName = errors.New("unsafe file name")

// Layout is the fixed directory layout the service operates in. All
// three directories are validated at startup.
type Layout struct {
	UploadDir  string // scratch space for in-flight uploads
	VideoDir   string // permanent video storage
	MontageDir string // finished montage artifacts
}

// VideoFilename derives the deterministic stored name for a video from
// the record id, the match id, and the uploader. The scheme decouples
// the on-disk name from the client-controlled original filename, so two
// uploads of "match.mp4" can never collide.
func VideoFilename(videoID, matchID, userID int64) string {
	return fmt.Sprintf("video_%d_match_%d_user_%d.mp4", videoID, matchID, userID)
}

// TempUploadName returns a unique scratch name inside the video
// directory. Keeping the temp file on the same volume as its final name
// makes the commit rename atomic.
func (l Layout) TempUploadName() string {
	return filepath.Join(l.VideoDir, ".upload-"+uuid.NewString()+".part")
}

// ResolveVideo joins a stored video filename against the video
// directory, rejecting anything that could escape it.
func (l Layout) ResolveVideo(name string) (string, error) {
	return resolve(l.VideoDir, name)
}

// ResolveMontage joins a finished-montage filename against the montage
// directory, rejecting anything that could escape it.
func (l Layout) ResolveMontage(name string) (string, error) {
	return resolve(l.MontageDir, name)
}

func resolve(baseDir, name string) (string, error) {
	if name == "" {
		return "", ErrUnsafeName
	}
	// Identifier-only names: no separators, no traversal.
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", ErrUnsafeName
	}

	full := filepath.Join(baseDir, name)
	if !isSubPath(baseDir, full) {
		return "", ErrUnsafeName
	}
	return full, nil
}

// CommitUpload atomically publishes a fully-written temp file under its
// deterministic final name. Same-volume rename: concurrent readers see
// either no file or the complete file, never a partial one.
func (l Layout) CommitUpload(tmpPath string, finalName string) (string, error) {
	finalPath, err := l.ResolveVideo(finalName)
	if err != nil {
		return "", err
	}
	if err := renameWithRetry(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to commit upload to %s: %w", finalPath, err)
	}
	return finalPath, nil
}

// RemoveVideo deletes a stored video file. Missing files are not an
// error: the record is authoritative and the file may already be gone.
func (l Layout) RemoveVideo(name string) error {
	path, err := l.ResolveVideo(name)
	if err != nil {
		return err
	}
	if err := removeWithRetry(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove video file %s: %w", path, err)
	}
	return nil
}

// SizeMB formats a byte count as megabytes with two decimal places,
// matching the display format stored on the video record.
func SizeMB(bytes int64) string {
	return fmt.Sprintf("%.2f", float64(bytes)/(1024*1024))
}

// isSubPath reports whether child resolves inside parent.
func isSubPath(parent, child string) bool {
	parent, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	child, err = filepath.Abs(child)
	if err != nil {
		return false
	}
	if parent == child {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}
