package streaming

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"kybervision-api/internal/logging"
	"kybervision-api/internal/metrics"
)

// NoRangePolicy selects the response when no Range header is present.
type NoRangePolicy int

const (
	// ServeFull sends the entire file with status 200.
	ServeFull NoRangePolicy = iota
	// RequireRange refuses with status 416; the endpoint only serves
	// partial content.
	RequireRange
)

// EndDefault selects how an open-ended range (bytes=N-) is completed.
type EndDefault int

const (
	// EndOfFile reads to the last byte of the file.
	EndOfFile EndDefault = iota
	// Window caps the response at start + WindowSize - 1.
	Window
)

const (
	// DefaultWindowSize bounds open-ended ranges under the Window
	// strategy, and is also the recommended internal read bound.
	DefaultWindowSize = 8 << 20 // 8 MiB

	copyBufferSize = 256 << 10 // 256 KiB
)

// ErrInvalidRange is returned for malformed or unsatisfiable ranges.
var ErrInvalidRange = errors.New("invalid range")

// Options configures ServeFileRange per endpoint.
type Options struct {
	NoRange     NoRangePolicy
	EndDefault  EndDefault
	WindowSize  int64  // 0 means DefaultWindowSize
	ContentType string // "" means video/mp4
}

// byteRange is a resolved, inclusive byte window.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 { return r.end - r.start + 1 }

// parseRange resolves a Range header value against the file size.
// Only single ranges of the form bytes=<start>-[<end>] are supported,
// which is what video players send.
func parseRange(header string, size int64, opts Options) (byteRange, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return byteRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return byteRange{}, fmt.Errorf("%w: %q", ErrInvalidRange, header)
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return byteRange{}, fmt.Errorf("%w: bad start in %q", ErrInvalidRange, header)
	}
	if start >= size {
		return byteRange{}, fmt.Errorf("%w: start %d beyond size %d", ErrInvalidRange, start, size)
	}

	var end int64
	if endStr = strings.TrimSpace(endStr); endStr == "" {
		window := opts.WindowSize
		if window <= 0 {
			window = DefaultWindowSize
		}
		switch opts.EndDefault {
		case Window:
			end = start + window - 1
		default:
			end = size - 1
		}
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return byteRange{}, fmt.Errorf("%w: bad end in %q", ErrInvalidRange, header)
		}
	}

	if end > size-1 {
		end = size - 1
	}

	return byteRange{start: start, end: end}, nil
}

// ServeFileRange streams path according to the request's Range header
// and the endpoint's options. It owns the full response, headers
// included; callers should resolve existence (404) before calling.
// Safe to repeat: the operation reads only.
func ServeFileRange(w http.ResponseWriter, r *http.Request, path string, opts Options) error {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}

	file, err := os.Open(path)
	if err != nil {
		http.Error(w, "Failed to open video file", http.StatusInternalServerError)
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close video file %s: %v", path, err)
		}
	}()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Failed to stat video file", http.StatusInternalServerError)
		return err
	}
	size := info.Size()

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		if opts.NoRange == RequireRange {
			http.Error(w, "Range header required for streaming", http.StatusRequestedRangeNotSatisfiable)
			return nil
		}
		return serveFull(w, file, size, contentType)
	}

	br, err := parseRange(rangeHeader, size, opts)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Requested range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return err
	}

	if _, err := file.Seek(br.start, io.SeekStart); err != nil {
		http.Error(w, "Failed to seek video file", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, size))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(br.length(), 10))
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusPartialContent)

	n, err := copyBounded(w, io.LimitReader(file, br.length()))
	metrics.StreamBytesTotal.Add(float64(n))
	if err != nil {
		// Headers are gone; client disconnects land here. Log only.
		logging.Debug("range stream ended early for %s after %d bytes: %v", path, n, err)
	} else {
		logging.Debug("sent chunk %d-%d of %s (%d bytes)", br.start, br.end, path, n)
	}
	return nil
}

func serveFull(w http.ResponseWriter, file *os.File, size int64, contentType string) error {
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)

	n, err := copyBounded(w, file)
	metrics.StreamBytesTotal.Add(float64(n))
	if err != nil {
		logging.Debug("full stream ended early after %d bytes: %v", n, err)
	}
	return nil
}

// copyBounded copies with a fixed-size buffer so memory stays bounded
// regardless of the requested window.
func copyBounded(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	return io.CopyBuffer(dst, src, buf)
}
