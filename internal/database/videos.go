package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kybervision-api/internal/metrics"
)

// CreateVideo inserts a new video record and returns it with the
// store-assigned id. Status starts at pending and the URL starts as a
// placeholder; both are finalized later in the upload flow.
func (d *Database) CreateVideo(ctx context.Context, matchID int64, filename, originalFilename, sizeMB string) (*Video, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO videos (match_id, filename, original_filename, url, size_mb, processing_status)
		VALUES (?, ?, ?, 'placeholder', ?, ?)`,
		matchID, filename, originalFilename, sizeMB, StatusPending,
	)
	metrics.ObserveDBQuery("create_video", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create video record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new video id: %w", err)
	}

	return d.GetVideo(ctx, id)
}

// GetVideo returns the video record with the given id, or ErrNotFound.
func (d *Database) GetVideo(ctx context.Context, id int64) (*Video, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	row := d.db.QueryRowContext(ctx, `
		SELECT id, match_id, filename, original_filename, url, size_mb,
		       processing_status, COALESCE(created_estimate, ''), created_at, updated_at
		FROM videos WHERE id = ?`, id)

	v, err := scanVideo(row)
	metrics.ObserveDBQuery("get_video", start, err)
	return v, err
}

// ListVideos returns all video records, newest first.
func (d *Database) ListVideos(ctx context.Context) ([]Video, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, match_id, filename, original_filename, url, size_mb,
		       processing_status, COALESCE(created_estimate, ''), created_at, updated_at
		FROM videos ORDER BY id DESC`)
	metrics.ObserveDBQuery("list_videos", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// FinalizeVideo sets the deterministic filename and public URL once the
// record id is known. The record is updated in place, never replaced.
func (d *Database) FinalizeVideo(ctx context.Context, id int64, filename, url string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, `
		UPDATE videos SET filename = ?, url = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?`, filename, url, id)
	metrics.ObserveDBQuery("finalize_video", start, err)
	if err != nil {
		return fmt.Errorf("failed to finalize video %d: %w", id, err)
	}
	return requireRow(res)
}

// SetVideoStatus advances the processing status. Transitions are
// forward-only; an attempt to regress (e.g. completed -> processing)
// returns an error and leaves the record untouched.
func (d *Database) SetVideoStatus(ctx context.Context, id int64, status ProcessingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid processing status %q", status)
	}

	v, err := d.GetVideo(ctx, id)
	if err != nil {
		return err
	}
	if statusRank[status] < statusRank[v.Status] {
		return fmt.Errorf("status cannot regress from %s to %s", v.Status, status)
	}

	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, `
		UPDATE videos SET processing_status = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?`, status, id)
	metrics.ObserveDBQuery("set_video_status", start, err)
	if err != nil {
		return fmt.Errorf("failed to update status for video %d: %w", id, err)
	}
	return requireRow(res)
}

// SetVideoCreatedEstimate updates the human-supplied creation-time
// estimate. This is the only field POST /videos/update/{id} may touch.
func (d *Database) SetVideoCreatedEstimate(ctx context.Context, id int64, estimate string) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, `
		UPDATE videos SET created_estimate = ?, updated_at = strftime('%s', 'now')
		WHERE id = ?`, estimate, id)
	metrics.ObserveDBQuery("set_video_estimate", start, err)
	if err != nil {
		return fmt.Errorf("failed to update estimate for video %d: %w", id, err)
	}
	return requireRow(res)
}

// DeleteVideo removes the record. Removing the backing file is the
// caller's responsibility (the handler owns the path resolution).
func (d *Database) DeleteVideo(ctx context.Context, id int64) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	metrics.ObserveDBQuery("delete_video", start, err)
	if err != nil {
		return fmt.Errorf("failed to delete video %d: %w", id, err)
	}
	return requireRow(res)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var createdAt, updatedAt int64
	err := row.Scan(&v.ID, &v.MatchID, &v.Filename, &v.OriginalFilename, &v.URL,
		&v.SizeMB, &v.Status, &v.CreatedEstimate, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video row: %w", err)
	}
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)
	return &v, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
