package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func createTestMatch(t *testing.T, db *Database) int64 {
	t.Helper()
	ctx := context.Background()
	home, err := db.CreateTeam(ctx, "Home", "Paris")
	if err != nil {
		t.Fatalf("failed to create home team: %v", err)
	}
	away, err := db.CreateTeam(ctx, "Away", "Lyon")
	if err != nil {
		t.Fatalf("failed to create away team: %v", err)
	}
	matchID, err := db.CreateMatch(ctx, home, away, "2026-05-01", "Paris")
	if err != nil {
		t.Fatalf("failed to create match: %v", err)
	}
	return matchID
}

func TestCreateVideoDefaults(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "match.mp4", "12.34")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	if v.ID < 1 {
		t.Errorf("CreateVideo() id = %d, want >= 1", v.ID)
	}
	if v.Status != StatusPending {
		t.Errorf("new video status = %s, want %s", v.Status, StatusPending)
	}
	if v.URL != "placeholder" {
		t.Errorf("new video url = %q, want placeholder", v.URL)
	}
	if v.SizeMB != "12.34" {
		t.Errorf("size = %q, want 12.34", v.SizeMB)
	}
	if v.OriginalFilename != "match.mp4" {
		t.Errorf("original filename = %q, want match.mp4", v.OriginalFilename)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	if _, err := db.GetVideo(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVideo(999) error = %v, want ErrNotFound", err)
	}
}

func TestFinalizeVideo(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "match.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	if err := db.FinalizeVideo(ctx, v.ID, "video_1_match_1_user_1.mp4", "http://api/videos/1"); err != nil {
		t.Fatalf("FinalizeVideo() error = %v", err)
	}

	got, err := db.GetVideo(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.Filename != "video_1_match_1_user_1.mp4" {
		t.Errorf("filename = %q after finalize", got.Filename)
	}
	if got.URL != "http://api/videos/1" {
		t.Errorf("url = %q after finalize", got.URL)
	}
	// The record keeps its identity: same id, same row.
	if got.ID != v.ID {
		t.Errorf("id changed from %d to %d", v.ID, got.ID)
	}

	if err := db.FinalizeVideo(ctx, 999, "x.mp4", "u"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinalizeVideo(999) error = %v, want ErrNotFound", err)
	}
}

func TestSetVideoStatusForwardOnly(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "m.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	if err := db.SetVideoStatus(ctx, v.ID, StatusProcessing); err != nil {
		t.Fatalf("pending -> processing error = %v", err)
	}
	if err := db.SetVideoStatus(ctx, v.ID, StatusCompleted); err != nil {
		t.Fatalf("processing -> completed error = %v", err)
	}

	// Regressions must be rejected and leave the record untouched.
	if err := db.SetVideoStatus(ctx, v.ID, StatusProcessing); err == nil {
		t.Errorf("completed -> processing succeeded, want error")
	}
	if err := db.SetVideoStatus(ctx, v.ID, StatusPending); err == nil {
		t.Errorf("completed -> pending succeeded, want error")
	}

	got, err := db.GetVideo(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %s after rejected regressions, want %s", got.Status, StatusCompleted)
	}
}

func TestSetVideoStatusFailedFromProcessing(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "m.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	if err := db.SetVideoStatus(ctx, v.ID, StatusProcessing); err != nil {
		t.Fatalf("pending -> processing error = %v", err)
	}
	if err := db.SetVideoStatus(ctx, v.ID, StatusFailed); err != nil {
		t.Fatalf("processing -> failed error = %v", err)
	}
}

func TestSetVideoStatusRejectsUnknown(t *testing.T) {
	t.Parallel()
	db := testDB(t)

	if err := db.SetVideoStatus(context.Background(), 1, ProcessingStatus("bogus")); err == nil {
		t.Errorf("SetVideoStatus() with unknown status succeeded, want error")
	}
}

func TestListVideosNewestFirst(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	first, err := db.CreateVideo(ctx, matchID, "a.part", "a.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	second, err := db.CreateVideo(ctx, matchID, "b.part", "b.mp4", "2.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	videos, err := db.ListVideos(ctx)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("ListVideos() returned %d records, want 2", len(videos))
	}
	if videos[0].ID != second.ID || videos[1].ID != first.ID {
		t.Errorf("ListVideos() order = [%d, %d], want [%d, %d]",
			videos[0].ID, videos[1].ID, second.ID, first.ID)
	}
}

func TestDeleteVideo(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "m.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	if err := db.DeleteVideo(ctx, v.ID); err != nil {
		t.Fatalf("DeleteVideo() error = %v", err)
	}
	if _, err := db.GetVideo(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVideo() after delete error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteVideo(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteVideo() twice error = %v, want ErrNotFound", err)
	}
}

func TestSetVideoCreatedEstimate(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "m.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	if err := db.SetVideoCreatedEstimate(ctx, v.ID, "2026-05-01T14:00:00Z"); err != nil {
		t.Fatalf("SetVideoCreatedEstimate() error = %v", err)
	}

	got, err := db.GetVideo(ctx, v.ID)
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got.CreatedEstimate != "2026-05-01T14:00:00Z" {
		t.Errorf("estimate = %q, want 2026-05-01T14:00:00Z", got.CreatedEstimate)
	}
}
