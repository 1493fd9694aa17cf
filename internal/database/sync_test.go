package database

import (
	"context"
	"testing"
)

func TestRebindSyncContracts(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)
	otherMatchID := createTestMatch(t, db)

	scriptA, err := db.CreateScript(ctx, matchID)
	if err != nil {
		t.Fatalf("CreateScript() error = %v", err)
	}
	scriptB, err := db.CreateScript(ctx, matchID)
	if err != nil {
		t.Fatalf("CreateScript() error = %v", err)
	}
	otherScript, err := db.CreateScript(ctx, otherMatchID)
	if err != nil {
		t.Fatalf("CreateScript() error = %v", err)
	}

	for _, s := range []int64{scriptA, scriptA, scriptB} {
		if _, err := db.CreateSyncContract(ctx, s, 1.25); err != nil {
			t.Fatalf("CreateSyncContract() error = %v", err)
		}
	}
	if _, err := db.CreateSyncContract(ctx, otherScript, 2.5); err != nil {
		t.Fatalf("CreateSyncContract() error = %v", err)
	}

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "m.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	n, err := db.RebindSyncContracts(ctx, v.ID, matchID)
	if err != nil {
		t.Fatalf("RebindSyncContracts() error = %v", err)
	}
	if n != 3 {
		t.Errorf("RebindSyncContracts() = %d rows, want 3", n)
	}

	// All contracts under the match's scripts now reference the video.
	for _, s := range []int64{scriptA, scriptB} {
		contracts, err := db.SyncContractsForScript(ctx, s)
		if err != nil {
			t.Fatalf("SyncContractsForScript() error = %v", err)
		}
		for _, c := range contracts {
			if c.VideoID == nil || *c.VideoID != v.ID {
				t.Errorf("contract %d video_id = %v, want %d", c.ID, c.VideoID, v.ID)
			}
		}
	}

	// Contracts of other matches are untouched.
	others, err := db.SyncContractsForScript(ctx, otherScript)
	if err != nil {
		t.Fatalf("SyncContractsForScript() error = %v", err)
	}
	if len(others) != 1 || others[0].VideoID != nil {
		t.Errorf("other match's contract was modified: %+v", others)
	}
}

func TestRebindSyncContractsIdempotent(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	script, err := db.CreateScript(ctx, matchID)
	if err != nil {
		t.Fatalf("CreateScript() error = %v", err)
	}
	if _, err := db.CreateSyncContract(ctx, script, 0.5); err != nil {
		t.Fatalf("CreateSyncContract() error = %v", err)
	}

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "m.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	first, err := db.RebindSyncContracts(ctx, v.ID, matchID)
	if err != nil {
		t.Fatalf("first RebindSyncContracts() error = %v", err)
	}
	second, err := db.RebindSyncContracts(ctx, v.ID, matchID)
	if err != nil {
		t.Fatalf("second RebindSyncContracts() error = %v", err)
	}

	// Update-in-place: the second run touches the same rows, never more.
	if first != 1 || second != 1 {
		t.Errorf("rebind counts = %d, %d, want 1, 1", first, second)
	}

	contracts, err := db.SyncContractsForScript(ctx, script)
	if err != nil {
		t.Fatalf("SyncContractsForScript() error = %v", err)
	}
	if len(contracts) != 1 {
		t.Errorf("contract count = %d after double rebind, want 1", len(contracts))
	}
}

func TestRebindSyncContractsNoScripts(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	v, err := db.CreateVideo(ctx, matchID, "temp.part", "m.mp4", "1.00")
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	// No scripts for the match: zero updates, no error.
	n, err := db.RebindSyncContracts(ctx, v.ID, matchID)
	if err != nil {
		t.Fatalf("RebindSyncContracts() error = %v", err)
	}
	if n != 0 {
		t.Errorf("RebindSyncContracts() = %d rows, want 0", n)
	}
}

func TestMatchWithTeams(t *testing.T) {
	t.Parallel()
	db := testDB(t)
	ctx := context.Background()
	matchID := createTestMatch(t, db)

	m, err := db.MatchWithTeams(ctx, matchID)
	if err != nil {
		t.Fatalf("MatchWithTeams() error = %v", err)
	}
	if m.HomeTeam == nil || m.HomeTeam.Name != "Home" {
		t.Errorf("home team = %+v, want Home", m.HomeTeam)
	}
	if m.AwayTeam == nil || m.AwayTeam.Name != "Away" {
		t.Errorf("away team = %+v, want Away", m.AwayTeam)
	}
}
