package database

import (
	"context"
	"fmt"
	"time"

	"kybervision-api/internal/metrics"
)

// ScriptsForMatch returns every script belonging to the given match.
func (d *Database) ScriptsForMatch(ctx context.Context, matchID int64) ([]Script, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, match_id FROM scripts WHERE match_id = ? ORDER BY id`, matchID)
	metrics.ObserveDBQuery("scripts_for_match", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query scripts for match %d: %w", matchID, err)
	}
	defer rows.Close()

	var scripts []Script
	for rows.Next() {
		var s Script
		if err := rows.Scan(&s.ID, &s.MatchID); err != nil {
			return nil, fmt.Errorf("failed to scan script row: %w", err)
		}
		scripts = append(scripts, s)
	}
	return scripts, rows.Err()
}

// SyncContractsForScript returns every sync contract referencing the script.
func (d *Database) SyncContractsForScript(ctx context.Context, scriptID int64) ([]SyncContract, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, script_id, video_id, delta_time FROM sync_contracts WHERE script_id = ? ORDER BY id`,
		scriptID)
	metrics.ObserveDBQuery("sync_contracts_for_script", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync contracts for script %d: %w", scriptID, err)
	}
	defer rows.Close()

	var contracts []SyncContract
	for rows.Next() {
		var c SyncContract
		if err := rows.Scan(&c.ID, &c.ScriptID, &c.VideoID, &c.DeltaTime); err != nil {
			return nil, fmt.Errorf("failed to scan sync contract row: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// RebindSyncContracts points every sync contract belonging to the match's
// scripts at the new video id. Update-in-place: no rows are inserted, so
// running it again for the same pair touches the same rows and returns
// the same count. A zero count is not an error.
func (d *Database) RebindSyncContracts(ctx context.Context, videoID, matchID int64) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, `
		UPDATE sync_contracts
		SET video_id = ?, updated_at = strftime('%s', 'now')
		WHERE script_id IN (SELECT id FROM scripts WHERE match_id = ?)`,
		videoID, matchID)
	metrics.ObserveDBQuery("rebind_sync_contracts", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to rebind sync contracts for match %d: %w", matchID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CreateScript inserts a script row. Collaborator helper used by tests
// and fixtures; script authoring lives outside this service.
func (d *Database) CreateScript(ctx context.Context, matchID int64) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `INSERT INTO scripts (match_id) VALUES (?)`, matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to create script: %w", err)
	}
	return res.LastInsertId()
}

// CreateSyncContract inserts a sync contract bound to a script, with no
// video reference yet.
func (d *Database) CreateSyncContract(ctx context.Context, scriptID int64, deltaTime float64) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO sync_contracts (script_id, delta_time) VALUES (?, ?)`, scriptID, deltaTime)
	if err != nil {
		return 0, fmt.Errorf("failed to create sync contract: %w", err)
	}
	return res.LastInsertId()
}
