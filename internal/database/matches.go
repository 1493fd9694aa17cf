package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kybervision-api/internal/metrics"
)

// MatchWithTeams resolves a match and both of its teams for video
// enrichment. Returns ErrNotFound when the match does not exist; a
// missing team leaves the corresponding field nil rather than failing.
func (d *Database) MatchWithTeams(ctx context.Context, matchID int64) (*Match, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	start := time.Now()
	row := d.db.QueryRowContext(ctx, `
		SELECT m.id, m.home_team_id, m.away_team_id, COALESCE(m.played_on, ''), COALESCE(m.city, '')
		FROM matches m WHERE m.id = ?`, matchID)

	var m Match
	var homeID, awayID int64
	err := row.Scan(&m.ID, &homeID, &awayID, &m.PlayedOn, &m.City)
	metrics.ObserveDBQuery("match_with_teams", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan match row: %w", err)
	}

	m.HomeTeam = d.teamOrNil(ctx, homeID)
	m.AwayTeam = d.teamOrNil(ctx, awayID)
	return &m, nil
}

func (d *Database) teamOrNil(ctx context.Context, teamID int64) *Team {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(city, '') FROM teams WHERE id = ?`, teamID)

	var t Team
	if err := row.Scan(&t.ID, &t.Name, &t.City); err != nil {
		return nil
	}
	return &t
}

// CreateTeam and CreateMatch are collaborator helpers for fixtures;
// team/match CRUD lives outside this service.

func (d *Database) CreateTeam(ctx context.Context, name, city string) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `INSERT INTO teams (name, city) VALUES (?, ?)`, name, city)
	if err != nil {
		return 0, fmt.Errorf("failed to create team: %w", err)
	}
	return res.LastInsertId()
}

func (d *Database) CreateMatch(ctx context.Context, homeTeamID, awayTeamID int64, playedOn, city string) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO matches (home_team_id, away_team_id, played_on, city)
		VALUES (?, ?, ?, ?)`, homeTeamID, awayTeamID, playedOn, city)
	if err != nil {
		return 0, fmt.Errorf("failed to create match: %w", err)
	}
	return res.LastInsertId()
}
