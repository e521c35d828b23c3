package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// PlayerRecord is one row of a player name search
type PlayerRecord struct {
	Name     string
	Birthday *time.Time
	Height   *float64
}

// TeamStanding is one row of the points leaderboard
type TeamStanding struct {
	Name        string
	TotalPoints int
}

// SearchPlayers returns up to limit players whose name contains fragment,
// ignoring case.
func (c *PostgresClient) SearchPlayers(ctx context.Context, fragment string, limit int) ([]PlayerRecord, error) {
	query := `
		SELECT COALESCE(player_name, ''), birthday, height
		FROM player
		WHERE player_name ILIKE $1
		LIMIT $2
	`

	rows, err := c.conn.Query(ctx, query, containsPattern(fragment), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search players: %w", classify(err, ErrQuery))
	}

	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlayerRecord, error) {
		var p PlayerRecord
		err := row.Scan(&p.Name, &p.Birthday, &p.Height)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read players: %w", classify(err, ErrQuery))
	}
	return players, nil
}

// TopTeams returns up to limit teams by descending total points. Teams with
// equal points come back in whatever order the store yields them.
func (c *PostgresClient) TopTeams(ctx context.Context, limit int) ([]TeamStanding, error) {
	query := `
		SELECT COALESCE(team_long_name, ''), total_points
		FROM team
		ORDER BY total_points DESC
		LIMIT $1
	`

	rows, err := c.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", classify(err, ErrQuery))
	}

	teams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TeamStanding, error) {
		var t TeamStanding
		err := row.Scan(&t.Name, &t.TotalPoints)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read teams: %w", classify(err, ErrQuery))
	}
	return teams, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern that matches fragment literally
// anywhere in the value. Backslash is the default LIKE escape character.
func containsPattern(fragment string) string {
	return "%" + likeEscaper.Replace(fragment) + "%"
}
