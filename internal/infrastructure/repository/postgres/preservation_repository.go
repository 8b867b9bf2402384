package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
)

// linkedTables lists user-owned tables and their team reference column. Only
// tables listed here may be relinked or nullified after the import.
var linkedTables = []struct {
	table  string
	column string
}{
	{"polls", "team_id"},
	{"captain_messages", "team_id"},
	{"player_availability", "team_id"},
}

func linkedColumn(table string) (string, bool) {
	for _, lt := range linkedTables {
		if lt.table == table {
			return lt.column, true
		}
	}
	return "", false
}

// PreservationRepository captures user-owned rows before the destructive
// phase and reattaches them afterwards. Practice placeholders live in the
// schedule table and are wiped with it, so they are carried through the run
// in memory.
type PreservationRepository struct {
	q Querier
}

func NewPreservationRepository(q Querier) *PreservationRepository {
	return &PreservationRepository{q: q}
}

// BackupPractices snapshots practice schedule rows together with the natural
// key of the team each row pointed at, so a fallback match can find the
// team's successor when its surrogate id did not survive.
func (r *PreservationRepository) BackupPractices(ctx context.Context) ([]etl.PreservedPractice, error) {
	const query = `
		SELECT s.match_date, s.match_time, s.home_team, s.location, s.home_team_id,
		       s.league_id,
		       COALESCE(l.league_id, '') AS league_key,
		       c.name AS club_name,
		       sr.name AS series_name
		FROM schedule s
		LEFT JOIN teams t ON t.id = s.home_team_id
		LEFT JOIN clubs c ON c.id = t.club_id
		LEFT JOIN series sr ON sr.id = t.series_id
		LEFT JOIN leagues l ON l.id = s.league_id
		WHERE s.home_team LIKE '%Practice%'
		ORDER BY s.match_date, s.home_team`

	var models []preservedPracticeModel
	if err := r.q.SelectContext(ctx, &models, query); err != nil {
		return nil, fmt.Errorf("select practice rows: %w", err)
	}
	practices := make([]etl.PreservedPractice, 0, len(models))
	for _, m := range models {
		practices = append(practices, etl.PreservedPractice{
			Date:       m.MatchDate,
			Time:       nullStringToString(m.MatchTime),
			HomeTeam:   m.HomeTeam,
			Location:   nullStringToString(m.Location),
			TeamID:     nullInt64ToPtr(m.TeamID),
			LeagueID:   m.LeagueID,
			LeagueKey:  m.LeagueKey,
			ClubName:   nullStringToString(m.ClubName),
			SeriesName: nullStringToString(m.SeriesName),
		})
	}
	return practices, nil
}

// BackupLinks records the team id and team name every user-owned row points
// at. The rows themselves are never deleted; only their team reference can go
// stale when team ids churn.
func (r *PreservationRepository) BackupLinks(ctx context.Context) ([]etl.PreservedLink, error) {
	var links []etl.PreservedLink
	for _, lt := range linkedTables {
		query := fmt.Sprintf(`
			SELECT u.id AS row_id, u.%[2]s AS team_id, t.team_name
			FROM %[1]s u
			LEFT JOIN teams t ON t.id = u.%[2]s
			WHERE u.%[2]s IS NOT NULL
			ORDER BY u.id`, lt.table, lt.column)

		var models []preservedLinkModel
		if err := r.q.SelectContext(ctx, &models, query); err != nil {
			return nil, fmt.Errorf("select linked rows from %s: %w", lt.table, err)
		}
		for _, m := range models {
			links = append(links, etl.PreservedLink{
				Table:    lt.table,
				RowID:    m.RowID,
				TeamID:   m.TeamID,
				TeamName: nullStringToString(m.TeamName),
			})
		}
	}
	return links, nil
}

// Backup captures everything the restore phase needs.
func (r *PreservationRepository) Backup(ctx context.Context) (etl.PreservedData, error) {
	practices, err := r.BackupPractices(ctx)
	if err != nil {
		return etl.PreservedData{}, err
	}
	links, err := r.BackupLinks(ctx)
	if err != nil {
		return etl.PreservedData{}, err
	}
	return etl.PreservedData{Practices: practices, Links: links}, nil
}

// Relink points a user-owned row at a surviving team id.
func (r *PreservationRepository) Relink(ctx context.Context, table string, rowID, teamID int64) error {
	column, ok := linkedColumn(table)
	if !ok {
		return fmt.Errorf("relink: table %q is not a linked table", table)
	}
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE id = $2", table, column)
	if _, err := r.q.ExecContext(ctx, query, teamID, rowID); err != nil {
		return fmt.Errorf("relink %s row %d: %w", table, rowID, err)
	}
	return nil
}

// Unlink clears a stale team reference that no restore strategy could place.
// The row itself survives.
func (r *PreservationRepository) Unlink(ctx context.Context, table string, rowID int64) error {
	column, ok := linkedColumn(table)
	if !ok {
		return fmt.Errorf("unlink: table %q is not a linked table", table)
	}
	query := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE id = $1", table, column)
	if _, err := r.q.ExecContext(ctx, query, rowID); err != nil {
		return fmt.Errorf("unlink %s row %d: %w", table, rowID, err)
	}
	return nil
}

// CountPractices reports how many practice rows the schedule currently holds.
// The orchestrator compares the count before and after the run.
func (r *PreservationRepository) CountPractices(ctx context.Context) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM schedule WHERE home_team LIKE '%Practice%'"
	if err := r.q.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count practice rows: %w", err)
	}
	return count, nil
}
