package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
)

// HealthRepository runs the pre-condition probes and the post-run referential
// checks.
type HealthRepository struct {
	q Querier
}

func NewHealthRepository(q Querier) *HealthRepository {
	return &HealthRepository{q: q}
}

// HasTeamNaturalKeyConstraint reports whether the unique constraint the
// identity-preserving upsert targets actually exists. Without it the upsert
// would fail on every row.
func (r *HealthRepository) HasTeamNaturalKeyConstraint(ctx context.Context) (bool, error) {
	const query = `
		SELECT COUNT(*)
		FROM pg_constraint
		WHERE conrelid = 'teams'::regclass
		  AND contype = 'u'
		  AND conkey = (
			SELECT array_agg(attnum ORDER BY attnum)
			FROM pg_attribute
			WHERE attrelid = 'teams'::regclass
			  AND attname IN ('club_id', 'series_id', 'league_id')
		  )`

	var count int
	if err := r.q.GetContext(ctx, &count, query); err != nil {
		return false, fmt.Errorf("check teams natural key constraint: %w", err)
	}
	return count > 0, nil
}

// CountDuplicateTeamKeys reports how many (club_id, series_id, league_id)
// triples appear on more than one team row. Anything above zero means the
// upsert target is ambiguous and the run must not start.
func (r *HealthRepository) CountDuplicateTeamKeys(ctx context.Context) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM (
			SELECT club_id, series_id, league_id
			FROM teams
			GROUP BY club_id, series_id, league_id
			HAVING COUNT(*) > 1
		) dup`

	var count int
	if err := r.q.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count duplicate team keys: %w", err)
	}
	return count, nil
}

// orphanColumn pairs a team id column with the denormalized name column the
// repair pass can re-link against.
type orphanColumn struct {
	id   string
	name string
}

// orphanChecks pairs each table with the team columns that can go stale.
var orphanChecks = []struct {
	table   string
	columns []orphanColumn
}{
	{"schedule", []orphanColumn{{"home_team_id", "home_team"}, {"away_team_id", "away_team"}}},
	{"series_stats", []orphanColumn{{"team_id", "team"}}},
	{"match_scores", []orphanColumn{{"home_team_id", "home_team"}, {"away_team_id", "away_team"}}},
}

// OrphanCounts counts rows whose team reference no longer resolves.
func (r *HealthRepository) OrphanCounts(ctx context.Context) (etl.OrphanCounts, error) {
	var counts etl.OrphanCounts
	for _, check := range orphanChecks {
		total := 0
		for _, column := range check.columns {
			query := fmt.Sprintf(`
				SELECT COUNT(*) FROM %[1]s o
				WHERE o.%[2]s IS NOT NULL
				  AND NOT EXISTS (SELECT 1 FROM teams t WHERE t.id = o.%[2]s)`,
				check.table, column.id)
			var n int
			if err := r.q.GetContext(ctx, &n, query); err != nil {
				return etl.OrphanCounts{}, fmt.Errorf("count orphans in %s.%s: %w", check.table, column.id, err)
			}
			total += n
		}
		switch check.table {
		case "schedule":
			counts.Schedule = total
		case "series_stats":
			counts.SeriesStats = total
		case "match_scores":
			counts.Matches = total
		}
	}

	linkTotal := 0
	for _, lt := range linkedTables {
		query := fmt.Sprintf(`
			SELECT COUNT(*) FROM %[1]s u
			WHERE u.%[2]s IS NOT NULL
			  AND NOT EXISTS (SELECT 1 FROM teams t WHERE t.id = u.%[2]s)`,
			lt.table, lt.column)
		var n int
		if err := r.q.GetContext(ctx, &n, query); err != nil {
			return etl.OrphanCounts{}, fmt.Errorf("count orphans in %s: %w", lt.table, err)
		}
		linkTotal += n
	}
	counts.Links = linkTotal
	return counts, nil
}

// RepairOrphans re-links stale team references by stored name first, then
// nulls whatever still cannot be placed. Returns the number of references
// touched either way.
func (r *HealthRepository) RepairOrphans(ctx context.Context) (int, error) {
	repaired := 0
	for _, check := range orphanChecks {
		for _, column := range check.columns {
			relink := fmt.Sprintf(`
				UPDATE %[1]s o SET %[2]s = t.id
				FROM teams t
				WHERE o.%[2]s IS NOT NULL
				  AND NOT EXISTS (SELECT 1 FROM teams x WHERE x.id = o.%[2]s)
				  AND t.league_id = o.league_id
				  AND (t.team_name = o.%[3]s OR t.team_alias = o.%[3]s)`,
				check.table, column.id, column.name)
			result, err := r.q.ExecContext(ctx, relink)
			if err != nil {
				return repaired, fmt.Errorf("relink orphans in %s.%s: %w", check.table, column.id, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return repaired, fmt.Errorf("count relinked rows in %s.%s: %w", check.table, column.id, err)
			}
			repaired += int(affected)

			detach := fmt.Sprintf(`
				UPDATE %[1]s o SET %[2]s = NULL
				WHERE o.%[2]s IS NOT NULL
				  AND NOT EXISTS (SELECT 1 FROM teams t WHERE t.id = o.%[2]s)`,
				check.table, column.id)
			result, err = r.q.ExecContext(ctx, detach)
			if err != nil {
				return repaired, fmt.Errorf("repair orphans in %s.%s: %w", check.table, column.id, err)
			}
			affected, err = result.RowsAffected()
			if err != nil {
				return repaired, fmt.Errorf("count repaired rows in %s.%s: %w", check.table, column.id, err)
			}
			repaired += int(affected)
		}
	}
	for _, lt := range linkedTables {
		query := fmt.Sprintf(`
			UPDATE %[1]s u SET %[2]s = NULL
			WHERE u.%[2]s IS NOT NULL
			  AND NOT EXISTS (SELECT 1 FROM teams t WHERE t.id = u.%[2]s)`,
			lt.table, lt.column)
		result, err := r.q.ExecContext(ctx, query)
		if err != nil {
			return repaired, fmt.Errorf("repair orphans in %s: %w", lt.table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return repaired, fmt.Errorf("count repaired rows in %s: %w", lt.table, err)
		}
		repaired += int(affected)
	}
	return repaired, nil
}
