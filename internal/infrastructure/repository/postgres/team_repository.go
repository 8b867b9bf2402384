package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	"github.com/rallyhq/league-etl/internal/domain/reference"
	qb "github.com/rallyhq/league-etl/internal/platform/querybuilder"
)

// TeamRepository is the identity-preserving team writer. Teams are never
// delete-then-inserted: the upsert conflicts on the (club_id, series_id,
// league_id) natural key, so a team's surrogate id survives re-import as long
// as its natural key is unchanged. That id is what practice times, polls, and
// captain messages hang off.
type TeamRepository struct {
	q Querier
}

func NewTeamRepository(q Querier) *TeamRepository {
	return &TeamRepository{q: q}
}

type teamNameOwnerModel struct {
	ID       int64 `db:"id"`
	ClubID   int64 `db:"club_id"`
	SeriesID int64 `db:"series_id"`
	LeagueID int64 `db:"league_id"`
}

// Upsert writes every team through the natural-key upsert. A team whose name
// is already held by a row with a different natural key in the same league
// would trip the secondary (team_name, league_id) uniqueness, so it is
// detected up front and skipped instead of aborting the transaction.
func (r *TeamRepository) Upsert(ctx context.Context, teams []reference.Team, ids etl.RefIDs) (etl.TeamWriteStats, error) {
	var stats etl.TeamWriteStats
	for _, team := range teams {
		clubID, ok := ids.Clubs[team.Club]
		if !ok {
			stats.SkippedUnresolvedRefs = append(stats.SkippedUnresolvedRefs, team.Name)
			continue
		}
		seriesID, ok := ids.Series[team.Series]
		if !ok {
			stats.SkippedUnresolvedRefs = append(stats.SkippedUnresolvedRefs, team.Name)
			continue
		}
		leagueID, ok := ids.Leagues[team.LeagueID]
		if !ok {
			stats.SkippedUnresolvedRefs = append(stats.SkippedUnresolvedRefs, team.Name)
			continue
		}

		owner, found, err := r.nameOwner(ctx, team.Name, leagueID)
		if err != nil {
			return stats, err
		}
		if found && (owner.ClubID != clubID || owner.SeriesID != seriesID) {
			stats.SkippedNameConflicts = append(stats.SkippedNameConflicts, team.Name)
			continue
		}

		query, args, err := qb.InsertInto("teams").
			Columns("club_id", "series_id", "league_id", "team_name", "team_alias").
			Values(clubID, seriesID, leagueID, team.Name, stringToNullString(team.Alias)).
			Suffix(`ON CONFLICT (club_id, series_id, league_id) DO UPDATE SET
    team_name = EXCLUDED.team_name,
    team_alias = EXCLUDED.team_alias,
    updated_at = NOW()
RETURNING id, (xmax = 0) AS inserted`).
			ToSQL()
		if err != nil {
			return stats, fmt.Errorf("build upsert team query: %w", err)
		}

		// The owner probe can race writes earlier in this run; guard the upsert
		// with a savepoint so a raised uniqueness error downgrades to a skip
		// instead of poisoning the transaction.
		if _, err := r.q.ExecContext(ctx, "SAVEPOINT team_write"); err != nil {
			return stats, fmt.Errorf("savepoint team_write: %w", err)
		}
		var row struct {
			ID       int64 `db:"id"`
			Inserted bool  `db:"inserted"`
		}
		err = r.q.GetContext(ctx, &row, query, args...)
		if isUniqueViolation(err) {
			if _, rbErr := r.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT team_write"); rbErr != nil {
				return stats, fmt.Errorf("rollback savepoint team_write: %w", rbErr)
			}
			stats.SkippedNameConflicts = append(stats.SkippedNameConflicts, team.Name)
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("upsert team %s: %w", team.Name, err)
		}
		if _, err := r.q.ExecContext(ctx, "RELEASE SAVEPOINT team_write"); err != nil {
			return stats, fmt.Errorf("release savepoint team_write: %w", err)
		}
		if row.Inserted {
			stats.Created++
		} else {
			stats.Updated++
		}
	}
	return stats, nil
}

func (r *TeamRepository) nameOwner(ctx context.Context, teamName string, leagueID int64) (teamNameOwnerModel, bool, error) {
	query, args, err := qb.Select("id", "club_id", "series_id", "league_id").
		From("teams").
		Where(
			qb.Eq("team_name", teamName),
			qb.Eq("league_id", leagueID),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return teamNameOwnerModel{}, false, fmt.Errorf("build team name owner query: %w", err)
	}

	var owner teamNameOwnerModel
	if err := r.q.GetContext(ctx, &owner, query, args...); err != nil {
		if isNotFound(err) {
			return teamNameOwnerModel{}, false, nil
		}
		return teamNameOwnerModel{}, false, fmt.Errorf("select team name owner %s: %w", teamName, err)
	}
	return owner, true, nil
}

// Lookup reads the whole team table joined to its reference names, for
// resolving match/schedule/stat team names and for the preservation fallback
// matcher.
func (r *TeamRepository) Lookup(ctx context.Context) (etl.TeamLookup, error) {
	query, args, err := qb.Select(
		"t.id",
		"t.team_name",
		"t.team_alias",
		"c.name AS club_name",
		"s.name AS series_name",
		"t.league_id",
		"l.league_id AS league_key",
	).From("teams t JOIN clubs c ON c.id = t.club_id JOIN series s ON s.id = t.series_id JOIN leagues l ON l.id = t.league_id").
		OrderBy("t.id").
		ToSQL()
	if err != nil {
		return etl.TeamLookup{}, fmt.Errorf("build team lookup query: %w", err)
	}

	var rows []teamRefModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return etl.TeamLookup{}, fmt.Errorf("select team lookup: %w", err)
	}

	refs := make([]etl.TeamRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, etl.TeamRef{
			ID:         row.ID,
			Name:       row.TeamName,
			Alias:      nullStringToString(row.TeamAlias),
			ClubName:   row.ClubName,
			SeriesName: row.SeriesName,
			LeagueID:   row.LeagueID,
			LeagueKey:  row.LeagueKey,
		})
	}
	return etl.NewTeamLookup(refs), nil
}
