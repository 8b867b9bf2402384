package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	"github.com/rallyhq/league-etl/internal/domain/reference"
	qb "github.com/rallyhq/league-etl/internal/platform/querybuilder"
)

// ReferenceRepository writes leagues, clubs, series, and their league
// membership join rows. All four use natural-key upserts so surrogate ids
// referenced by the preserved team table stay valid across runs.
type ReferenceRepository struct {
	q Querier
}

func NewReferenceRepository(q Querier) *ReferenceRepository {
	return &ReferenceRepository{q: q}
}

func (r *ReferenceRepository) UpsertLeagues(ctx context.Context, leagues []reference.League) (map[string]int64, error) {
	out := make(map[string]int64, len(leagues))
	for _, l := range leagues {
		query, args, err := qb.InsertInto("leagues").
			Columns("league_id", "league_name", "league_url").
			Values(l.LeagueID, l.DisplayName, stringToNullString(l.URL)).
			Suffix(`ON CONFLICT (league_id) DO UPDATE SET
    league_name = EXCLUDED.league_name,
    league_url = EXCLUDED.league_url,
    updated_at = NOW()
RETURNING id`).
			ToSQL()
		if err != nil {
			return nil, fmt.Errorf("build upsert league query: %w", err)
		}
		var id int64
		if err := r.q.GetContext(ctx, &id, query, args...); err != nil {
			return nil, fmt.Errorf("upsert league %s: %w", l.LeagueID, err)
		}
		out[l.LeagueID] = id
	}
	return out, nil
}

func (r *ReferenceRepository) UpsertClubs(ctx context.Context, clubs []reference.Club) (map[string]int64, error) {
	out := make(map[string]int64, len(clubs))
	for _, c := range clubs {
		query, args, err := qb.InsertInto("clubs").
			Columns("name").
			Values(c.Name).
			Suffix(`ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`).
			ToSQL()
		if err != nil {
			return nil, fmt.Errorf("build upsert club query: %w", err)
		}
		var id int64
		if err := r.q.GetContext(ctx, &id, query, args...); err != nil {
			return nil, fmt.Errorf("upsert club %s: %w", c.Name, err)
		}
		out[c.Name] = id
	}
	return out, nil
}

func (r *ReferenceRepository) UpsertSeries(ctx context.Context, series []reference.Series) (map[string]int64, error) {
	out := make(map[string]int64, len(series))
	for _, s := range series {
		query, args, err := qb.InsertInto("series").
			Columns("name").
			Values(s.Name).
			Suffix(`ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`).
			ToSQL()
		if err != nil {
			return nil, fmt.Errorf("build upsert series query: %w", err)
		}
		var id int64
		if err := r.q.GetContext(ctx, &id, query, args...); err != nil {
			return nil, fmt.Errorf("upsert series %s: %w", s.Name, err)
		}
		out[s.Name] = id
	}
	return out, nil
}

func (r *ReferenceRepository) LinkClubLeagues(ctx context.Context, pairs []reference.ClubLeague, ids etl.RefIDs) (int, error) {
	linked := 0
	for _, pair := range pairs {
		clubID, ok := ids.Clubs[pair.Club]
		if !ok {
			continue
		}
		leagueID, ok := ids.Leagues[pair.LeagueID]
		if !ok {
			continue
		}
		query, args, err := qb.InsertInto("club_leagues").
			Columns("club_id", "league_id").
			Values(clubID, leagueID).
			Suffix(`ON CONFLICT (club_id, league_id) DO NOTHING`).
			ToSQL()
		if err != nil {
			return linked, fmt.Errorf("build link club league query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return linked, fmt.Errorf("link club %s to league %s: %w", pair.Club, pair.LeagueID, err)
		}
		linked++
	}
	return linked, nil
}

func (r *ReferenceRepository) LinkSeriesLeagues(ctx context.Context, pairs []reference.SeriesLeague, ids etl.RefIDs) (int, error) {
	linked := 0
	for _, pair := range pairs {
		seriesID, ok := ids.Series[pair.Series]
		if !ok {
			continue
		}
		leagueID, ok := ids.Leagues[pair.LeagueID]
		if !ok {
			continue
		}
		query, args, err := qb.InsertInto("series_leagues").
			Columns("series_id", "league_id").
			Values(seriesID, leagueID).
			Suffix(`ON CONFLICT (series_id, league_id) DO NOTHING`).
			ToSQL()
		if err != nil {
			return linked, fmt.Errorf("build link series league query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return linked, fmt.Errorf("link series %s to league %s: %w", pair.Series, pair.LeagueID, err)
		}
		linked++
	}
	return linked, nil
}

// Derived tables cleared each run, in reverse dependency order. Teams and the
// reference tables they point at are intentionally absent: teams survive via
// the identity-preserving upsert, and deleting clubs/series/leagues would
// cascade into them.
var derivedTables = []string{
	"schedule",
	"series_stats",
	"match_scores",
	"player_history",
	"players",
	"series_leagues",
	"club_leagues",
}

// ClearDerived empties every rebuilt table inside the run transaction.
func (r *ReferenceRepository) ClearDerived(ctx context.Context) error {
	for _, table := range derivedTables {
		query, args, err := qb.DeleteFrom(table).ToSQL()
		if err != nil {
			return fmt.Errorf("build clear %s query: %w", table, err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
