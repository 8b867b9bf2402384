package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	qb "github.com/rallyhq/league-etl/internal/platform/querybuilder"
)

// SeriesStatsRepository appends standings snapshot rows.
type SeriesStatsRepository struct {
	q Querier
}

func NewSeriesStatsRepository(q Querier) *SeriesStatsRepository {
	return &SeriesStatsRepository{q: q}
}

func (r *SeriesStatsRepository) Insert(ctx context.Context, rows []etl.SeriesStatsRow, chunkSize int) (int, error) {
	if chunkSize < 1 {
		chunkSize = 500
	}
	written := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		builder := qb.InsertInto("series_stats").
			Columns(
				"series", "team", "team_id", "league_id", "points",
				"matches_won", "matches_lost", "matches_tied",
				"lines_won", "lines_lost", "lines_for", "lines_ret",
				"sets_won", "sets_lost", "games_won", "games_lost",
			)
		for _, row := range rows[start:end] {
			builder.Values(
				row.Series, row.Team, ptrToNullInt64(row.TeamID), row.LeagueID, row.Points,
				row.MatchesWon, row.MatchesLost, row.MatchesTied,
				row.LinesWon, row.LinesLost, row.LinesFor, row.LinesRet,
				row.SetsWon, row.SetsLost, row.GamesWon, row.GamesLost,
			)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return written, fmt.Errorf("build insert series stats query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("insert series stats chunk at %d: %w", start, err)
		}
		written += end - start
		if err := markBatchProgress(ctx, r.q, "series_stats"); err != nil {
			return written, err
		}
	}
	return written, nil
}
