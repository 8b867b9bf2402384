package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	qb "github.com/rallyhq/league-etl/internal/platform/querybuilder"
)

// MatchRepository appends match result rows. Team ids are pre-resolved by the
// pipeline and may be null when a name lookup missed.
type MatchRepository struct {
	q Querier
}

func NewMatchRepository(q Querier) *MatchRepository {
	return &MatchRepository{q: q}
}

func (r *MatchRepository) Insert(ctx context.Context, rows []etl.MatchRow, chunkSize int) (int, error) {
	if chunkSize < 1 {
		chunkSize = 500
	}
	written := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		builder := qb.InsertInto("match_scores").
			Columns(
				"match_date", "home_team", "away_team", "home_team_id", "away_team_id",
				"home_player_1_id", "home_player_2_id", "away_player_1_id", "away_player_2_id",
				"scores", "winner", "league_id",
			)
		for _, row := range rows[start:end] {
			builder.Values(
				row.Date, row.HomeTeam, row.AwayTeam, ptrToNullInt64(row.HomeTeamID), ptrToNullInt64(row.AwayTeamID),
				stringToNullString(row.HomePlayer1ID), stringToNullString(row.HomePlayer2ID),
				stringToNullString(row.AwayPlayer1ID), stringToNullString(row.AwayPlayer2ID),
				stringToNullString(row.Scores), stringToNullString(row.Winner), row.LeagueID,
			)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return written, fmt.Errorf("build insert matches query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("insert matches chunk at %d: %w", start, err)
		}
		written += end - start
		if err := markBatchProgress(ctx, r.q, "match_scores"); err != nil {
			return written, err
		}
	}
	return written, nil
}
