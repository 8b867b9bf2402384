package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	qb "github.com/rallyhq/league-etl/internal/platform/querybuilder"
)

// ScheduleRepository appends calendar rows, including restored practice
// placeholders.
type ScheduleRepository struct {
	q Querier
}

func NewScheduleRepository(q Querier) *ScheduleRepository {
	return &ScheduleRepository{q: q}
}

func (r *ScheduleRepository) Insert(ctx context.Context, rows []etl.ScheduleRow, chunkSize int) (int, error) {
	if chunkSize < 1 {
		chunkSize = 500
	}
	written := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		builder := qb.InsertInto("schedule").
			Columns(
				"match_date", "match_time", "home_team", "away_team",
				"home_team_id", "away_team_id", "location", "league_id",
			)
		for _, row := range rows[start:end] {
			builder.Values(
				row.Date, stringToNullString(row.Time), row.HomeTeam, stringToNullString(row.AwayTeam),
				ptrToNullInt64(row.HomeTeamID), ptrToNullInt64(row.AwayTeamID),
				stringToNullString(row.Location), row.LeagueID,
			)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return written, fmt.Errorf("build insert schedule query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("insert schedule chunk at %d: %w", start, err)
		}
		written += end - start
		if err := markBatchProgress(ctx, r.q, "schedule"); err != nil {
			return written, err
		}
	}
	return written, nil
}
