package postgres

import (
	"context"
	"fmt"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	qb "github.com/rallyhq/league-etl/internal/platform/querybuilder"
)

// PlayerRepository writes player rows and their history detail. The player
// natural key is (tenniscores_player_id, league_id, club_id, series_id): one
// external id holding spots on several teams must stay several rows.
type PlayerRepository struct {
	q Querier
}

func NewPlayerRepository(q Querier) *PlayerRepository {
	return &PlayerRepository{q: q}
}

// Upsert writes player rows one at a time; the run clears players first, so
// conflicts only occur when the snapshot itself repeats a natural key, in
// which case the later record wins its mutable fields.
func (r *PlayerRepository) Upsert(ctx context.Context, rows []etl.PlayerRow) (int, error) {
	written := 0
	for _, row := range rows {
		query, args, err := qb.InsertInto("players").
			Columns(
				"tenniscores_player_id", "league_id", "club_id", "series_id",
				"first_name", "last_name", "team_id",
				"pti", "wins", "losses", "win_percentage", "captain_status",
			).
			Values(
				row.Key.TennisCoresID, row.Key.LeagueID, row.Key.ClubID, row.Key.SeriesID,
				row.FirstName, row.LastName, ptrToNullInt64(row.TeamID),
				ptrToNullFloat64(row.PTI), row.Wins, row.Losses, ptrToNullFloat64(row.WinPercentage), stringToNullString(row.Captain),
			).
			Suffix(`ON CONFLICT (tenniscores_player_id, league_id, club_id, series_id) DO UPDATE SET
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    team_id = EXCLUDED.team_id,
    pti = EXCLUDED.pti,
    wins = EXCLUDED.wins,
    losses = EXCLUDED.losses,
    win_percentage = EXCLUDED.win_percentage,
    captain_status = EXCLUDED.captain_status,
    updated_at = NOW()`).
			ToSQL()
		if err != nil {
			return written, fmt.Errorf("build upsert player query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("upsert player %s: %w", row.Key.TennisCoresID, err)
		}
		written++
	}
	return written, nil
}

// IDsByKey reads the surrogate id of every player row, keyed by natural key,
// for resolving history detail rows.
func (r *PlayerRepository) IDsByKey(ctx context.Context) (map[etl.PlayerKey]int64, error) {
	query, args, err := qb.Select("id", "tenniscores_player_id", "league_id", "club_id", "series_id").
		From("players").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build player ids query: %w", err)
	}

	var rows []playerKeyModel
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select player ids: %w", err)
	}

	out := make(map[etl.PlayerKey]int64, len(rows))
	for _, row := range rows {
		out[etl.PlayerKey{
			TennisCoresID: row.TennisCoresID,
			LeagueID:      row.LeagueID,
			ClubID:        row.ClubID,
			SeriesID:      row.SeriesID,
		}] = row.ID
	}
	return out, nil
}

// UpdateCareer merges career aggregates into every row the external player id
// holds within the league; multi-team players share one career line.
func (r *PlayerRepository) UpdateCareer(ctx context.Context, tenniscoresID string, leagueID int64, career etl.CareerStats) (int64, error) {
	query, args, err := qb.Update("players").
		Set("career_matches", career.Matches).
		Set("career_wins", career.Wins).
		Set("career_losses", career.Losses).
		Set("career_win_percentage", career.WinPercentage).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("tenniscores_player_id", tenniscoresID),
			qb.Eq("league_id", leagueID),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build update career query: %w", err)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update career %s: %w", tenniscoresID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update career rows affected: %w", err)
	}
	return affected, nil
}

// InsertHistory bulk-inserts history detail rows in multi-row chunks.
func (r *PlayerRepository) InsertHistory(ctx context.Context, rows []etl.HistoryRow, chunkSize int) (int, error) {
	if chunkSize < 1 {
		chunkSize = 500
	}
	written := 0
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		builder := qb.InsertInto("player_history").
			Columns("player_id", "league_id", "series", "date", "end_pti")
		for _, row := range rows[start:end] {
			builder.Values(row.PlayerID, row.LeagueID, row.Series, row.Date, row.EndPTI)
		}
		query, args, err := builder.ToSQL()
		if err != nil {
			return written, fmt.Errorf("build insert player history query: %w", err)
		}
		if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
			return written, fmt.Errorf("insert player history chunk at %d: %w", start, err)
		}
		written += end - start
		if err := markBatchProgress(ctx, r.q, "player_history"); err != nil {
			return written, err
		}
	}
	return written, nil
}
