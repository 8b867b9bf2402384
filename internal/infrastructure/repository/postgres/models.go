package postgres

import (
	"database/sql"
	"time"
)

type teamRefModel struct {
	ID         int64          `db:"id"`
	TeamName   string         `db:"team_name"`
	TeamAlias  sql.NullString `db:"team_alias"`
	ClubName   string         `db:"club_name"`
	SeriesName string         `db:"series_name"`
	LeagueID   int64          `db:"league_id"`
	LeagueKey  string         `db:"league_key"`
}

type playerKeyModel struct {
	ID            int64  `db:"id"`
	TennisCoresID string `db:"tenniscores_player_id"`
	LeagueID      int64  `db:"league_id"`
	ClubID        int64  `db:"club_id"`
	SeriesID      int64  `db:"series_id"`
}

type preservedPracticeModel struct {
	MatchDate  time.Time      `db:"match_date"`
	MatchTime  sql.NullString `db:"match_time"`
	HomeTeam   string         `db:"home_team"`
	Location   sql.NullString `db:"location"`
	TeamID     sql.NullInt64  `db:"home_team_id"`
	LeagueID   int64          `db:"league_id"`
	LeagueKey  string         `db:"league_key"`
	ClubName   sql.NullString `db:"club_name"`
	SeriesName sql.NullString `db:"series_name"`
}

type preservedLinkModel struct {
	RowID    int64          `db:"row_id"`
	TeamID   int64          `db:"team_id"`
	TeamName sql.NullString `db:"team_name"`
}

func nullInt64ToPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

func ptrToNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullStringToString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func stringToNullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func ptrToNullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
