package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	"github.com/rallyhq/league-etl/internal/domain/reference"
)

// Store owns the connection pool and hands out single-transaction handles for
// import runs. The whole pipeline shares one transaction; there is exactly one
// commit point at the very end.
type Store struct {
	db               *sqlx.DB
	statementTimeout time.Duration
}

func NewStore(db *sqlx.DB, statementTimeout time.Duration) *Store {
	return &Store{db: db, statementTimeout: statementTimeout}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Pre-condition probes run on the pool before the run transaction opens.

func (s *Store) HasTeamNaturalKeyConstraint(ctx context.Context) (bool, error) {
	return NewHealthRepository(s.db).HasTeamNaturalKeyConstraint(ctx)
}

func (s *Store) CountDuplicateTeamKeys(ctx context.Context) (int, error) {
	return NewHealthRepository(s.db).CountDuplicateTeamKeys(ctx)
}

func (s *Store) OrphanCounts(ctx context.Context) (etl.OrphanCounts, error) {
	return NewHealthRepository(s.db).OrphanCounts(ctx)
}

// Begin opens the run transaction and stretches the session timeouts; bulk
// runs are long-lived and a mid-run timeout is indistinguishable from any
// other fatal error.
func (s *Store) Begin(ctx context.Context) (*ImportTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}

	if s.statementTimeout > 0 {
		millis := s.statementTimeout.Milliseconds()
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", millis)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("set statement timeout: %w", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL idle_in_transaction_session_timeout = %d", millis)); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("set idle transaction timeout: %w", err)
		}
	}

	return newImportTx(tx), nil
}

// ImportTx bundles every repository bound to one open transaction.
type ImportTx struct {
	tx *sqlx.Tx

	refs        *ReferenceRepository
	teams       *TeamRepository
	players     *PlayerRepository
	matches     *MatchRepository
	seriesStats *SeriesStatsRepository
	schedule    *ScheduleRepository
	preserve    *PreservationRepository
	health      *HealthRepository
}

func newImportTx(tx *sqlx.Tx) *ImportTx {
	return &ImportTx{
		tx:          tx,
		refs:        NewReferenceRepository(tx),
		teams:       NewTeamRepository(tx),
		players:     NewPlayerRepository(tx),
		matches:     NewMatchRepository(tx),
		seriesStats: NewSeriesStatsRepository(tx),
		schedule:    NewScheduleRepository(tx),
		preserve:    NewPreservationRepository(tx),
		health:      NewHealthRepository(tx),
	}
}

func (t *ImportTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}
	return nil
}

func (t *ImportTx) Rollback() error {
	return t.tx.Rollback()
}

// Savepoint marks batch progress inside the run transaction. Savepoints are
// visibility markers only, not commit boundaries.
func (t *ImportTx) Savepoint(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+quoteIdent(name)); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+quoteIdent(name)); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}

func (t *ImportTx) UpsertLeagues(ctx context.Context, leagues []reference.League) (map[string]int64, error) {
	return t.refs.UpsertLeagues(ctx, leagues)
}

func (t *ImportTx) UpsertClubs(ctx context.Context, clubs []reference.Club) (map[string]int64, error) {
	return t.refs.UpsertClubs(ctx, clubs)
}

func (t *ImportTx) UpsertSeries(ctx context.Context, series []reference.Series) (map[string]int64, error) {
	return t.refs.UpsertSeries(ctx, series)
}

func (t *ImportTx) LinkClubLeagues(ctx context.Context, pairs []reference.ClubLeague, ids etl.RefIDs) (int, error) {
	return t.refs.LinkClubLeagues(ctx, pairs, ids)
}

func (t *ImportTx) LinkSeriesLeagues(ctx context.Context, pairs []reference.SeriesLeague, ids etl.RefIDs) (int, error) {
	return t.refs.LinkSeriesLeagues(ctx, pairs, ids)
}

func (t *ImportTx) ClearDerived(ctx context.Context) error {
	return t.refs.ClearDerived(ctx)
}

func (t *ImportTx) UpsertTeams(ctx context.Context, teams []reference.Team, ids etl.RefIDs) (etl.TeamWriteStats, error) {
	return t.teams.Upsert(ctx, teams, ids)
}

func (t *ImportTx) TeamLookup(ctx context.Context) (etl.TeamLookup, error) {
	return t.teams.Lookup(ctx)
}

func (t *ImportTx) UpsertPlayers(ctx context.Context, rows []etl.PlayerRow) (int, error) {
	return t.players.Upsert(ctx, rows)
}

func (t *ImportTx) PlayerIDsByKey(ctx context.Context) (map[etl.PlayerKey]int64, error) {
	return t.players.IDsByKey(ctx)
}

func (t *ImportTx) UpdateCareer(ctx context.Context, tenniscoresID string, leagueID int64, career etl.CareerStats) (int64, error) {
	return t.players.UpdateCareer(ctx, tenniscoresID, leagueID, career)
}

func (t *ImportTx) InsertPlayerHistory(ctx context.Context, rows []etl.HistoryRow, chunkSize int) (int, error) {
	return t.players.InsertHistory(ctx, rows, chunkSize)
}

func (t *ImportTx) InsertMatches(ctx context.Context, rows []etl.MatchRow, chunkSize int) (int, error) {
	return t.matches.Insert(ctx, rows, chunkSize)
}

func (t *ImportTx) InsertSeriesStats(ctx context.Context, rows []etl.SeriesStatsRow, chunkSize int) (int, error) {
	return t.seriesStats.Insert(ctx, rows, chunkSize)
}

func (t *ImportTx) InsertSchedule(ctx context.Context, rows []etl.ScheduleRow, chunkSize int) (int, error) {
	return t.schedule.Insert(ctx, rows, chunkSize)
}

func (t *ImportTx) BackupUserData(ctx context.Context) (etl.PreservedData, error) {
	return t.preserve.Backup(ctx)
}

func (t *ImportTx) RelinkUserRow(ctx context.Context, table string, rowID, teamID int64) error {
	return t.preserve.Relink(ctx, table, rowID, teamID)
}

func (t *ImportTx) UnlinkUserRow(ctx context.Context, table string, rowID int64) error {
	return t.preserve.Unlink(ctx, table, rowID)
}

func (t *ImportTx) CountPracticeRows(ctx context.Context) (int, error) {
	return t.preserve.CountPractices(ctx)
}

func (t *ImportTx) OrphanCounts(ctx context.Context) (etl.OrphanCounts, error) {
	return t.health.OrphanCounts(ctx)
}

func (t *ImportTx) RepairOrphans(ctx context.Context) (int, error) {
	return t.health.RepairOrphans(ctx)
}

func quoteIdent(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "sp"
	}
	return string(out)
}
