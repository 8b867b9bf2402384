package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	"github.com/rallyhq/league-etl/internal/domain/reference"
	"github.com/rallyhq/league-etl/internal/domain/snapshot"
	"github.com/rallyhq/league-etl/internal/platform/logging"
)

// SnapshotLoader decodes the five scraper output files.
type SnapshotLoader interface {
	Load(ctx context.Context, dir string) (snapshot.Bundle, error)
}

// ImportTx is the write surface of one open import transaction. Every write
// of a run goes through one value of this interface and becomes visible at a
// single commit point.
type ImportTx interface {
	UpsertLeagues(ctx context.Context, leagues []reference.League) (map[string]int64, error)
	UpsertClubs(ctx context.Context, clubs []reference.Club) (map[string]int64, error)
	UpsertSeries(ctx context.Context, series []reference.Series) (map[string]int64, error)
	LinkClubLeagues(ctx context.Context, pairs []reference.ClubLeague, ids etl.RefIDs) (int, error)
	LinkSeriesLeagues(ctx context.Context, pairs []reference.SeriesLeague, ids etl.RefIDs) (int, error)
	ClearDerived(ctx context.Context) error
	UpsertTeams(ctx context.Context, teams []reference.Team, ids etl.RefIDs) (etl.TeamWriteStats, error)
	TeamLookup(ctx context.Context) (etl.TeamLookup, error)
	UpsertPlayers(ctx context.Context, rows []etl.PlayerRow) (int, error)
	PlayerIDsByKey(ctx context.Context) (map[etl.PlayerKey]int64, error)
	UpdateCareer(ctx context.Context, tenniscoresID string, leagueID int64, career etl.CareerStats) (int64, error)
	InsertPlayerHistory(ctx context.Context, rows []etl.HistoryRow, chunkSize int) (int, error)
	InsertMatches(ctx context.Context, rows []etl.MatchRow, chunkSize int) (int, error)
	InsertSeriesStats(ctx context.Context, rows []etl.SeriesStatsRow, chunkSize int) (int, error)
	InsertSchedule(ctx context.Context, rows []etl.ScheduleRow, chunkSize int) (int, error)
	BackupUserData(ctx context.Context) (etl.PreservedData, error)
	RelinkUserRow(ctx context.Context, table string, rowID, teamID int64) error
	UnlinkUserRow(ctx context.Context, table string, rowID int64) error
	CountPracticeRows(ctx context.Context) (int, error)
	OrphanCounts(ctx context.Context) (etl.OrphanCounts, error)
	RepairOrphans(ctx context.Context) (int, error)
	Savepoint(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

// ImportStore opens run transactions and answers the pre-run probes.
type ImportStore interface {
	Begin(ctx context.Context) (ImportTx, error)
	HasTeamNaturalKeyConstraint(ctx context.Context) (bool, error)
	CountDuplicateTeamKeys(ctx context.Context) (int, error)
	OrphanCounts(ctx context.Context) (etl.OrphanCounts, error)
}

// MaintenanceSwitch flips the user-facing maintenance flag outside the run
// transaction, so readers see it while the import is still in flight.
type MaintenanceSwitch interface {
	EnableMaintenance(ctx context.Context, reason string, eta time.Duration) error
	DisableMaintenance(ctx context.Context) error
}

// BackupRunner takes a file-level database backup and returns its path, and
// can load a dump back as secondary recovery.
type BackupRunner interface {
	Run(ctx context.Context) (string, error)
	Restore(ctx context.Context, path string) error
}

// ImportPhase names the stage an import run is in. Phases advance strictly
// forward; a failed run lands on PhaseRolledBack from wherever it was.
type ImportPhase string

const (
	PhaseIdle       ImportPhase = "IDLE"
	PhaseBackup     ImportPhase = "BACKUP"
	PhaseClearing   ImportPhase = "CLEARING"
	PhaseImporting  ImportPhase = "IMPORTING"
	PhaseRestoring  ImportPhase = "RESTORING"
	PhaseValidating ImportPhase = "VALIDATING"
	PhaseCommitted  ImportPhase = "COMMITTED"
	PhaseRolledBack ImportPhase = "ROLLED_BACK"
)

type ImportConfig struct {
	// BatchSize bounds multi-row insert statements.
	BatchSize int
	// MaxRecordErrors is the per-run ceiling on skipped records; zero
	// disables the ceiling.
	MaxRecordErrors int
	// BackupRequired turns a failed file backup from a warning into an
	// abort.
	BackupRequired    bool
	MaintenanceReason string
	MaintenanceETA    time.Duration
}

type ImportInput struct {
	DataDir string
	// Leagues narrows the run to the named leagues; empty means all.
	Leagues []string
	// DryRun executes the full pipeline and rolls back instead of
	// committing.
	DryRun     bool
	SkipBackup bool
}

// ImportSummary is the operator-facing report of one run.
type ImportSummary struct {
	Phase      ImportPhase        `json:"phase"`
	DryRun     bool               `json:"dry_run"`
	BackupPath string             `json:"backup_path,omitempty"`
	DurationMs int64              `json:"duration_ms"`
	Rejected   map[string]int     `json:"rejected,omitempty"`
	Skipped    int                `json:"skipped"`
	Leagues    int                `json:"leagues"`
	Clubs      int                `json:"clubs"`
	Series     int                `json:"series"`
	Teams      etl.TeamWriteStats `json:"teams"`
	Players    int                `json:"players"`
	Careers    int                `json:"careers"`
	History    int                `json:"history"`
	Matches    int                `json:"matches"`
	Stats      int                `json:"stats"`
	Schedule   int                `json:"schedule"`
	Restore    etl.RestoreStats   `json:"restore"`
	Health     etl.HealthReport   `json:"health"`
	// UnparsedTeams lists composite names the pattern set could not split.
	UnparsedTeams []string `json:"unparsed_teams,omitempty"`
}

// ImportService runs the whole snapshot-to-database pipeline inside one
// transaction, preserving team identity and user-owned rows across the
// destructive replace.
type ImportService struct {
	store    ImportStore
	loader   SnapshotLoader
	health   *HealthService
	settings MaintenanceSwitch
	backup   BackupRunner
	cfg      ImportConfig
	logger   *logging.Logger
}

func NewImportService(
	store ImportStore,
	loader SnapshotLoader,
	health *HealthService,
	settings MaintenanceSwitch,
	backup BackupRunner,
	cfg ImportConfig,
	logger *logging.Logger,
) *ImportService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ImportService{
		store:    store,
		loader:   loader,
		health:   health,
		settings: settings,
		backup:   backup,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *ImportService) Run(ctx context.Context, input ImportInput) (ImportSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ImportService.Run")
	defer span.End()

	start := time.Now()
	summary := ImportSummary{Phase: PhaseIdle, DryRun: input.DryRun}
	fail := func(err error) (ImportSummary, error) {
		summary.Phase = PhaseRolledBack
		summary.DurationMs = time.Since(start).Milliseconds()
		return summary, err
	}

	if strings.TrimSpace(input.DataDir) == "" {
		return fail(fmt.Errorf("%w: data directory is required", ErrInvalidInput))
	}
	if s.store == nil || s.loader == nil || s.health == nil {
		return fail(fmt.Errorf("%w: import service is not fully configured", ErrInvalidInput))
	}

	bundle, err := s.loader.Load(ctx, input.DataDir)
	if err != nil {
		return fail(fmt.Errorf("load snapshot: %w", err))
	}
	summary.Rejected = bundle.Rejected
	if len(input.Leagues) > 0 {
		bundle, err = filterBundleByLeagues(bundle, input.Leagues)
		if err != nil {
			return fail(err)
		}
	}

	if err := s.health.CheckPreconditions(ctx, s.store); err != nil {
		return fail(err)
	}

	if !input.SkipBackup {
		path, err := s.runBackup(ctx)
		if err != nil {
			return fail(err)
		}
		summary.BackupPath = path
	} else if s.cfg.BackupRequired {
		return fail(fmt.Errorf("%w: backup cannot be skipped", ErrBackupRequired))
	}

	if s.settings != nil {
		if err := s.settings.EnableMaintenance(ctx, s.cfg.MaintenanceReason, s.cfg.MaintenanceETA); err != nil {
			return fail(fmt.Errorf("enable maintenance mode: %w", err))
		}
		defer func() {
			offCtx := context.WithoutCancel(ctx)
			if err := s.settings.DisableMaintenance(offCtx); err != nil {
				s.logger.ErrorContext(offCtx, "disable maintenance mode", "error", err)
			}
		}()
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fail(err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		rollbackErr := tx.Rollback()
		if rollbackErr == nil {
			return
		}
		s.logger.ErrorContext(ctx, "rollback import tx", "error", rollbackErr)
		// Secondary recovery: the rollback itself failed, so fall back to the
		// file backup when one was taken. Its failure is logged, never raised.
		if s.backup != nil && summary.BackupPath != "" {
			offCtx := context.WithoutCancel(ctx)
			if err := s.backup.Restore(offCtx, summary.BackupPath); err != nil {
				s.logger.ErrorContext(offCtx, "restore from backup", "path", summary.BackupPath, "error", err)
			}
		}
	}()

	summary.Phase = PhaseBackup
	preserved, err := tx.BackupUserData(ctx)
	if err != nil {
		return fail(fmt.Errorf("backup user data: %w", err))
	}
	practiceBefore := len(preserved.Practices)
	s.logger.InfoContext(ctx, "user data captured",
		"practices", practiceBefore, "links", len(preserved.Links))

	summary.Phase = PhaseClearing
	if err := tx.ClearDerived(ctx); err != nil {
		return fail(err)
	}
	if err := tx.Savepoint(ctx, "cleared"); err != nil {
		return fail(err)
	}

	summary.Phase = PhaseImporting
	ids, err := s.writeReferences(ctx, tx, bundle, &summary)
	if err != nil {
		return fail(err)
	}

	extraction := reference.ExtractTeams(bundle.SeriesStats, bundle.Schedules)
	summary.UnparsedTeams = extraction.Unparsed
	for _, name := range extraction.Unparsed {
		s.logger.WarnContext(ctx, "team name did not match any pattern", "name", name)
	}
	summary.Teams, err = tx.UpsertTeams(ctx, extraction.Teams, ids)
	if err != nil {
		return fail(err)
	}
	for _, name := range summary.Teams.SkippedNameConflicts {
		s.logger.WarnContext(ctx, "team name held by another club/series, skipped", "name", name)
	}
	for _, name := range summary.Teams.SkippedUnresolvedRefs {
		s.logger.WarnContext(ctx, "team references unknown club/series/league, skipped", "name", name)
	}
	lookup, err := tx.TeamLookup(ctx)
	if err != nil {
		return fail(err)
	}
	if err := tx.Savepoint(ctx, "teams"); err != nil {
		return fail(err)
	}

	if err := s.writeDerived(ctx, tx, bundle, ids, lookup, &summary); err != nil {
		return fail(err)
	}

	summary.Phase = PhaseRestoring
	restore, restoredPractices, err := s.restoreUserData(ctx, tx, preserved, lookup)
	if err != nil {
		return fail(err)
	}
	summary.Restore = restore
	if err := tx.Savepoint(ctx, "restored"); err != nil {
		return fail(err)
	}

	summary.Phase = PhaseValidating
	report, err := s.validate(ctx, tx, practiceBefore, restoredPractices)
	summary.Health = report
	if err != nil {
		return fail(err)
	}

	if input.DryRun {
		summary.Phase = PhaseRolledBack
		summary.DurationMs = time.Since(start).Milliseconds()
		s.logger.InfoContext(ctx, "dry run complete, rolling back", "skipped", summary.Skipped)
		return summary, nil
	}

	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	committed = true
	summary.Phase = PhaseCommitted
	summary.DurationMs = time.Since(start).Milliseconds()
	s.logger.InfoContext(ctx, "import committed",
		"players", summary.Players,
		"matches", summary.Matches,
		"teams_created", summary.Teams.Created,
		"teams_updated", summary.Teams.Updated,
		"duration_ms", summary.DurationMs)
	return summary, nil
}

func (s *ImportService) runBackup(ctx context.Context) (string, error) {
	if s.backup == nil {
		if s.cfg.BackupRequired {
			return "", fmt.Errorf("%w: no backup runner configured", ErrBackupRequired)
		}
		return "", nil
	}
	path, err := s.backup.Run(ctx)
	if err != nil {
		if s.cfg.BackupRequired {
			return "", fmt.Errorf("%w: %v", ErrBackupRequired, err)
		}
		s.logger.WarnContext(ctx, "file backup failed, continuing", "error", err)
		return "", nil
	}
	return path, nil
}

func (s *ImportService) writeReferences(ctx context.Context, tx ImportTx, bundle snapshot.Bundle, summary *ImportSummary) (etl.RefIDs, error) {
	var ids etl.RefIDs
	var err error

	leagues := reference.ExtractLeagues(bundle.Players)
	ids.Leagues, err = tx.UpsertLeagues(ctx, leagues)
	if err != nil {
		return ids, err
	}
	summary.Leagues = len(ids.Leagues)

	clubs := reference.ExtractClubs(bundle.Players)
	ids.Clubs, err = tx.UpsertClubs(ctx, clubs)
	if err != nil {
		return ids, err
	}
	summary.Clubs = len(ids.Clubs)

	series := reference.ExtractSeries(bundle.Players)
	ids.Series, err = tx.UpsertSeries(ctx, series)
	if err != nil {
		return ids, err
	}
	summary.Series = len(ids.Series)

	if _, err := tx.LinkClubLeagues(ctx, reference.ClubLeagues(bundle.Players), ids); err != nil {
		return ids, err
	}
	if _, err := tx.LinkSeriesLeagues(ctx, reference.SeriesLeagues(bundle.Players), ids); err != nil {
		return ids, err
	}
	if err := tx.Savepoint(ctx, "reference_data"); err != nil {
		return ids, err
	}
	return ids, nil
}

func (s *ImportService) writeDerived(ctx context.Context, tx ImportTx, bundle snapshot.Bundle, ids etl.RefIDs, lookup etl.TeamLookup, summary *ImportSummary) error {
	players := buildPlayerRows(bundle.Players, ids, lookup)
	if err := s.recordSkips(ctx, summary, "players", players.skipped); err != nil {
		return err
	}
	rowsPerPlayer := make(map[string]int, len(players.rows))
	for _, row := range players.rows {
		rowsPerPlayer[row.Key.TennisCoresID]++
	}
	for id, n := range rowsPerPlayer {
		// Multi-roster ids legitimately produce one row per (club, series).
		if n > 1 {
			s.logger.DebugContext(ctx, "player spans multiple rosters", "player_id", id, "rows", n)
		}
	}
	written, err := tx.UpsertPlayers(ctx, players.rows)
	if err != nil {
		return err
	}
	summary.Players = written

	playerIDs, err := tx.PlayerIDsByKey(ctx)
	if err != nil {
		return err
	}
	anchors := historyAnchors(playerIDs)

	careers := buildCareerStats(bundle.Matches, ids)
	careerKeys := make([]careerKey, 0, len(careers))
	for key := range careers {
		careerKeys = append(careerKeys, key)
	}
	sort.Slice(careerKeys, func(i, j int) bool {
		a, b := careerKeys[i], careerKeys[j]
		if a.playerID != b.playerID {
			return a.playerID < b.playerID
		}
		return a.leagueID < b.leagueID
	})
	for _, key := range careerKeys {
		affected, err := tx.UpdateCareer(ctx, key.playerID, key.leagueID, careers[key])
		if err != nil {
			return err
		}
		summary.Careers += int(affected)
	}

	history := buildHistoryRows(bundle.PlayerHistory, ids, anchors)
	if err := s.recordSkips(ctx, summary, "player_history", history.skipped); err != nil {
		return err
	}
	summary.History, err = tx.InsertPlayerHistory(ctx, history.rows, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if err := tx.Savepoint(ctx, "players"); err != nil {
		return err
	}

	matches := buildMatchRows(bundle.Matches, ids, lookup)
	if err := s.recordSkips(ctx, summary, "matches", matches.skipped); err != nil {
		return err
	}
	summary.Matches, err = tx.InsertMatches(ctx, matches.rows, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	stats := buildSeriesStatsRows(bundle.SeriesStats, ids, lookup)
	if err := s.recordSkips(ctx, summary, "series_stats", stats.skipped); err != nil {
		return err
	}
	summary.Stats, err = tx.InsertSeriesStats(ctx, stats.rows, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	schedule := buildScheduleRows(bundle.Schedules, ids, lookup)
	if err := s.recordSkips(ctx, summary, "schedule", schedule.skipped); err != nil {
		return err
	}
	summary.Schedule, err = tx.InsertSchedule(ctx, schedule.rows, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	return tx.Savepoint(ctx, "derived")
}

// recordSkips logs each skipped record and aborts once the total crosses the
// configured ceiling.
func (s *ImportService) recordSkips(ctx context.Context, summary *ImportSummary, stage string, skipped []string) error {
	for _, reason := range skipped {
		s.logger.WarnContext(ctx, "record skipped", "stage", stage, "reason", reason)
	}
	summary.Skipped += len(skipped)
	if s.cfg.MaxRecordErrors > 0 && summary.Skipped > s.cfg.MaxRecordErrors {
		return fmt.Errorf("%w: %d skipped records (ceiling %d)", ErrTooManyRecordErrors, summary.Skipped, s.cfg.MaxRecordErrors)
	}
	return nil
}

// restoreUserData reattaches preserved rows. Practices are re-inserted into
// the rebuilt schedule; polls, captain messages and availability rows only
// need their team reference fixed.
func (s *ImportService) restoreUserData(ctx context.Context, tx ImportTx, preserved etl.PreservedData, lookup etl.TeamLookup) (etl.RestoreStats, int, error) {
	var stats etl.RestoreStats
	matcher := newTeamMatcher(lookup)

	practiceRows := make([]etl.ScheduleRow, 0, len(preserved.Practices))
	for _, p := range preserved.Practices {
		teamID, outcome := matcher.matchPractice(p)
		switch outcome {
		case matchDirect:
			stats.Direct++
		case matchFallback:
			stats.Fallback++
		default:
			stats.Unresolved++
			stats.UnresolvedNames = append(stats.UnresolvedNames, p.HomeTeam)
			s.logger.WarnContext(ctx, "practice row kept without team reference",
				"name", p.HomeTeam, "date", p.Date.Format("2006-01-02"))
		}
		practiceRows = append(practiceRows, etl.ScheduleRow{
			Date:       p.Date,
			Time:       p.Time,
			HomeTeam:   p.HomeTeam,
			HomeTeamID: teamID,
			Location:   p.Location,
			LeagueID:   p.LeagueID,
		})
	}
	restored, err := tx.InsertSchedule(ctx, practiceRows, s.cfg.BatchSize)
	if err != nil {
		return stats, 0, fmt.Errorf("restore practice rows: %w", err)
	}

	for _, link := range preserved.Links {
		teamID, outcome := matcher.matchLink(link)
		switch outcome {
		case matchDirect:
			stats.Direct++
		case matchFallback:
			stats.Fallback++
			if err := tx.RelinkUserRow(ctx, link.Table, link.RowID, teamID); err != nil {
				return stats, restored, err
			}
		default:
			stats.Unresolved++
			stats.UnresolvedNames = append(stats.UnresolvedNames, link.TeamName)
			if err := tx.UnlinkUserRow(ctx, link.Table, link.RowID); err != nil {
				return stats, restored, err
			}
			s.logger.WarnContext(ctx, "user row detached from missing team",
				"table", link.Table, "row_id", link.RowID, "team_name", link.TeamName)
		}
	}
	return stats, restored, nil
}

// validate runs the post-import checks while the transaction is still open,
// so a critical result can still take the whole run down.
func (s *ImportService) validate(ctx context.Context, tx ImportTx, practiceBefore, restoredPractices int) (etl.HealthReport, error) {
	report := etl.HealthReport{PracticeBefore: practiceBefore}

	practiceAfter, err := tx.CountPracticeRows(ctx)
	if err != nil {
		return report, err
	}
	report.PracticeAfter = practiceAfter
	if practiceAfter < practiceBefore {
		report.Status = etl.HealthCritical
		return report, fmt.Errorf("%w: practice rows dropped from %d to %d", ErrHealthCritical, practiceBefore, practiceAfter)
	}
	if restoredPractices != practiceBefore {
		report.Notes = append(report.Notes, fmt.Sprintf("restored %d of %d practice rows", restoredPractices, practiceBefore))
	}

	orphans, err := tx.OrphanCounts(ctx)
	if err != nil {
		return report, err
	}
	report.Orphans = orphans
	report.OrphansAfterFixup = orphans
	report.Status = s.health.Grade(orphans)
	if report.Status == etl.HealthHealthy {
		return report, nil
	}

	// Both DEGRADED and CRITICAL get one repair pass; only a result that is
	// still critical after repair blocks the commit.
	repaired, err := tx.RepairOrphans(ctx)
	if err != nil {
		return report, err
	}
	report.Repaired = repaired
	report.OrphansAfterFixup, err = tx.OrphanCounts(ctx)
	if err != nil {
		return report, err
	}
	report.Notes = append(report.Notes, fmt.Sprintf("auto-repair touched %d stale references", repaired))
	if s.health.Grade(report.OrphansAfterFixup) == etl.HealthCritical {
		report.Status = etl.HealthCritical
		return report, fmt.Errorf("%w: %d orphaned team references after repair", ErrHealthCritical, report.OrphansAfterFixup.Total())
	}
	report.Status = etl.HealthDegraded
	return report, nil
}

// filterBundleByLeagues narrows every file to the requested leagues.
func filterBundleByLeagues(bundle snapshot.Bundle, leagues []string) (snapshot.Bundle, error) {
	allowed := make(map[string]struct{}, len(leagues))
	for _, raw := range leagues {
		key := reference.NormalizeLeagueID(raw)
		if key == "" {
			return bundle, fmt.Errorf("%w: unrecognized league %q", ErrInvalidInput, raw)
		}
		allowed[key] = struct{}{}
	}
	keep := func(raw string) bool {
		_, ok := allowed[reference.NormalizeLeagueID(raw)]
		return ok
	}

	out := snapshot.Bundle{Rejected: bundle.Rejected}
	for _, p := range bundle.Players {
		if keep(p.League) {
			out.Players = append(out.Players, p)
		}
	}
	for _, h := range bundle.PlayerHistory {
		if keep(h.LeagueID) {
			out.PlayerHistory = append(out.PlayerHistory, h)
		}
	}
	for _, m := range bundle.Matches {
		if keep(m.LeagueID) {
			out.Matches = append(out.Matches, m)
		}
	}
	for _, st := range bundle.SeriesStats {
		if keep(st.LeagueID) {
			out.SeriesStats = append(out.SeriesStats, st)
		}
	}
	for _, sch := range bundle.Schedules {
		if keep(sch.League) {
			out.Schedules = append(out.Schedules, sch)
		}
	}
	return out, nil
}
