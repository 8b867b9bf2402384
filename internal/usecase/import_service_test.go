package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	"github.com/rallyhq/league-etl/internal/domain/reference"
	"github.com/rallyhq/league-etl/internal/domain/snapshot"
	"github.com/rallyhq/league-etl/internal/platform/logging"
)

type fakeLoader struct {
	bundle snapshot.Bundle
	err    error
}

func (l fakeLoader) Load(context.Context, string) (snapshot.Bundle, error) {
	return l.bundle, l.err
}

// fakeTx is an in-memory stand-in for one open import transaction. Writes
// accumulate in slices so tests can assert on what reached the store, and
// errs injects a failure into any single method by name.
type fakeTx struct {
	errs map[string]error

	cleared      bool
	teams        []etl.TeamRef
	teamIDs      map[reference.TeamKey]int64
	nextTeamID   int64
	teamSkips    []string
	players      []etl.PlayerRow
	careers      map[string]etl.CareerStats
	historyRows  []etl.HistoryRow
	matchRows    []etl.MatchRow
	statsRows    []etl.SeriesStatsRow
	scheduleRows []etl.ScheduleRow
	savepoints   []string
	relinked     []etl.PreservedLink
	unlinked     []etl.PreservedLink

	preserved     etl.PreservedData
	practiceAfter *int
	orphanResults []etl.OrphanCounts
	repairedOnFix int
	committed     bool
	rolledBack    bool
}

func (t *fakeTx) fail(method string) error {
	if t.errs == nil {
		return nil
	}
	return t.errs[method]
}

func (t *fakeTx) UpsertLeagues(_ context.Context, leagues []reference.League) (map[string]int64, error) {
	if err := t.fail("UpsertLeagues"); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(leagues))
	for i, l := range leagues {
		out[l.LeagueID] = int64(i + 1)
	}
	return out, nil
}

func (t *fakeTx) UpsertClubs(_ context.Context, clubs []reference.Club) (map[string]int64, error) {
	if err := t.fail("UpsertClubs"); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(clubs))
	for i, c := range clubs {
		out[c.Name] = int64(10 + i)
	}
	return out, nil
}

func (t *fakeTx) UpsertSeries(_ context.Context, series []reference.Series) (map[string]int64, error) {
	if err := t.fail("UpsertSeries"); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(series))
	for i, s := range series {
		out[s.Name] = int64(20 + i)
	}
	return out, nil
}

func (t *fakeTx) LinkClubLeagues(_ context.Context, pairs []reference.ClubLeague, _ etl.RefIDs) (int, error) {
	return len(pairs), t.fail("LinkClubLeagues")
}

func (t *fakeTx) LinkSeriesLeagues(_ context.Context, pairs []reference.SeriesLeague, _ etl.RefIDs) (int, error) {
	return len(pairs), t.fail("LinkSeriesLeagues")
}

// ClearDerived empties derived rows only; teams survive the way the real
// clear leaves them in place.
func (t *fakeTx) ClearDerived(context.Context) error {
	if err := t.fail("ClearDerived"); err != nil {
		return err
	}
	t.cleared = true
	t.players = nil
	t.careers = nil
	t.historyRows = nil
	t.matchRows = nil
	t.statsRows = nil
	t.scheduleRows = nil
	return nil
}

// UpsertTeams mirrors the natural-key upsert: a (club, series, league) seen
// in an earlier call keeps its id and refreshes its mutable names, a new key
// gets the next id.
func (t *fakeTx) UpsertTeams(_ context.Context, teams []reference.Team, ids etl.RefIDs) (etl.TeamWriteStats, error) {
	if err := t.fail("UpsertTeams"); err != nil {
		return etl.TeamWriteStats{}, err
	}
	if t.teamIDs == nil {
		t.teamIDs = make(map[reference.TeamKey]int64)
		t.nextTeamID = 100
	}
	stats := etl.TeamWriteStats{SkippedNameConflicts: t.teamSkips}
	for _, team := range teams {
		if id, seen := t.teamIDs[team.Key()]; seen {
			for i := range t.teams {
				if t.teams[i].ID == id {
					t.teams[i].Name = team.Name
					t.teams[i].Alias = team.Alias
				}
			}
			stats.Updated++
			continue
		}
		id := t.nextTeamID
		t.nextTeamID++
		t.teamIDs[team.Key()] = id
		t.teams = append(t.teams, etl.TeamRef{
			ID:         id,
			Name:       team.Name,
			Alias:      team.Alias,
			ClubName:   team.Club,
			SeriesName: team.Series,
			LeagueID:   ids.Leagues[team.LeagueID],
			LeagueKey:  team.LeagueID,
		})
		stats.Created++
	}
	return stats, nil
}

func (t *fakeTx) TeamLookup(context.Context) (etl.TeamLookup, error) {
	if err := t.fail("TeamLookup"); err != nil {
		return etl.TeamLookup{}, err
	}
	return etl.NewTeamLookup(t.teams), nil
}

func (t *fakeTx) UpsertPlayers(_ context.Context, rows []etl.PlayerRow) (int, error) {
	if err := t.fail("UpsertPlayers"); err != nil {
		return 0, err
	}
	t.players = append(t.players, rows...)
	return len(rows), nil
}

func (t *fakeTx) PlayerIDsByKey(context.Context) (map[etl.PlayerKey]int64, error) {
	if err := t.fail("PlayerIDsByKey"); err != nil {
		return nil, err
	}
	out := make(map[etl.PlayerKey]int64, len(t.players))
	for i, row := range t.players {
		out[row.Key] = int64(50 + i)
	}
	return out, nil
}

func (t *fakeTx) UpdateCareer(_ context.Context, tenniscoresID string, leagueID int64, career etl.CareerStats) (int64, error) {
	if err := t.fail("UpdateCareer"); err != nil {
		return 0, err
	}
	if t.careers == nil {
		t.careers = make(map[string]etl.CareerStats)
	}
	t.careers[fmt.Sprintf("%s/%d", tenniscoresID, leagueID)] = career
	return 1, nil
}

func (t *fakeTx) InsertPlayerHistory(_ context.Context, rows []etl.HistoryRow, _ int) (int, error) {
	if err := t.fail("InsertPlayerHistory"); err != nil {
		return 0, err
	}
	t.historyRows = append(t.historyRows, rows...)
	return len(rows), nil
}

func (t *fakeTx) InsertMatches(_ context.Context, rows []etl.MatchRow, _ int) (int, error) {
	if err := t.fail("InsertMatches"); err != nil {
		return 0, err
	}
	t.matchRows = append(t.matchRows, rows...)
	return len(rows), nil
}

func (t *fakeTx) InsertSeriesStats(_ context.Context, rows []etl.SeriesStatsRow, _ int) (int, error) {
	if err := t.fail("InsertSeriesStats"); err != nil {
		return 0, err
	}
	t.statsRows = append(t.statsRows, rows...)
	return len(rows), nil
}

func (t *fakeTx) InsertSchedule(_ context.Context, rows []etl.ScheduleRow, _ int) (int, error) {
	if err := t.fail("InsertSchedule"); err != nil {
		return 0, err
	}
	t.scheduleRows = append(t.scheduleRows, rows...)
	return len(rows), nil
}

func (t *fakeTx) BackupUserData(context.Context) (etl.PreservedData, error) {
	if err := t.fail("BackupUserData"); err != nil {
		return etl.PreservedData{}, err
	}
	return t.preserved, nil
}

func (t *fakeTx) RelinkUserRow(_ context.Context, table string, rowID, teamID int64) error {
	if err := t.fail("RelinkUserRow"); err != nil {
		return err
	}
	t.relinked = append(t.relinked, etl.PreservedLink{Table: table, RowID: rowID, TeamID: teamID})
	return nil
}

func (t *fakeTx) UnlinkUserRow(_ context.Context, table string, rowID int64) error {
	if err := t.fail("UnlinkUserRow"); err != nil {
		return err
	}
	t.unlinked = append(t.unlinked, etl.PreservedLink{Table: table, RowID: rowID})
	return nil
}

func (t *fakeTx) CountPracticeRows(context.Context) (int, error) {
	if err := t.fail("CountPracticeRows"); err != nil {
		return 0, err
	}
	if t.practiceAfter != nil {
		return *t.practiceAfter, nil
	}
	count := 0
	for _, row := range t.scheduleRows {
		if reference.IsPracticeEntry(row.HomeTeam) {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) OrphanCounts(context.Context) (etl.OrphanCounts, error) {
	if err := t.fail("OrphanCounts"); err != nil {
		return etl.OrphanCounts{}, err
	}
	if len(t.orphanResults) == 0 {
		return etl.OrphanCounts{}, nil
	}
	next := t.orphanResults[0]
	t.orphanResults = t.orphanResults[1:]
	return next, nil
}

func (t *fakeTx) RepairOrphans(context.Context) (int, error) {
	if err := t.fail("RepairOrphans"); err != nil {
		return 0, err
	}
	return t.repairedOnFix, nil
}

func (t *fakeTx) Savepoint(_ context.Context, name string) error {
	if err := t.fail("Savepoint"); err != nil {
		return err
	}
	t.savepoints = append(t.savepoints, name)
	return nil
}

func (t *fakeTx) Commit() error {
	if err := t.fail("Commit"); err != nil {
		return err
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

type fakeStore struct {
	tx            *fakeTx
	beginErr      error
	beginCalled   bool
	hasConstraint bool
	duplicates    int
	orphans       etl.OrphanCounts
}

func (s *fakeStore) Begin(context.Context) (ImportTx, error) {
	s.beginCalled = true
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

func (s *fakeStore) HasTeamNaturalKeyConstraint(context.Context) (bool, error) {
	return s.hasConstraint, nil
}

func (s *fakeStore) CountDuplicateTeamKeys(context.Context) (int, error) {
	return s.duplicates, nil
}

func (s *fakeStore) OrphanCounts(context.Context) (etl.OrphanCounts, error) {
	return s.orphans, nil
}

type fakeSwitch struct {
	enabled  bool
	disabled bool
}

func (s *fakeSwitch) EnableMaintenance(context.Context, string, time.Duration) error {
	s.enabled = true
	return nil
}

func (s *fakeSwitch) DisableMaintenance(context.Context) error {
	s.disabled = true
	return nil
}

type fakeBackup struct {
	path     string
	err      error
	runs     int
	restored string
}

func (b *fakeBackup) Run(context.Context) (string, error) {
	b.runs++
	return b.path, b.err
}

func (b *fakeBackup) Restore(_ context.Context, path string) error {
	b.restored = path
	return nil
}

func happyBundle() snapshot.Bundle {
	return snapshot.Bundle{
		Players: []snapshot.PlayerRecord{
			{PlayerID: "nndz-1", FirstName: "Ada", LastName: "Park", League: "APTA_CHICAGO", Club: "Tennaqua", Series: "Chicago 22", Wins: "10", Losses: "4"},
			{PlayerID: "nndz-2", FirstName: "Ben", LastName: "Ortiz", League: "APTA_CHICAGO", Club: "Birchwood", Series: "Chicago 22"},
		},
		PlayerHistory: []snapshot.PlayerHistoryRecord{
			{PlayerID: "nndz-1", LeagueID: "APTA_CHICAGO", Series: "Chicago 22", Matches: []snapshot.PTIMatchEntry{
				{Date: "24-Sep-25", EndPTI: 41.2, Series: "Chicago 22"},
			}},
		},
		Matches: []snapshot.MatchRecord{
			{Date: "24-Sep-25", HomeTeam: "Tennaqua - 22", AwayTeam: "Birchwood - 22",
				HomePlayer1ID: "nndz-1", AwayPlayer1ID: "nndz-2", Winner: "home", LeagueID: "APTA_CHICAGO"},
		},
		SeriesStats: []snapshot.SeriesStatsRecord{
			{Series: "Chicago 22", Team: "Tennaqua - 22", LeagueID: "APTA_CHICAGO", Points: 12},
			{Series: "Chicago 22", Team: "Birchwood - 22", LeagueID: "APTA_CHICAGO", Points: 9},
		},
		Schedules: []snapshot.ScheduleRecord{
			{Date: "01-Oct-25", Time: "6:30 pm", HomeTeam: "Tennaqua - 22", AwayTeam: "Birchwood - 22", League: "APTA_CHICAGO"},
			{Date: "02-Oct-25", HomeTeam: "Tennaqua Practice - Chicago 22", League: "APTA_CHICAGO"},
		},
	}
}

// preservedFixture exercises all three restore strategies. Team ids are the
// ones the fake store assigns during the run: Birchwood gets 100 and Tennaqua
// 101 (teams sort by league, club, series).
func preservedFixture() etl.PreservedData {
	birchwood := int64(100)
	stale := int64(999)
	return etl.PreservedData{
		Practices: []etl.PreservedPractice{
			{HomeTeam: "Birchwood Practice", Date: mustDate("02-Oct-25"), TeamID: &birchwood, LeagueID: 1, LeagueKey: "APTA_CHICAGO"},
			{HomeTeam: "Tennaqua Practice - Chicago 22", Date: mustDate("02-Oct-25"), TeamID: &stale,
				ClubName: "Tennaqua", SeriesName: "Chicago 22", LeagueID: 1, LeagueKey: "APTA_CHICAGO"},
		},
		Links: []etl.PreservedLink{
			{Table: "polls", RowID: 1, TeamID: 101, TeamName: "Tennaqua - 22"},
			{Table: "captain_messages", RowID: 2, TeamID: 999, TeamName: "Birchwood - 22"},
			{Table: "player_availability", RowID: 3, TeamID: 999, TeamName: "Ghost Team"},
		},
	}
}

func mustDate(raw string) time.Time {
	date, err := snapshot.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return date
}

func newRunFixture(tx *fakeTx) (*ImportService, *fakeStore, *fakeSwitch, *fakeBackup) {
	store := &fakeStore{tx: tx, hasConstraint: true}
	settings := &fakeSwitch{}
	backup := &fakeBackup{path: "/backups/pre_import.dump"}
	svc := NewImportService(
		store,
		fakeLoader{bundle: happyBundle()},
		NewHealthService(HealthConfig{OrphanBaseline: 10, OrphanCritical: 25}, nil),
		settings,
		backup,
		ImportConfig{BatchSize: 100, MaxRecordErrors: 50, MaintenanceReason: "import", MaintenanceETA: 30 * time.Minute},
		nil,
	)
	return svc, store, settings, backup
}

func TestImportServiceRun(t *testing.T) {
	tx := &fakeTx{preserved: preservedFixture()}
	svc, _, settings, backup := newRunFixture(tx)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.NoError(t, err)

	require.Equal(t, PhaseCommitted, summary.Phase)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
	require.True(t, tx.cleared)
	require.Equal(t, 1, backup.runs)
	require.Equal(t, "/backups/pre_import.dump", summary.BackupPath)
	require.True(t, settings.enabled)
	require.True(t, settings.disabled)

	require.Equal(t,
		[]string{"cleared", "reference_data", "teams", "players", "derived", "restored"},
		tx.savepoints)

	require.Equal(t, 1, summary.Leagues)
	require.Equal(t, 2, summary.Clubs)
	require.Equal(t, 1, summary.Series)
	require.Equal(t, 2, summary.Teams.Created)
	require.Equal(t, 2, summary.Players)
	require.Equal(t, 1, summary.History)
	require.Equal(t, 1, summary.Matches)
	require.Equal(t, 2, summary.Stats)
	// The snapshot practice row is dropped; only the league match lands here.
	require.Equal(t, 1, summary.Schedule)
	require.Empty(t, summary.UnparsedTeams)
	require.Zero(t, summary.Skipped)

	// Two practices plus three links: one direct each, one natural-key
	// fallback, one name fallback, one unresolved.
	require.Equal(t, etl.RestoreStats{
		Direct: 2, Fallback: 2, Unresolved: 1,
		UnresolvedNames: []string{"Ghost Team"},
	}, summary.Restore)
	require.Len(t, tx.relinked, 1)
	require.Equal(t, "captain_messages", tx.relinked[0].Table)
	require.Equal(t, int64(100), tx.relinked[0].TeamID)
	require.Len(t, tx.unlinked, 1)
	require.Equal(t, "player_availability", tx.unlinked[0].Table)

	require.Equal(t, etl.HealthHealthy, summary.Health.Status)
	require.Equal(t, 2, summary.Health.PracticeBefore)
	require.Equal(t, 2, summary.Health.PracticeAfter)

	// Both practice rows went back into the schedule with resolved team ids.
	practices := 0
	for _, row := range tx.scheduleRows {
		if reference.IsPracticeEntry(row.HomeTeam) {
			practices++
			require.NotNil(t, row.HomeTeamID)
		}
	}
	require.Equal(t, 2, practices)
}

func TestImportServiceRunDryRun(t *testing.T) {
	tx := &fakeTx{preserved: preservedFixture()}
	svc, _, settings, _ := newRunFixture(tx)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data", DryRun: true})
	require.NoError(t, err)
	require.Equal(t, PhaseRolledBack, summary.Phase)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
	require.True(t, settings.disabled)
}

// Running the import twice over the same snapshot must leave every team's
// surrogate id untouched: the second pass hits the natural-key upsert instead
// of creating rows.
func TestImportServiceRunRepeatKeepsTeamIDs(t *testing.T) {
	tx := &fakeTx{preserved: preservedFixture()}
	svc, _, _, _ := newRunFixture(tx)

	first, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.NoError(t, err)
	require.Equal(t, 2, first.Teams.Created)
	firstIDs := make(map[string]int64, len(tx.teams))
	for _, team := range tx.teams {
		firstIDs[team.Name] = team.ID
	}

	second, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.NoError(t, err)
	require.Zero(t, second.Teams.Created)
	require.Equal(t, len(firstIDs), second.Teams.Updated)
	require.Len(t, tx.teams, len(firstIDs))
	for _, team := range tx.teams {
		require.Equal(t, firstIDs[team.Name], team.ID, "team %s must keep its id", team.Name)
	}
	require.Equal(t, etl.HealthHealthy, second.Health.Status)
	require.Equal(t, first.Restore, second.Restore)
}

// Walks a practice row through the identity scenarios: an unchanged snapshot,
// a renamed team spelling over the same natural key, and a database where the
// team never existed at all.
func TestImportServiceRunTeamIdentityScenario(t *testing.T) {
	scenarioBundle := func(team string) snapshot.Bundle {
		return snapshot.Bundle{
			Players: []snapshot.PlayerRecord{
				{PlayerID: "nndz-9", FirstName: "Mia", LastName: "Cole", League: "APTA_CHICAGO", Club: "Tennaqua", Series: "Chicago 22"},
			},
			SeriesStats: []snapshot.SeriesStatsRecord{
				{Series: "Chicago 22", Team: team, LeagueID: "APTA_CHICAGO", Points: 10},
			},
		}
	}
	teamID := int64(100)
	preserved := etl.PreservedData{
		Practices: []etl.PreservedPractice{{
			HomeTeam: "Tennaqua Practice - Chicago 22", Date: mustDate("02-Oct-25"),
			TeamID: &teamID, ClubName: "Tennaqua", SeriesName: "Chicago 22",
			LeagueID: 1, LeagueKey: "APTA_CHICAGO",
		}},
	}
	newScenarioService := func(tx *fakeTx, loader *fakeLoader) *ImportService {
		return NewImportService(
			&fakeStore{tx: tx, hasConstraint: true},
			loader,
			NewHealthService(HealthConfig{OrphanBaseline: 10, OrphanCritical: 25}, nil),
			nil,
			nil,
			ImportConfig{BatchSize: 100, MaxRecordErrors: 50},
			nil,
		)
	}

	tx := &fakeTx{preserved: preserved}
	loader := &fakeLoader{bundle: scenarioBundle("Tennaqua - 22")}
	svc := newScenarioService(tx, loader)

	first, err := svc.Run(context.Background(), ImportInput{DataDir: "/data", SkipBackup: true})
	require.NoError(t, err)
	require.Equal(t, 1, first.Teams.Created)
	require.Equal(t, int64(100), tx.teams[0].ID)
	require.Equal(t, 1, first.Restore.Direct)

	// Identical snapshot: the upsert hits the natural key and the id holds.
	second, err := svc.Run(context.Background(), ImportInput{DataDir: "/data", SkipBackup: true})
	require.NoError(t, err)
	require.Zero(t, second.Teams.Created)
	require.Equal(t, 1, second.Teams.Updated)
	require.Len(t, tx.teams, 1)
	require.Equal(t, int64(100), tx.teams[0].ID)
	require.Equal(t, 1, second.Restore.Direct)
	require.Zero(t, second.Health.OrphansAfterFixup.Total())

	// Renamed spelling, same (club, series, league): still the same row.
	loader.bundle = scenarioBundle("Tennaqua 22")
	third, err := svc.Run(context.Background(), ImportInput{DataDir: "/data", SkipBackup: true})
	require.NoError(t, err)
	require.Equal(t, 1, third.Teams.Updated)
	require.Equal(t, int64(100), tx.teams[0].ID)
	require.Equal(t, "Tennaqua 22", tx.teams[0].Name)
	require.Equal(t, 1, third.Restore.Direct)

	// Team gone entirely: the practice row must surface as unresolved with
	// its name in the report, never silently vanish. Ids start past the
	// preserved one so the replacement team cannot collide with it.
	fresh := &fakeTx{
		preserved:  preserved,
		teamIDs:    map[reference.TeamKey]int64{},
		nextTeamID: 500,
	}
	svc = newScenarioService(fresh, &fakeLoader{bundle: scenarioBundle("Glenbrook - 5")})
	fourth, err := svc.Run(context.Background(), ImportInput{DataDir: "/data", SkipBackup: true})
	require.NoError(t, err)
	require.Equal(t, etl.RestoreStats{
		Unresolved:      1,
		UnresolvedNames: []string{"Tennaqua Practice - Chicago 22"},
	}, fourth.Restore)
	require.Equal(t, 1, fourth.Health.PracticeAfter, "unresolved practice row must still be written")
}

func TestImportServiceRunWarnsOnSkippedTeams(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tx := &fakeTx{preserved: preservedFixture(), teamSkips: []string{"Glen View - 7"}}
	svc := NewImportService(
		&fakeStore{tx: tx, hasConstraint: true},
		fakeLoader{bundle: happyBundle()},
		NewHealthService(HealthConfig{OrphanBaseline: 10, OrphanCritical: 25}, nil),
		nil,
		nil,
		ImportConfig{BatchSize: 100, MaxRecordErrors: 50},
		logging.FromZap(zap.New(core)),
	)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data", SkipBackup: true})
	require.NoError(t, err)
	require.Equal(t, []string{"Glen View - 7"}, summary.Teams.SkippedNameConflicts)

	found := false
	for _, entry := range logs.All() {
		if entry.Message == "team name held by another club/series, skipped" {
			found = true
			require.Equal(t, "Glen View - 7", entry.ContextMap()["name"])
		}
	}
	require.True(t, found, "skipped team must be logged at warn")
}

func TestImportServiceRunRollsBackOnWriteFailure(t *testing.T) {
	boom := errors.New("insert failed")
	tx := &fakeTx{preserved: preservedFixture(), errs: map[string]error{"InsertMatches": boom}}
	svc, _, settings, _ := newRunFixture(tx)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, PhaseRolledBack, summary.Phase)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
	require.True(t, settings.disabled, "maintenance must lift even on failure")
}

func TestImportServiceRunPreconditionFailure(t *testing.T) {
	tx := &fakeTx{}
	svc, store, _, _ := newRunFixture(tx)
	store.hasConstraint = false

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.ErrorIs(t, err, ErrPreconditionFailed)
	require.Equal(t, PhaseRolledBack, summary.Phase)
	require.False(t, store.beginCalled, "run must not open a transaction")
}

func TestImportServiceRunPracticeConservation(t *testing.T) {
	after := 0
	tx := &fakeTx{preserved: preservedFixture(), practiceAfter: &after}
	svc, _, _, _ := newRunFixture(tx)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.ErrorIs(t, err, ErrHealthCritical)
	require.Equal(t, PhaseRolledBack, summary.Phase)
	require.Equal(t, etl.HealthCritical, summary.Health.Status)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestImportServiceRunCriticalOrphans(t *testing.T) {
	tx := &fakeTx{
		preserved:     preservedFixture(),
		orphanResults: []etl.OrphanCounts{{Links: 30}, {Links: 30}},
	}
	svc, _, _, _ := newRunFixture(tx)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.ErrorIs(t, err, ErrHealthCritical)
	require.Equal(t, etl.HealthCritical, summary.Health.Status)
	require.Equal(t, 30, summary.Health.OrphansAfterFixup.Total())
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestImportServiceRunDegradedAutoRepair(t *testing.T) {
	tx := &fakeTx{
		preserved:     preservedFixture(),
		orphanResults: []etl.OrphanCounts{{Links: 15}, {}},
		repairedOnFix: 15,
	}
	svc, _, _, _ := newRunFixture(tx)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.NoError(t, err)
	require.Equal(t, PhaseCommitted, summary.Phase)
	require.Equal(t, etl.HealthDegraded, summary.Health.Status)
	require.Equal(t, 15, summary.Health.Repaired)
	require.Zero(t, summary.Health.OrphansAfterFixup.Total())
	require.True(t, tx.committed)
}

func TestImportServiceRunTooManyRecordErrors(t *testing.T) {
	bundle := happyBundle()
	bundle.Matches = append(bundle.Matches,
		snapshot.MatchRecord{Date: "garbage", HomeTeam: "A", AwayTeam: "B", LeagueID: "APTA_CHICAGO"},
		snapshot.MatchRecord{Date: "garbage", HomeTeam: "C", AwayTeam: "D", LeagueID: "APTA_CHICAGO"},
	)
	tx := &fakeTx{preserved: preservedFixture()}
	store := &fakeStore{tx: tx, hasConstraint: true}
	svc := NewImportService(
		store,
		fakeLoader{bundle: bundle},
		NewHealthService(HealthConfig{OrphanBaseline: 10, OrphanCritical: 25}, nil),
		nil,
		nil,
		ImportConfig{BatchSize: 100, MaxRecordErrors: 1},
		nil,
	)

	summary, err := svc.Run(context.Background(), ImportInput{DataDir: "/data", SkipBackup: true})
	require.ErrorIs(t, err, ErrTooManyRecordErrors)
	require.Equal(t, PhaseRolledBack, summary.Phase)
	require.True(t, tx.rolledBack)
}

func TestImportServiceRunBackupRequired(t *testing.T) {
	tx := &fakeTx{preserved: preservedFixture()}
	store := &fakeStore{tx: tx, hasConstraint: true}
	backup := &fakeBackup{err: errors.New("pg_dump: connection refused")}
	svc := NewImportService(
		store,
		fakeLoader{bundle: happyBundle()},
		NewHealthService(HealthConfig{OrphanBaseline: 10, OrphanCritical: 25}, nil),
		nil,
		backup,
		ImportConfig{BatchSize: 100, BackupRequired: true},
		nil,
	)

	_, err := svc.Run(context.Background(), ImportInput{DataDir: "/data"})
	require.ErrorIs(t, err, ErrBackupRequired)
	require.False(t, store.beginCalled)

	// Skipping the backup is also refused when one is required.
	_, err = svc.Run(context.Background(), ImportInput{DataDir: "/data", SkipBackup: true})
	require.ErrorIs(t, err, ErrBackupRequired)
}

func TestImportServiceRunRejectsEmptyDataDir(t *testing.T) {
	svc, _, _, _ := newRunFixture(&fakeTx{})
	_, err := svc.Run(context.Background(), ImportInput{DataDir: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFilterBundleByLeagues(t *testing.T) {
	bundle := happyBundle()
	bundle.Players = append(bundle.Players,
		snapshot.PlayerRecord{PlayerID: "nndz-9", League: "NSTF", Club: "Wilmette", Series: "Series 1"})
	bundle.Schedules = append(bundle.Schedules,
		snapshot.ScheduleRecord{Date: "01-Oct-25", HomeTeam: "Wilmette S1", League: "NSTF"})

	filtered, err := filterBundleByLeagues(bundle, []string{"aptachicago"})
	require.NoError(t, err)
	require.Len(t, filtered.Players, 2)
	require.Len(t, filtered.Schedules, 2)
	for _, p := range filtered.Players {
		require.Equal(t, "APTA_CHICAGO", reference.NormalizeLeagueID(p.League))
	}

	_, err = filterBundleByLeagues(bundle, []string{"  "})
	require.ErrorIs(t, err, ErrInvalidInput)
}
