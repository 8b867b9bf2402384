// Package etl holds the row shapes and result types that flow between the
// import pipeline and the relational store.
package etl

import "time"

// RefIDs carries the surrogate ids assigned to reference entities during the
// current run, keyed by natural key.
type RefIDs struct {
	Leagues map[string]int64
	Clubs   map[string]int64
	Series  map[string]int64
}

// PlayerKey is the player natural key. The same external player id may
// legitimately appear under several club/series combinations.
type PlayerKey struct {
	TennisCoresID string
	LeagueID      int64
	ClubID        int64
	SeriesID      int64
}

// PlayerRow is one resolved players-table row ready for upsert.
type PlayerRow struct {
	Key           PlayerKey
	FirstName     string
	LastName      string
	TeamID        *int64
	PTI           *float64
	Wins          int
	Losses        int
	WinPercentage *float64
	Captain       string
}

// CareerStats is the aggregate computed from a player's full history.
type CareerStats struct {
	Matches       int
	Wins          int
	Losses        int
	WinPercentage float64
}

// HistoryRow is one player_history detail row.
type HistoryRow struct {
	PlayerID int64
	LeagueID int64
	Series   string
	Date     time.Time
	EndPTI   float64
}

// MatchRow is one match_scores row. Team ids are resolved by name against the
// freshly written team table and stay nil when the lookup misses.
type MatchRow struct {
	Date          time.Time
	HomeTeam      string
	AwayTeam      string
	HomeTeamID    *int64
	AwayTeamID    *int64
	HomePlayer1ID string
	HomePlayer2ID string
	AwayPlayer1ID string
	AwayPlayer2ID string
	Scores        string
	Winner        string
	LeagueID      int64
}

// SeriesStatsRow is one standings snapshot row.
type SeriesStatsRow struct {
	Series      string
	Team        string
	TeamID      *int64
	LeagueID    int64
	Points      int
	MatchesWon  int
	MatchesLost int
	MatchesTied int
	LinesWon    int
	LinesLost   int
	LinesFor    int
	LinesRet    int
	SetsWon     int
	SetsLost    int
	GamesWon    int
	GamesLost   int
}

// ScheduleRow is one calendar row, covering both matches and practice
// placeholders.
type ScheduleRow struct {
	Date       time.Time
	Time       string
	HomeTeam   string
	AwayTeam   string
	HomeTeamID *int64
	AwayTeamID *int64
	Location   string
	LeagueID   int64
}

// TeamWriteStats summarizes an identity-preserving team write.
type TeamWriteStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	// SkippedNameConflicts lists team names whose upsert would have violated
	// the per-league name uniqueness held by a different natural key.
	SkippedNameConflicts []string `json:"skipped_name_conflicts,omitempty"`
	// SkippedUnresolvedRefs lists team names whose club/series/league did not
	// resolve to reference ids written earlier in the run.
	SkippedUnresolvedRefs []string `json:"skipped_unresolved_refs,omitempty"`
}

// TeamRef is one team row as seen by lookups and fallback matching.
type TeamRef struct {
	ID         int64
	Name       string
	Alias      string
	ClubName   string
	SeriesName string
	LeagueID   int64
	LeagueKey  string
}

// TeamLookup indexes the freshly written team table for name resolution.
type TeamLookup struct {
	Teams  []TeamRef
	byName map[string]int64
	byID   map[int64]TeamRef
}

func NewTeamLookup(teams []TeamRef) TeamLookup {
	l := TeamLookup{
		Teams:  teams,
		byName: make(map[string]int64, len(teams)*2),
		byID:   make(map[int64]TeamRef, len(teams)),
	}
	for _, t := range teams {
		l.byID[t.ID] = t
		if t.Name != "" {
			l.byName[nameKey(t.LeagueKey, t.Name)] = t.ID
		}
		if t.Alias != "" && t.Alias != t.Name {
			key := nameKey(t.LeagueKey, t.Alias)
			if _, taken := l.byName[key]; !taken {
				l.byName[key] = t.ID
			}
		}
	}
	return l
}

// Resolve maps a team name (or alias) within a league to its id.
func (l TeamLookup) Resolve(leagueKey, name string) (int64, bool) {
	id, ok := l.byName[nameKey(leagueKey, name)]
	return id, ok
}

// Exists reports whether a surrogate team id is present in the lookup.
func (l TeamLookup) Exists(id int64) bool {
	_, ok := l.byID[id]
	return ok
}

func nameKey(leagueKey, name string) string {
	return leagueKey + "\x00" + normalizeName(name)
}

func normalizeName(name string) string {
	out := make([]rune, 0, len(name))
	lastSpace := true
	for _, r := range name {
		switch {
		case r == ' ' || r == '\t':
			if !lastSpace {
				out = append(out, ' ')
				lastSpace = true
			}
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
			lastSpace = false
		default:
			out = append(out, r)
			lastSpace = false
		}
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}

// PreservedPractice is one practice schedule row captured before clearing,
// denormalized with its team's reference names for fallback matching.
type PreservedPractice struct {
	Date       time.Time
	Time       string
	HomeTeam   string
	Location   string
	TeamID     *int64
	LeagueID   int64
	LeagueKey  string
	ClubName   string
	SeriesName string
}

// PreservedLink is one user-owned row (poll, captain message, availability)
// keyed by team id.
type PreservedLink struct {
	Table    string
	RowID    int64
	TeamID   int64
	TeamName string
}

// PreservedData is the backup handle captured before the destructive phase.
type PreservedData struct {
	Practices []PreservedPractice
	Links     []PreservedLink
}

// RestoreStats reports how preserved rows were reattached after the import.
type RestoreStats struct {
	Direct     int `json:"direct"`
	Fallback   int `json:"fallback"`
	Unresolved int `json:"unresolved"`
	// UnresolvedNames itemizes rows neither strategy could place.
	UnresolvedNames []string `json:"unresolved_names,omitempty"`
}

func (s RestoreStats) Total() int {
	return s.Direct + s.Fallback + s.Unresolved
}

// OrphanCounts holds per-table counts of team references that no longer
// resolve.
type OrphanCounts struct {
	Schedule    int `json:"schedule"`
	SeriesStats int `json:"series_stats"`
	Matches     int `json:"matches"`
	Links       int `json:"links"`
}

func (c OrphanCounts) Total() int {
	return c.Schedule + c.SeriesStats + c.Matches + c.Links
}

// HealthStatus classifies the post-run validation result.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthCritical HealthStatus = "CRITICAL"
)

// HealthReport is the post-run validation outcome, including any auto-repair.
type HealthReport struct {
	Status            HealthStatus `json:"status"`
	PracticeBefore    int          `json:"practice_before"`
	PracticeAfter     int          `json:"practice_after"`
	Orphans           OrphanCounts `json:"orphans"`
	Repaired          int          `json:"repaired"`
	OrphansAfterFixup OrphanCounts `json:"orphans_after_fixup"`
	Notes             []string     `json:"notes,omitempty"`
}
