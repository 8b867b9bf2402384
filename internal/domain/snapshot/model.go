package snapshot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
)

// Fixed input filenames produced by the scraper. The schema of each file is a
// contract with the scraping subsystem; this package only describes it.
const (
	PlayersFile       = "players.json"
	PlayerHistoryFile = "player_history.json"
	MatchHistoryFile  = "match_history.json"
	SeriesStatsFile   = "series_stats.json"
	SchedulesFile     = "schedules.json"
)

var (
	ErrMissingFile = crerr.New("snapshot file missing")
	ErrParse       = crerr.New("snapshot file malformed")
)

// PlayerRecord is one row of players.json. Numeric fields arrive as strings
// from the scraper and may hold "N/A".
type PlayerRecord struct {
	PlayerID      string `json:"Player ID" validate:"required"`
	FirstName     string `json:"First Name"`
	LastName      string `json:"Last Name"`
	League        string `json:"League" validate:"required"`
	Club          string `json:"Club" validate:"required"`
	Series        string `json:"Series" validate:"required"`
	PTI           string `json:"PTI"`
	Wins          string `json:"Wins"`
	Losses        string `json:"Losses"`
	WinPercentage string `json:"Win %"`
	Captain       string `json:"Captain"`
}

// PlayerHistoryRecord is one row of player_history.json.
type PlayerHistoryRecord struct {
	PlayerID string          `json:"player_id" validate:"required"`
	LeagueID string          `json:"league_id"`
	Series   string          `json:"series"`
	Matches  []PTIMatchEntry `json:"matches"`
}

// PTIMatchEntry is one rating point inside a player history record.
type PTIMatchEntry struct {
	Date   string  `json:"date"`
	EndPTI float64 `json:"end_pti"`
	Series string  `json:"series"`
}

// MatchRecord is one row of match_history.json.
type MatchRecord struct {
	Date          string `json:"Date" validate:"required"`
	HomeTeam      string `json:"Home Team"`
	AwayTeam      string `json:"Away Team"`
	HomePlayer1ID string `json:"Home Player 1 ID"`
	HomePlayer2ID string `json:"Home Player 2 ID"`
	AwayPlayer1ID string `json:"Away Player 1 ID"`
	AwayPlayer2ID string `json:"Away Player 2 ID"`
	Scores        string `json:"Scores"`
	Winner        string `json:"Winner"`
	LeagueID      string `json:"league_id"`
}

// SeriesStatsRecord is one per-team standings row of series_stats.json.
type SeriesStatsRecord struct {
	Series   string       `json:"series" validate:"required"`
	Team     string       `json:"team" validate:"required"`
	LeagueID string       `json:"league_id"`
	Points   int          `json:"points"`
	Matches  MatchTotals  `json:"matches"`
	Lines    LineTotals   `json:"lines"`
	Sets     WonLostTally `json:"sets"`
	Games    WonLostTally `json:"games"`
}

type MatchTotals struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
	Tied int `json:"tied"`
}

type LineTotals struct {
	Won      int `json:"won"`
	Lost     int `json:"lost"`
	For      int `json:"for"`
	Returned int `json:"ret"`
}

type WonLostTally struct {
	Won  int `json:"won"`
	Lost int `json:"lost"`
}

// ScheduleRecord is one calendar row of schedules.json. Practice placeholder
// rows share this shape with real matches.
type ScheduleRecord struct {
	Date     string `json:"date" validate:"required"`
	Time     string `json:"time"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	Location string `json:"location"`
	League   string `json:"League"`
}

// Bundle holds the five decoded input files plus per-file counts of records
// that failed struct validation at load time.
type Bundle struct {
	Players       []PlayerRecord
	PlayerHistory []PlayerHistoryRecord
	Matches       []MatchRecord
	SeriesStats   []SeriesStatsRecord
	Schedules     []ScheduleRecord

	Rejected map[string]int
}

func (b Bundle) RejectedTotal() int {
	total := 0
	for _, n := range b.Rejected {
		total += n
	}
	return total
}

var dateLayouts = []string{"02-Jan-06", "2006-01-02", "1/2/2006", "01/02/2006"}

// ParseDate accepts the date spellings the scraper is known to emit.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ParseFloat reads a scraper numeric string, treating "", "N/A" and "n/a" as absent.
func ParseFloat(raw string) (float64, bool) {
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, "n/a") {
		return 0, false
	}
	value = strings.TrimSuffix(value, "%")
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// ParseInt reads a scraper integer string with the same absent-value rules as ParseFloat.
func ParseInt(raw string) (int, bool) {
	parsed, ok := ParseFloat(raw)
	if !ok {
		return 0, false
	}
	return int(parsed), true
}
