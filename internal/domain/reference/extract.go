package reference

import (
	"sort"
	"strings"

	"github.com/rallyhq/league-etl/internal/domain/snapshot"
)

// ExtractLeagues derives the deduplicated league set from player records.
func ExtractLeagues(players []snapshot.PlayerRecord) []League {
	seen := make(map[string]struct{}, 4)
	out := make([]League, 0, 4)
	for _, p := range players {
		id := NormalizeLeagueID(p.League)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, LeagueByID(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeagueID < out[j].LeagueID })
	return out
}

// ExtractClubs derives the deduplicated club set from player records.
func ExtractClubs(players []snapshot.PlayerRecord) []Club {
	seen := make(map[string]struct{}, 64)
	out := make([]Club, 0, 64)
	for _, p := range players {
		name := strings.TrimSpace(p.Club)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, Club{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ExtractSeries derives the deduplicated series set from player records.
func ExtractSeries(players []snapshot.PlayerRecord) []Series {
	seen := make(map[string]struct{}, 64)
	out := make([]Series, 0, 64)
	for _, p := range players {
		name := strings.TrimSpace(p.Series)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, Series{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TeamExtraction is the result of scanning stats and schedule records for
// teams. Unparsed holds composite names that hit the fallback branch of
// ParseTeamName so the caller can log the misclassifications.
type TeamExtraction struct {
	Teams    []Team
	Unparsed []string
}

// ExtractTeams scans both series stats and schedule records. Teams can appear
// in either source; schedules contribute teams that sat out the standings
// (bye weeks), and practice placeholder rows are excluded.
func ExtractTeams(stats []snapshot.SeriesStatsRecord, schedules []snapshot.ScheduleRecord) TeamExtraction {
	seen := make(map[TeamKey]struct{}, 256)
	unparsedSeen := make(map[string]struct{})
	var result TeamExtraction

	add := func(name, leagueRaw string) {
		name = strings.TrimSpace(name)
		if name == "" || IsPracticeEntry(name) {
			return
		}
		leagueID := NormalizeLeagueID(leagueRaw)
		if leagueID == "" {
			return
		}
		parsed := ParseTeamName(name)
		if !parsed.Matched {
			if _, ok := unparsedSeen[name]; !ok {
				unparsedSeen[name] = struct{}{}
				result.Unparsed = append(result.Unparsed, name)
			}
		}
		team := Team{
			Club:     parsed.Club,
			Series:   parsed.Series,
			LeagueID: leagueID,
			Name:     name,
			Alias:    teamAlias(parsed),
		}
		if _, ok := seen[team.Key()]; ok {
			return
		}
		seen[team.Key()] = struct{}{}
		result.Teams = append(result.Teams, team)
	}

	for _, row := range stats {
		add(row.Team, row.LeagueID)
	}
	for _, row := range schedules {
		add(row.HomeTeam, row.League)
		add(row.AwayTeam, row.League)
	}

	sort.Slice(result.Teams, func(i, j int) bool {
		a, b := result.Teams[i], result.Teams[j]
		if a.LeagueID != b.LeagueID {
			return a.LeagueID < b.LeagueID
		}
		if a.Club != b.Club {
			return a.Club < b.Club
		}
		return a.Series < b.Series
	})
	return result
}

// teamAlias renders the alternate "<Club> <division>" spelling used as a
// secondary match key when schedules and stats disagree on formatting.
func teamAlias(parsed ParsedTeam) string {
	if !parsed.Matched {
		return ""
	}
	fields := strings.Fields(parsed.Series)
	if len(fields) == 0 {
		return ""
	}
	division := fields[len(fields)-1]
	return parsed.Club + " " + division
}

// ClubLeagues builds the club-to-league membership pairs from player records.
func ClubLeagues(players []snapshot.PlayerRecord) []ClubLeague {
	seen := make(map[ClubLeague]struct{}, 128)
	out := make([]ClubLeague, 0, 128)
	for _, p := range players {
		pair := ClubLeague{
			Club:     strings.TrimSpace(p.Club),
			LeagueID: NormalizeLeagueID(p.League),
		}
		if pair.Club == "" || pair.LeagueID == "" {
			continue
		}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LeagueID != out[j].LeagueID {
			return out[i].LeagueID < out[j].LeagueID
		}
		return out[i].Club < out[j].Club
	})
	return out
}

// SeriesLeagues builds the series-to-league membership pairs from player records.
func SeriesLeagues(players []snapshot.PlayerRecord) []SeriesLeague {
	seen := make(map[SeriesLeague]struct{}, 128)
	out := make([]SeriesLeague, 0, 128)
	for _, p := range players {
		pair := SeriesLeague{
			Series:   strings.TrimSpace(p.Series),
			LeagueID: NormalizeLeagueID(p.League),
		}
		if pair.Series == "" || pair.LeagueID == "" {
			continue
		}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LeagueID != out[j].LeagueID {
			return out[i].LeagueID < out[j].LeagueID
		}
		return out[i].Series < out[j].Series
	})
	return out
}
