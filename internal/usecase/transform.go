package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rallyhq/league-etl/internal/domain/etl"
	"github.com/rallyhq/league-etl/internal/domain/reference"
	"github.com/rallyhq/league-etl/internal/domain/snapshot"
)

// transformResult carries resolved rows plus per-row skip reasons. Skips are
// soft failures; the orchestrator aborts only when they pile up past the
// configured ceiling.
type transformResult[T any] struct {
	rows    []T
	skipped []string
}

func (r transformResult[T]) skipCount() int { return len(r.skipped) }

func buildPlayerRows(players []snapshot.PlayerRecord, ids etl.RefIDs, lookup etl.TeamLookup) transformResult[etl.PlayerRow] {
	var result transformResult[etl.PlayerRow]
	seen := make(map[etl.PlayerKey]struct{}, len(players))

	for _, p := range players {
		leagueKey := reference.NormalizeLeagueID(p.League)
		leagueID, ok := ids.Leagues[leagueKey]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("player %s: unknown league %q", p.PlayerID, p.League))
			continue
		}
		clubID, ok := ids.Clubs[strings.TrimSpace(p.Club)]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("player %s: unknown club %q", p.PlayerID, p.Club))
			continue
		}
		seriesID, ok := ids.Series[strings.TrimSpace(p.Series)]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("player %s: unknown series %q", p.PlayerID, p.Series))
			continue
		}

		key := etl.PlayerKey{
			TennisCoresID: p.PlayerID,
			LeagueID:      leagueID,
			ClubID:        clubID,
			SeriesID:      seriesID,
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		row := etl.PlayerRow{
			Key:       key,
			FirstName: strings.TrimSpace(p.FirstName),
			LastName:  strings.TrimSpace(p.LastName),
			Captain:   strings.TrimSpace(p.Captain),
		}
		if teamID, ok := resolveTeamByClubSeries(lookup, leagueKey, p.Club, p.Series); ok {
			row.TeamID = &teamID
		}
		if pti, ok := snapshot.ParseFloat(p.PTI); ok {
			row.PTI = &pti
		}
		if wins, ok := snapshot.ParseInt(p.Wins); ok {
			row.Wins = wins
		}
		if losses, ok := snapshot.ParseInt(p.Losses); ok {
			row.Losses = losses
		}
		if pct, ok := snapshot.ParseFloat(p.WinPercentage); ok {
			row.WinPercentage = &pct
		}
		result.rows = append(result.rows, row)
	}
	return result
}

// resolveTeamByClubSeries tries the canonical "<Club> - <Series>" spelling
// first and falls back to the "<Club> <division>" alias.
func resolveTeamByClubSeries(lookup etl.TeamLookup, leagueKey, club, series string) (int64, bool) {
	club = strings.TrimSpace(club)
	series = strings.TrimSpace(series)
	if club == "" || series == "" {
		return 0, false
	}
	if id, ok := lookup.Resolve(leagueKey, club+" - "+series); ok {
		return id, ok
	}
	fields := strings.Fields(series)
	if len(fields) == 0 {
		return 0, false
	}
	return lookup.Resolve(leagueKey, club+" "+fields[len(fields)-1])
}

// careerKey identifies a career aggregate. Career stats are per external
// player id and league, spanning every club/series row the player holds.
type careerKey struct {
	playerID string
	leagueID int64
}

// buildCareerStats aggregates win/loss careers from the full match history.
// A match with an unparseable league or no winner contributes nothing.
func buildCareerStats(matches []snapshot.MatchRecord, ids etl.RefIDs) map[careerKey]etl.CareerStats {
	out := make(map[careerKey]etl.CareerStats, 512)
	record := func(playerID string, leagueID int64, won bool) {
		playerID = strings.TrimSpace(playerID)
		if playerID == "" {
			return
		}
		key := careerKey{playerID: playerID, leagueID: leagueID}
		stats := out[key]
		stats.Matches++
		if won {
			stats.Wins++
		} else {
			stats.Losses++
		}
		if stats.Matches > 0 {
			stats.WinPercentage = float64(stats.Wins) / float64(stats.Matches) * 100
		}
		out[key] = stats
	}

	for _, m := range matches {
		leagueKey := reference.NormalizeLeagueID(m.LeagueID)
		leagueID, ok := ids.Leagues[leagueKey]
		if !ok {
			continue
		}
		winner := strings.ToLower(strings.TrimSpace(m.Winner))
		if winner != "home" && winner != "away" {
			continue
		}
		homeWon := winner == "home"
		record(m.HomePlayer1ID, leagueID, homeWon)
		record(m.HomePlayer2ID, leagueID, homeWon)
		record(m.AwayPlayer1ID, leagueID, !homeWon)
		record(m.AwayPlayer2ID, leagueID, !homeWon)
	}
	return out
}

// historyAnchors maps each (external player id, league) pair to one player
// row id so PTI history has a stable attachment point. When a player holds
// several club/series rows the smallest key wins, which keeps reruns
// deterministic.
func historyAnchors(playerIDs map[etl.PlayerKey]int64) map[careerKey]int64 {
	keys := make([]etl.PlayerKey, 0, len(playerIDs))
	for key := range playerIDs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.TennisCoresID != b.TennisCoresID {
			return a.TennisCoresID < b.TennisCoresID
		}
		if a.LeagueID != b.LeagueID {
			return a.LeagueID < b.LeagueID
		}
		if a.ClubID != b.ClubID {
			return a.ClubID < b.ClubID
		}
		return a.SeriesID < b.SeriesID
	})

	out := make(map[careerKey]int64, len(keys))
	for _, key := range keys {
		anchor := careerKey{playerID: key.TennisCoresID, leagueID: key.LeagueID}
		if _, ok := out[anchor]; !ok {
			out[anchor] = playerIDs[key]
		}
	}
	return out
}

func buildHistoryRows(history []snapshot.PlayerHistoryRecord, ids etl.RefIDs, anchors map[careerKey]int64) transformResult[etl.HistoryRow] {
	var result transformResult[etl.HistoryRow]
	for _, record := range history {
		leagueKey := reference.NormalizeLeagueID(record.LeagueID)
		leagueID, ok := ids.Leagues[leagueKey]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("history %s: unknown league %q", record.PlayerID, record.LeagueID))
			continue
		}
		playerID, ok := anchors[careerKey{playerID: strings.TrimSpace(record.PlayerID), leagueID: leagueID}]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("history %s: no player row in league %q", record.PlayerID, record.LeagueID))
			continue
		}
		for _, entry := range record.Matches {
			date, err := snapshot.ParseDate(entry.Date)
			if err != nil {
				result.skipped = append(result.skipped, fmt.Sprintf("history %s: %v", record.PlayerID, err))
				continue
			}
			series := strings.TrimSpace(entry.Series)
			if series == "" {
				series = strings.TrimSpace(record.Series)
			}
			result.rows = append(result.rows, etl.HistoryRow{
				PlayerID: playerID,
				LeagueID: leagueID,
				Series:   series,
				Date:     date,
				EndPTI:   entry.EndPTI,
			})
		}
	}
	return result
}

func buildMatchRows(matches []snapshot.MatchRecord, ids etl.RefIDs, lookup etl.TeamLookup) transformResult[etl.MatchRow] {
	var result transformResult[etl.MatchRow]
	for _, m := range matches {
		leagueKey := reference.NormalizeLeagueID(m.LeagueID)
		leagueID, ok := ids.Leagues[leagueKey]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("match %s vs %s: unknown league %q", m.HomeTeam, m.AwayTeam, m.LeagueID))
			continue
		}
		date, err := snapshot.ParseDate(m.Date)
		if err != nil {
			result.skipped = append(result.skipped, fmt.Sprintf("match %s vs %s: %v", m.HomeTeam, m.AwayTeam, err))
			continue
		}
		row := etl.MatchRow{
			Date:          date,
			HomeTeam:      strings.TrimSpace(m.HomeTeam),
			AwayTeam:      strings.TrimSpace(m.AwayTeam),
			HomePlayer1ID: strings.TrimSpace(m.HomePlayer1ID),
			HomePlayer2ID: strings.TrimSpace(m.HomePlayer2ID),
			AwayPlayer1ID: strings.TrimSpace(m.AwayPlayer1ID),
			AwayPlayer2ID: strings.TrimSpace(m.AwayPlayer2ID),
			Scores:        strings.TrimSpace(m.Scores),
			Winner:        strings.TrimSpace(m.Winner),
			LeagueID:      leagueID,
		}
		if id, ok := lookup.Resolve(leagueKey, row.HomeTeam); ok {
			row.HomeTeamID = &id
		}
		if id, ok := lookup.Resolve(leagueKey, row.AwayTeam); ok {
			row.AwayTeamID = &id
		}
		result.rows = append(result.rows, row)
	}
	return result
}

func buildSeriesStatsRows(stats []snapshot.SeriesStatsRecord, ids etl.RefIDs, lookup etl.TeamLookup) transformResult[etl.SeriesStatsRow] {
	var result transformResult[etl.SeriesStatsRow]
	for _, s := range stats {
		leagueKey := reference.NormalizeLeagueID(s.LeagueID)
		leagueID, ok := ids.Leagues[leagueKey]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("series stats %s: unknown league %q", s.Team, s.LeagueID))
			continue
		}
		row := etl.SeriesStatsRow{
			Series:      strings.TrimSpace(s.Series),
			Team:        strings.TrimSpace(s.Team),
			LeagueID:    leagueID,
			Points:      s.Points,
			MatchesWon:  s.Matches.Won,
			MatchesLost: s.Matches.Lost,
			MatchesTied: s.Matches.Tied,
			LinesWon:    s.Lines.Won,
			LinesLost:   s.Lines.Lost,
			LinesFor:    s.Lines.For,
			LinesRet:    s.Lines.Returned,
			SetsWon:     s.Sets.Won,
			SetsLost:    s.Sets.Lost,
			GamesWon:    s.Games.Won,
			GamesLost:   s.Games.Lost,
		}
		if id, ok := lookup.Resolve(leagueKey, row.Team); ok {
			row.TeamID = &id
		}
		result.rows = append(result.rows, row)
	}
	return result
}

// buildScheduleRows maps calendar rows. Practice placeholders in the input
// are dropped here; practices are user-owned and flow back in through the
// restore phase instead, so importing them twice would duplicate rows.
func buildScheduleRows(schedules []snapshot.ScheduleRecord, ids etl.RefIDs, lookup etl.TeamLookup) transformResult[etl.ScheduleRow] {
	var result transformResult[etl.ScheduleRow]
	for _, s := range schedules {
		if reference.IsPracticeEntry(s.HomeTeam) {
			continue
		}
		leagueKey := reference.NormalizeLeagueID(s.League)
		leagueID, ok := ids.Leagues[leagueKey]
		if !ok {
			result.skipped = append(result.skipped, fmt.Sprintf("schedule %s vs %s: unknown league %q", s.HomeTeam, s.AwayTeam, s.League))
			continue
		}
		date, err := snapshot.ParseDate(s.Date)
		if err != nil {
			result.skipped = append(result.skipped, fmt.Sprintf("schedule %s vs %s: %v", s.HomeTeam, s.AwayTeam, err))
			continue
		}
		row := etl.ScheduleRow{
			Date:     date,
			Time:     strings.TrimSpace(s.Time),
			HomeTeam: strings.TrimSpace(s.HomeTeam),
			AwayTeam: strings.TrimSpace(s.AwayTeam),
			Location: strings.TrimSpace(s.Location),
			LeagueID: leagueID,
		}
		if id, ok := lookup.Resolve(leagueKey, row.HomeTeam); ok {
			row.HomeTeamID = &id
		}
		if row.AwayTeam != "" {
			if id, ok := lookup.Resolve(leagueKey, row.AwayTeam); ok {
				row.AwayTeamID = &id
			}
		}
		result.rows = append(result.rows, row)
	}
	return result
}
