package usecase

import (
	"strings"

	"github.com/rallyhq/league-etl/internal/domain/etl"
)

// teamMatcher resolves preserved rows back onto the freshly written team
// table. Direct id hits come first; rows whose team id did not survive fall
// back to name matching.
type teamMatcher struct {
	lookup etl.TeamLookup

	// byNatural keys teams on club, series and league names so practices can
	// find their team's successor even when its id churned.
	byNatural map[string]int64

	// byBareName maps a league-agnostic team name to its id, for user rows
	// that only recorded the name. Ambiguous names resolve to nothing.
	byBareName map[string]int64
}

func newTeamMatcher(lookup etl.TeamLookup) *teamMatcher {
	m := &teamMatcher{
		lookup:     lookup,
		byNatural:  make(map[string]int64, len(lookup.Teams)),
		byBareName: make(map[string]int64, len(lookup.Teams)),
	}
	ambiguous := make(map[string]struct{})
	for _, t := range lookup.Teams {
		m.byNatural[naturalKey(t.ClubName, t.SeriesName, t.LeagueKey)] = t.ID
		name := bareNameKey(t.Name)
		if name == "" {
			continue
		}
		if _, taken := m.byBareName[name]; taken {
			ambiguous[name] = struct{}{}
			continue
		}
		m.byBareName[name] = t.ID
	}
	for name := range ambiguous {
		delete(m.byBareName, name)
	}
	return m
}

func naturalKey(club, series, leagueKey string) string {
	return bareNameKey(club) + "\x00" + bareNameKey(series) + "\x00" + leagueKey
}

func bareNameKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// matchPractice places one preserved practice row. Returns the resolved team
// id (nil when nothing matched) and which strategy won.
func (m *teamMatcher) matchPractice(p etl.PreservedPractice) (*int64, matchOutcome) {
	if p.TeamID != nil && m.lookup.Exists(*p.TeamID) {
		return p.TeamID, matchDirect
	}
	if p.ClubName != "" && p.SeriesName != "" {
		if id, ok := m.byNatural[naturalKey(p.ClubName, p.SeriesName, p.LeagueKey)]; ok {
			return &id, matchFallback
		}
	}
	return nil, matchUnresolved
}

// matchLink places one preserved user row. The stored team name is the only
// fallback key these rows carry.
func (m *teamMatcher) matchLink(l etl.PreservedLink) (int64, matchOutcome) {
	if m.lookup.Exists(l.TeamID) {
		return l.TeamID, matchDirect
	}
	if name := bareNameKey(l.TeamName); name != "" {
		if id, ok := m.byBareName[name]; ok {
			return id, matchFallback
		}
	}
	return 0, matchUnresolved
}

type matchOutcome int

const (
	matchDirect matchOutcome = iota
	matchFallback
	matchUnresolved
)
