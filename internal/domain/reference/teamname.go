package reference

import (
	"regexp"
	"strings"
)

// DefaultSeries is assigned when no pattern matches a composite team name.
const DefaultSeries = "Series 1"

var (
	practicePattern     = regexp.MustCompile(`^(.+?)\s+Practice(?:\s*-\s*(.+))?$`)
	seriesSuffixPattern = regexp.MustCompile(`^(.+?)\s+S(\d+[A-Za-z]*)$`)
	numberSuffixPattern = regexp.MustCompile(`^(.+?)\s+(\d+[A-Za-z]*)$`)
	bareDivisionPattern = regexp.MustCompile(`^\d+[A-Za-z]*$`)
)

// ParsedTeam is the club/series decomposition of a composite team name.
type ParsedTeam struct {
	Club   string
	Series string
	// Matched is false when the fallback branch fired; callers log those
	// names instead of accepting the guess silently.
	Matched bool
}

// ParseTeamName decomposes a composite team-name string into club and series.
// Recognized patterns, tried in order:
//
//	"Club - Series"     e.g. "Tennaqua - Chicago 22"
//	"Club SNumber"      e.g. "Wilmette S1" -> series "Series 1"
//	"Club Number"       e.g. "Tennaqua 22" -> series "Chicago 22" (APTA spelling)
//
// Anything else falls back to the whole string as club with DefaultSeries.
func ParseTeamName(name string) ParsedTeam {
	value := strings.TrimSpace(name)
	if value == "" {
		return ParsedTeam{Series: DefaultSeries}
	}

	if idx := strings.Index(value, " - "); idx > 0 {
		club := strings.TrimSpace(value[:idx])
		series := strings.TrimSpace(value[idx+3:])
		if club != "" && series != "" {
			return ParsedTeam{Club: club, Series: normalizeSeriesToken(series), Matched: true}
		}
	}

	if m := seriesSuffixPattern.FindStringSubmatch(value); m != nil {
		return ParsedTeam{Club: strings.TrimSpace(m[1]), Series: "Series " + m[2], Matched: true}
	}

	if m := numberSuffixPattern.FindStringSubmatch(value); m != nil {
		return ParsedTeam{Club: strings.TrimSpace(m[1]), Series: "Chicago " + m[2], Matched: true}
	}

	return ParsedTeam{Club: value, Series: DefaultSeries}
}

func normalizeSeriesToken(token string) string {
	// Bare numeric tokens after a dash are APTA divisions ("Tennaqua - 22").
	if bareDivisionPattern.MatchString(token) {
		return "Chicago " + token
	}
	return token
}

// IsPracticeEntry reports whether a schedule home_team value is a
// user-managed practice placeholder rather than a competitive team.
func IsPracticeEntry(homeTeam string) bool {
	return practicePattern.MatchString(strings.TrimSpace(homeTeam))
}

// ParsePracticeEntry extracts the owning club and series from a practice
// placeholder ("<Club> Practice - <Series>"). Series may be absent in older
// snapshots.
func ParsePracticeEntry(homeTeam string) (club, series string, ok bool) {
	m := practicePattern.FindStringSubmatch(strings.TrimSpace(homeTeam))
	if m == nil {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}
