package reference

import "strings"

// Known league metadata, keyed by normalized id. Snapshots occasionally spell
// league ids the way the source site does, so normalization goes through the
// alias table first.
var knownLeagues = map[string]League{
	"APTA_CHICAGO": {
		LeagueID:    "APTA_CHICAGO",
		DisplayName: "APTA Chicago",
		URL:         "https://aptachicago.tenniscores.com",
	},
	"APTA_NATIONAL": {
		LeagueID:    "APTA_NATIONAL",
		DisplayName: "APTA National",
		URL:         "https://apta.tenniscores.com",
	},
	"NSTF": {
		LeagueID:    "NSTF",
		DisplayName: "North Shore Tennis Foundation",
		URL:         "https://nstf.org",
	},
	"CNSWPL": {
		LeagueID:    "CNSWPL",
		DisplayName: "Chicago North Shore Women's Platform Tennis League",
		URL:         "https://cnswpl.tenniscores.com",
	},
	"CITA": {
		LeagueID:    "CITA",
		DisplayName: "Chicago Industrial Tennis Association",
		URL:         "https://cita.tenniscores.com",
	},
}

var leagueAliases = map[string]string{
	"aptachicago":  "APTA_CHICAGO",
	"apta_chicago": "APTA_CHICAGO",
	"apta":         "APTA_CHICAGO",
	"aptanational": "APTA_NATIONAL",
	"nstf":         "NSTF",
	"cnswpl":       "CNSWPL",
	"cita":         "CITA",
}

// NormalizeLeagueID maps a raw league string from a snapshot to its canonical
// id. Unknown leagues fold to an upper-snake spelling of the raw value so a
// new league does not silently disappear from the import.
func NormalizeLeagueID(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if canonical, ok := leagueAliases[strings.ToLower(value)]; ok {
		return canonical
	}
	if _, ok := knownLeagues[strings.ToUpper(value)]; ok {
		return strings.ToUpper(value)
	}
	folded := strings.ToUpper(strings.Join(strings.Fields(value), "_"))
	return folded
}

// LeagueByID resolves metadata for a normalized id, synthesizing a display
// name for leagues outside the known table.
func LeagueByID(leagueID string) League {
	if l, ok := knownLeagues[leagueID]; ok {
		return l
	}
	return League{LeagueID: leagueID, DisplayName: leagueID}
}
