package reference

// League is a competition source, keyed by its normalized league id.
type League struct {
	LeagueID    string
	DisplayName string
	URL         string
}

// Club is a physical club derived from player records, keyed by name.
type Club struct {
	Name string
}

// Series is a competitive division derived from player records, keyed by name.
type Series struct {
	Name string
}

// Team is the composite of a club fielding a roster in a series within a
// league. (Club, Series, LeagueID) is the natural key that keeps the surrogate
// team id stable across imports.
type Team struct {
	Club     string
	Series   string
	LeagueID string
	Name     string
	Alias    string
}

func (t Team) Key() TeamKey {
	return TeamKey{Club: t.Club, Series: t.Series, LeagueID: t.LeagueID}
}

// TeamKey is the comparable form of the team natural key.
type TeamKey struct {
	Club     string
	Series   string
	LeagueID string
}

// ClubLeague is one club-to-league membership pair.
type ClubLeague struct {
	Club     string
	LeagueID string
}

// SeriesLeague is one series-to-league membership pair.
type SeriesLeague struct {
	Series   string
	LeagueID string
}
