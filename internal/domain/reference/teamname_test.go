package reference

import "testing"

func TestParseTeamName(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		club    string
		series  string
		matched bool
	}{
		{"dash separator", "Tennaqua - Chicago 22", "Tennaqua", "Chicago 22", true},
		{"dash with bare division", "Tennaqua - 22", "Tennaqua", "Chicago 22", true},
		{"dash with lettered division", "Birchwood - 2B", "Birchwood", "Chicago 2B", true},
		{"series suffix", "Wilmette S1", "Wilmette", "Series 1", true},
		{"series suffix with letter", "Winnetka S2B", "Winnetka", "Series 2B", true},
		{"number suffix", "Tennaqua 22", "Tennaqua", "Chicago 22", true},
		{"multi word club with number", "Lake Forest 7A", "Lake Forest", "Chicago 7A", true},
		{"no pattern", "Glen View", "Glen View", DefaultSeries, false},
		{"empty", "", "", DefaultSeries, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseTeamName(tc.input)
			if got.Club != tc.club || got.Series != tc.series || got.Matched != tc.matched {
				t.Fatalf("ParseTeamName(%q) = %+v, want club=%q series=%q matched=%t",
					tc.input, got, tc.club, tc.series, tc.matched)
			}
		})
	}
}

func TestIsPracticeEntry(t *testing.T) {
	if !IsPracticeEntry("Tennaqua Practice - Series 2B") {
		t.Fatal("expected practice entry with series to match")
	}
	if !IsPracticeEntry("Tennaqua Practice") {
		t.Fatal("expected practice entry without series to match")
	}
	if IsPracticeEntry("Tennaqua - Chicago 22") {
		t.Fatal("competitive team must not be a practice entry")
	}
}

func TestParsePracticeEntry(t *testing.T) {
	club, series, ok := ParsePracticeEntry("Tennaqua Practice - Series 2B")
	if !ok || club != "Tennaqua" || series != "Series 2B" {
		t.Fatalf("got club=%q series=%q ok=%t", club, series, ok)
	}

	club, series, ok = ParsePracticeEntry("Lake Forest Practice")
	if !ok || club != "Lake Forest" || series != "" {
		t.Fatalf("got club=%q series=%q ok=%t", club, series, ok)
	}

	if _, _, ok := ParsePracticeEntry("Wilmette S1"); ok {
		t.Fatal("non-practice name must not parse")
	}
}

func TestNormalizeLeagueID(t *testing.T) {
	cases := map[string]string{
		"APTA_CHICAGO":  "APTA_CHICAGO",
		"aptachicago":   "APTA_CHICAGO",
		"APTA":          "APTA_CHICAGO",
		"cnswpl":        "CNSWPL",
		"nstf":          "NSTF",
		"My New League": "MY_NEW_LEAGUE",
		"":              "",
	}
	for raw, want := range cases {
		if got := NormalizeLeagueID(raw); got != want {
			t.Errorf("NormalizeLeagueID(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestLeagueByID(t *testing.T) {
	known := LeagueByID("APTA_CHICAGO")
	if known.DisplayName != "APTA Chicago" || known.URL == "" {
		t.Fatalf("unexpected known league: %+v", known)
	}

	unknown := LeagueByID("MY_NEW_LEAGUE")
	if unknown.LeagueID != "MY_NEW_LEAGUE" || unknown.DisplayName != "MY_NEW_LEAGUE" {
		t.Fatalf("unexpected synthesized league: %+v", unknown)
	}
}
