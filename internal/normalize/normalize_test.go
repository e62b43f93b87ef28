package normalize

import "testing"

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		pass  int
		want  string
	}{
		{"ignored term in parens", "Song (Album Version)", 0, "Song "},
		{"ignored feat credit", "Song (feat. Someone)", 0, "Song "},
		{"plain name untouched", "Song", 0, "Song"},
		{"mix span kept on first pass", "Song (Radio Mix)", 0, "Song (Radio Mix)"},
		{"mix span collapsed on second pass", "Song (Radio Mix)", 1, "Song mix"},
		{"remix span collapsed on second pass", "Song (Club Remix)", 1, "Song remix"},
		{"everything dropped on third pass", "Song (Radio Mix)", 2, "Song "},
		{"dash suffix dropped on third pass", "Song - Live at Wembley", 2, "Song"},
		{"passes beyond third behave like third", "Song (Radio Mix)", 7, "Song "},
		{"dash suffix with ignored term", "Song - Single Version", 0, "Song"},
		{"multiple spans", "Song (Album Version) (feat. Someone)", 0, "Song  "},
		{"nested span inside dash suffix", "Song - Live (Bonus)", 0, "Song - Live "},
		{"commas stripped", "Love, Hate, Love", 0, "Love Hate Love"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanQuery(tt.query, tt.pass)
			if got != tt.want {
				t.Errorf("CleanQuery(%q, %d) = %q, want %q", tt.query, tt.pass, got, tt.want)
			}
		})
	}
}

func TestCleanQueryIdempotent(t *testing.T) {
	// From pass 2 on, cleanup must be a fixpoint: re-cleaning an already
	// cleaned name changes nothing, even when deleting a parenthesized span
	// exposes a fresh dash annotation.
	inputs := []string{
		"Song (Live) - 2011 Remaster (Deluxe)",
		"Song (Radio Mix) - Single Version",
		"Song (x)- Acoustic",
		"Song - Live at Wembley",
		"Plain Song",
		"Love, Hate, Love (Demo)",
	}

	for _, pass := range []int{2, 5, 8} {
		for _, input := range inputs {
			once := CleanQuery(input, pass)
			twice := CleanQuery(once, pass)
			if once != twice {
				t.Errorf("CleanQuery(%q, %d) not stable: %q then %q", input, pass, once, twice)
			}
		}
	}
}

func TestQuery(t *testing.T) {
	const (
		name   = "Song (Album Version)"
		artist = "The Band"
		album  = "Greatest Hits, Vol. 2"
	)

	tests := []struct {
		pass int
		want string
	}{
		{0, "Song  The Band"},
		{3, "song  the band"},
		{4, "The Band Greatest Hits Vol. 2"},
		{5, "Song  Greatest Hits Vol. 2"},
		{6, "The Band"},
		{7, "Greatest Hits Vol. 2"},
		{8, "Song "},
	}

	for _, tt := range tests {
		got := Query(name, artist, album, tt.pass)
		if got != tt.want {
			t.Errorf("Query(pass %d) = %q, want %q", tt.pass, got, tt.want)
		}
	}
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Song (Album Version)", "song"},
		{"Héroes (En Vivo)", "heroes (en vivo)"},
		{"Song - 2011 Remaster", "song"},
		{"Song", "song"},
	}

	for _, tt := range tests {
		got := MatchName(tt.name)
		if got != tt.want {
			t.Errorf("MatchName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestArtistName(t *testing.T) {
	tests := []struct {
		artist string
		want   string
	}{
		{"TR/ST", "trst"},
		{"Simon & Garfunkel", "simonandgarfunkel"},
		{"Beyoncé", "beyonce"},
		{"blink-182", "blink182"},
		{"Sigur Rós", "sigurros"},
	}

	for _, tt := range tests {
		got := ArtistName(tt.artist)
		if got != tt.want {
			t.Errorf("ArtistName(%q) = %q, want %q", tt.artist, got, tt.want)
		}
	}
}
