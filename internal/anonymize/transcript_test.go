package anonymize

import "testing"

func TestPlayerNames(t *testing.T) {
	names := playerNames([]string{
		"|j|☆Annika",
		"|player|p1|Annika|cynthia|1400",
		"|player|p2|Rust Hater|cynthia|1100",
		"|player|p2|",
		"|player|p3|Someone|1",
	})
	if len(names[0]) != 1 || names[0][0] != "Annika" {
		t.Errorf("p1 names = %v", names[0])
	}
	if len(names[1]) != 1 || names[1][0] != "Rust Hater" {
		t.Errorf("p2 names = %v", names[1])
	}
}

func TestRewriteLine(t *testing.T) {
	pm, err := newPseudonymMap([2][]string{{"Annika", "annika"}, {"Rust Hater", "rusthater"}}, sequence("anonA", "anonB"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		line string
		safe bool
		want string
	}{
		{"join", "|j|☆Annika", false, "|j|☆anonA"},
		{"chat", "|c|☆Rust Hater|gg annika", false, "|c|☆anonB|gg anonA"},
		{"player keeps rating", "|player|p1|Annika|cynthia|1400", false, "|player|p1|anonA|cynthia|1400"},
		{"player safe", "|player|p1|Annika|cynthia|1400", true, "|player|p1|anonA|cynthia|"},
		{"player without rating", "|player|p1|Annika|cynthia", true, "|player|p1|anonA|cynthia"},
		{"timestamp", "|t:|1632906000", false, "|t:|1632906000"},
		{"timestamp safe", "|t:|1632906000", true, "|t:|0"},
		{"raw rating safe", "|raw|Annika's rating: 1400 &rarr; 1420", true, "|raw|" + ratingSentinel},
		{"raw other safe", "|raw|Annika used a move", true, "|raw|anonA used a move"},
		{"command untouched", "|annika|annika", false, "|annika|anonA"},
		{"input log", `>player p1 {"name":"Annika"}`, false, `>player p1 {"name":"anonA"}`},
		{"empty", "", true, ""},
		{"bare delimiter", "|", true, "|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteLine(tt.line, pm, tt.safe); got != tt.want {
				t.Errorf("rewriteLine(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func TestRewriteLine_ShortNames(t *testing.T) {
	pm, err := newPseudonymMap([2][]string{{"p1"}, {"Al", "al"}}, sequence("anonA", "anonB"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		line string
		want string
	}{
		{"player slot kept", "|player|p1|p1|cynthia|1400", "|player|p1|anonA|cynthia|1400"},
		{"other player", "|player|p2|Al|cynthia|1100", "|player|p2|anonB|cynthia|1100"},
		{"teamsize", "|teamsize|p1|6", "|teamsize|p1|6"},
		{"poke", "|poke|p1|Alakazam, L84|", "|poke|p1|Alakazam, L84|"},
		{"switch", "|switch|p1a: Alakazam|Alakazam, L84|100/100", "|switch|p1a: Alakazam|Alakazam, L84|100/100"},
		{"move", "|move|p1a: Al|Psychic|p2a: Al", "|move|p1a: anonB|Psychic|p2a: anonB"},
		{"of position", "|-damage|p2a: Al|50/100|[from] item: Rocky Helmet|[of] p1a: p1", "|-damage|p2a: anonB|50/100|[from] item: Rocky Helmet|[of] p1a: anonA"},
		{"side condition", "|-sidestart|p1: p1|move: Stealth Rock", "|-sidestart|p1: anonA|move: Stealth Rock"},
		{"join", "|j|☆Al", "|j|☆anonB"},
		{"win", "|win|p1", "|win|anonA"},
		{"chat", "|c|☆p1|my Alakazam beats al", "|c|☆anonA|my Alakazam beats anonB"},
		{"input player", `>player p1 {"name":"p1"}`, `>player p1 {"name":"anonA"}`},
		{"input choice", ">p1 move 1", ">p1 move 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteLine(tt.line, pm, false); got != tt.want {
				t.Errorf("rewriteLine(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}
