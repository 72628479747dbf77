package anonymize

import (
	"errors"
	"strings"
	"testing"

	"github.com/olegiv/battlelog-tools-go/internal/battlelog/battlelogtest"
	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var sampleNames = []string{"annika", "rusthater", "rust hater"}

func anonymize(t *testing.T, a *Anonymizer, raw []byte, fileName string) *Output {
	t.Helper()
	out, err := a.Anonymize(raw, fileName)
	if err != nil {
		t.Fatalf("Anonymize failed: %v", err)
	}
	if !gjson.ValidBytes(out.JSON) {
		t.Fatalf("output is not valid JSON: %s", out.JSON)
	}
	return out
}

func assertNoNames(t *testing.T, doc []byte, names ...string) {
	t.Helper()
	lower := strings.ToLower(string(doc))
	for _, name := range names {
		if strings.Contains(lower, name) {
			t.Errorf("output still contains %q:\n%s", name, doc)
		}
	}
}

func TestAnonymize_RemovesNames(t *testing.T) {
	for _, safe := range []bool{false, true} {
		out := anonymize(t, &Anonymizer{Safe: safe}, battlelogtest.Sample().JSON(), "battle-gen8randombattle-1.log.json")
		assertNoNames(t, out.JSON, sampleNames...)
	}
}

func TestAnonymize_MessyNames(t *testing.T) {
	out := anonymize(t, &Anonymizer{}, []byte(battlelogtest.Messy), "battle-gen8randombattle-1.log.json")
	assertNoNames(t, out.JSON, "annika", "rust hater", "rusthater")

	doc := gjson.ParseBytes(out.JSON)
	p2 := doc.Get("p2").String()
	if got := doc.Get("p2rating.userid").String(); got != p2 {
		t.Errorf("p2rating.userid = %q, want %q", got, p2)
	}
	if got := doc.Get("log.1").String(); got != "|j|☆"+p2 {
		t.Errorf("join line = %q, want the p2 pseudonym", got)
	}
	if got := doc.Get("log.3").String(); got != "|player|p2|"+p2+"|cynthia|1100" {
		t.Errorf("player line = %q", got)
	}
}

func TestAnonymize_ConsistentWithinFile(t *testing.T) {
	out := anonymize(t, &Anonymizer{}, battlelogtest.Sample().JSON(), "x.log.json")
	doc := gjson.ParseBytes(out.JSON)

	p1, p2 := doc.Get("p1").String(), doc.Get("p2").String()
	if p1 == p2 {
		t.Fatalf("both players got pseudonym %q", p1)
	}
	for _, p := range []string{p1, p2} {
		if !strings.HasPrefix(p, pseudonymPrefix) || len(p) != len(pseudonymPrefix)+2*pseudonymRandomLength {
			t.Errorf("pseudonym %q has unexpected shape", p)
		}
	}

	checks := map[string]string{
		"winner":           p1,
		"p1rating.userid":  p1,
		"p2rating.userid":  p2,
		"log.0":            "|j|☆" + p1,
		"log.1":            "|j|☆" + p2,
		"log.3":            "|player|p1|" + p1 + "|cynthia|1400",
		"log.12":           "|c|☆" + p1 + "|gl hf " + p2,
		"log.14":           "|win|" + p1,
		"log.16":           "|l|☆" + p2,
		"p1team.0.name":    p1 + "'s pet",
		"p1team.0.species": "Rotom-Fan",
	}
	for path, want := range checks {
		if got := doc.Get(path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if got := doc.Get("inputLog.1").String(); !strings.Contains(got, `"name":"`+p1+`"`) {
		t.Errorf("inputLog.1 = %q, want p1 pseudonym", got)
	}
}

func TestAnonymize_ShortPlayerNames(t *testing.T) {
	extra := []string{
		"|switch|p1a: Alakazam|Alakazam, L84|100/100",
		"|move|p1a: Alakazam|Psychic|p2a: Drednaw",
	}

	for _, name := range []string{"Al", "p1"} {
		t.Run(name, func(t *testing.T) {
			b := battlelogtest.Sample()
			b.P1 = name
			b.Winner = name
			b.P1Team = []string{"Rotom-Fan", "Alakazam", "Regirock"}
			raw := b.JSON()
			for _, line := range extra {
				var err error
				if raw, err = sjson.SetBytes(raw, "log.-1", line); err != nil {
					t.Fatal(err)
				}
			}

			doc := gjson.ParseBytes(anonymize(t, &Anonymizer{}, raw, "x.log.json").JSON)
			p1 := doc.Get("p1").String()
			if strings.Contains(strings.ToLower(p1), strings.ToLower(name)) {
				t.Errorf("pseudonym %q contains the name", p1)
			}

			checks := map[string]string{
				"log.3":         "|player|p1|" + p1 + "|cynthia|1400",
				"log.5":         "|teamsize|p1|3",
				"log.17":        extra[0],
				"log.18":        extra[1],
				"p1team.0.name": p1 + "'s pet",
				"p1team.1.name": "Alakazam",
			}
			for path, want := range checks {
				if got := doc.Get(path).String(); got != want {
					t.Errorf("%s = %q, want %q", path, got, want)
				}
			}
			if got := doc.Get("inputLog.1").String(); !strings.HasPrefix(got, `>player p1 {"name":"`+p1+`"`) {
				t.Errorf("inputLog.1 = %q", got)
			}
		})
	}
}

func TestAnonymize_PreservesTranscriptStructure(t *testing.T) {
	raw := battlelogtest.Sample().JSON()
	original := gjson.GetBytes(raw, "log").Array()

	for _, safe := range []bool{false, true} {
		out := anonymize(t, &Anonymizer{Safe: safe}, raw, "x.log.json")
		rewritten := gjson.GetBytes(out.JSON, "log").Array()
		if len(rewritten) != len(original) {
			t.Fatalf("safe=%v: %d lines, want %d", safe, len(rewritten), len(original))
		}
		for i := range original {
			before := strings.Count(original[i].String(), "|")
			after := strings.Count(rewritten[i].String(), "|")
			if before != after {
				t.Errorf("safe=%v line %d: %d delimiters, want %d (%q)", safe, i, after, before, rewritten[i].String())
			}
			cmd := strings.SplitN(original[i].String(), "|", 3)[1]
			if got := strings.SplitN(rewritten[i].String(), "|", 3)[1]; got != cmd {
				t.Errorf("line %d command %q changed to %q", i, cmd, got)
			}
		}
	}
}

func TestAnonymize_IndependentRuns(t *testing.T) {
	raw := battlelogtest.Sample().JSON()
	a := &Anonymizer{}
	first := gjson.ParseBytes(anonymize(t, a, raw, "x.log.json").JSON)
	second := gjson.ParseBytes(anonymize(t, a, raw, "x.log.json").JSON)

	if first.Get("p1").String() == second.Get("p1").String() {
		t.Error("p1 got the same pseudonym in two runs")
	}
	if first.Get("p2").String() == second.Get("p2").String() {
		t.Error("p2 got the same pseudonym in two runs")
	}
}

func TestAnonymize_Redaction(t *testing.T) {
	b := battlelogtest.Sample()
	raw := []byte(strings.Replace(string(b.JSON()), `"battle-gen8randombattle-1"`, `"battle-gen8randombattle-1-secretpw"`, 1))

	t.Run("always", func(t *testing.T) {
		doc := gjson.ParseBytes(anonymize(t, &Anonymizer{}, raw, "x.log.json").JSON)
		if doc.Get("comment").Exists() {
			t.Error("comment not removed")
		}
		if got := doc.Get("roomid").String(); got != "battle-gen8randombattle-1" {
			t.Errorf("roomid = %q", got)
		}
		if got := doc.Get("p1rating.elo").Float(); got != b.P1Elo {
			t.Errorf("p1rating.elo = %v, should be kept outside safe mode", got)
		}
		if got := doc.Get("timestamp").String(); got != b.Timestamp {
			t.Errorf("timestamp = %q, should be kept outside safe mode", got)
		}
	})

	t.Run("safe", func(t *testing.T) {
		doc := gjson.ParseBytes(anonymize(t, &Anonymizer{Safe: true}, raw, "x.log.json").JSON)
		p1 := doc.Get("p1").String()

		raws := map[string]string{
			"p1rating.elo":    "0",
			"p1rating.r":      "0",
			"p1rating.l":      "0",
			"p1rating.w":      `"0"`,
			"p1rating.oldelo": `"0"`,
			"p2rating.rptime": "0",
		}
		for path, want := range raws {
			if got := doc.Get(path).Raw; got != want {
				t.Errorf("%s = %s, want %s", path, got, want)
			}
		}
		if got := doc.Get("p1rating.userid").String(); got != p1 {
			t.Errorf("p1rating.userid = %q, want pseudonym", got)
		}
		if got := doc.Get("timestamp").String(); got != sentinelTimestamp {
			t.Errorf("timestamp = %q", got)
		}
		lines := map[string]string{
			"log.2":  "|t:|0",
			"log.3":  "|player|p1|" + p1 + "|cynthia|",
			"log.15": "|raw|" + ratingSentinel,
		}
		for path, want := range lines {
			if got := doc.Get(path).String(); got != want {
				t.Errorf("%s = %q, want %q", path, got, want)
			}
		}
	})
}

func TestAnonymize_RejectsInvalidLogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"foreign winner", `{"p1":"Annika","p2":"RustHater","winner":"Zarel"}`},
		{"malformed", `{"p1":"Annika",`},
		{"one player", `{"p1":"Annika"}`},
		{"shared alias", `{"p1":"Annika","p2":"RustHater","p2rating":{"userid":"annika"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Anonymizer{}).Anonymize([]byte(tt.doc), "x.log.json")
			if !errors.Is(err, internalerrors.ErrInvalidLog) {
				t.Errorf("err = %v, want ErrInvalidLog", err)
			}
		})
	}
}

func TestAnonymize_BattleNumber(t *testing.T) {
	b := battlelogtest.Sample()
	b.Number = 1234
	out := anonymize(t, &Anonymizer{}, b.JSON(), "whatever.log.json")
	if out.BattleNumber != "1234" {
		t.Errorf("BattleNumber = %q, want 1234", out.BattleNumber)
	}

	noRoom := []byte(`{"p1":"Annika","p2":"RustHater","winner":""}`)
	out = anonymize(t, &Anonymizer{}, noRoom, "battle-gen8ou-77.log.json")
	if out.BattleNumber != "77" {
		t.Errorf("BattleNumber = %q, want 77 from the file name", out.BattleNumber)
	}

	first := anonymize(t, &Anonymizer{}, noRoom, "mystery.json").BattleNumber
	second := anonymize(t, &Anonymizer{}, noRoom, "mystery.json").BattleNumber
	if !strings.HasPrefix(first, "unknown-") || !strings.HasPrefix(second, "unknown-") {
		t.Fatalf("placeholders = %q, %q", first, second)
	}
	if first == second {
		t.Errorf("placeholder %q assigned twice", first)
	}
}
