// Package battlelogtest builds battle log fixtures for tests.
package battlelogtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"
)

// Battle describes a fixture log. Zero ratings produce a null rating table.
type Battle struct {
	P1, P2    string
	Winner    string
	EndType   string
	Format    string
	Number    int
	P1Elo     float64
	P2Elo     float64
	P1Team    []string
	P2Team    []string
	Timestamp string
}

// Sample is the battle used across package tests.
func Sample() Battle {
	return Battle{
		P1:        "Annika",
		P2:        "RustHater",
		Winner:    "Annika",
		EndType:   "normal",
		Format:    "gen8randombattle",
		Number:    1,
		P1Elo:     1400.4859871929,
		P2Elo:     1130.7522733629,
		P1Team:    []string{"Rotom-Fan", "Regirock", "Conkeldurr"},
		P2Team:    []string{"Drednaw", "Pinsir", "Latios"},
		Timestamp: "Wed Nov 1 1970 00:00:01 GMT-0400 (Eastern Daylight Time)",
	}
}

// JSON renders the battle as a log document.
func (b Battle) JSON() []byte {
	format := b.Format
	if format == "" {
		format = "gen8ou"
	}
	endType := b.EndType
	if endType == "" {
		endType = "normal"
	}

	winLine := "|tie"
	if b.Winner != "" {
		winLine = "|win|" + b.Winner
	}

	doc := map[string]interface{}{
		"winner": b.Winner,
		"seed":   []int{1, 1, 1, 1},
		"turns":  2,
		"p1":     b.P1,
		"p2":     b.P2,
		"p1team": team(b.P1Team, b.P1),
		"p2team": team(b.P2Team, ""),
		"score":  []int{0, 2},
		"inputLog": []string{
			fmt.Sprintf(`>start {"formatid":"%s"}`, format),
			fmt.Sprintf(`>player p1 {"name":"%s","avatar":"cynthia"}`, b.P1),
			fmt.Sprintf(`>player p2 {"name":"%s","avatar":"cynthia"}`, b.P2),
		},
		"log": []string{
			"|j|☆" + b.P1,
			"|j|☆" + b.P2,
			"|t:|1632906000",
			"|player|p1|" + b.P1 + "|cynthia|1400",
			"|player|p2|" + b.P2 + "|cynthia|1100",
			"|teamsize|p1|3",
			"|teamsize|p2|3",
			"|gametype|singles",
			"|gen|8",
			"|tier|[Gen 8] Random Battle",
			"|rated|",
			"|start",
			"|c|☆" + b.P1 + "|gl hf " + b.P2,
			"|turn|1",
			winLine,
			"|raw|" + b.P1 + "'s rating: 1400 &rarr; <strong>1420</strong><br />(+20 for winning)",
			"|l|☆" + b.P2,
		},
		"p1rating":  rating(b.P1, b.P1Elo),
		"p2rating":  rating(b.P2, b.P2Elo),
		"endType":   endType,
		"timestamp": b.Timestamp,
		"roomid":    fmt.Sprintf("battle-%s-%d", format, b.Number),
		"format":    format,
		"comment":   "rating info and teams from my own battles",
	}

	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// FileName is the conventional file name of the battle's log.
func (b Battle) FileName() string {
	format := b.Format
	if format == "" {
		format = "gen8ou"
	}
	return fmt.Sprintf("battle-%s-%d.log.json", format, b.Number)
}

// WriteFile writes the battle into dir and returns the file path.
func WriteFile(tb testing.TB, dir string, b Battle) string {
	tb.Helper()
	path := filepath.Join(dir, b.FileName())
	if err := os.WriteFile(path, b.JSON(), 0644); err != nil {
		tb.Fatalf("failed to write fixture %s: %v", path, err)
	}
	return path
}

// WriteDir writes n sample battles numbered 1..n into dir.
func WriteDir(tb testing.TB, dir string, n int) []string {
	tb.Helper()
	paths := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		b := Sample()
		b.Number = i
		paths = append(paths, WriteFile(tb, dir, b))
	}
	return paths
}

func team(species []string, nicknameOwner string) []map[string]interface{} {
	members := make([]map[string]interface{}, 0, len(species))
	for i, s := range species {
		name := s
		if i == 0 && nicknameOwner != "" {
			// A nickname that echoes the owner's name
			name = nicknameOwner + "'s pet"
		}
		members = append(members, map[string]interface{}{
			"name":    name,
			"species": s,
			"level":   84,
			"moves":   []string{"voltswitch", "willowisp"},
		})
	}
	return members
}

func rating(name string, elo float64) interface{} {
	if elo == 0 {
		return nil
	}
	return map[string]interface{}{
		"entryid": "75790599",
		"userid":  userID(name),
		"w":       "4",
		"l":       4,
		"t":       "0",
		"gxe":     46.8,
		"r":       1516.9377700433,
		"rd":      121.36211247153,
		"rptime":  1632906000,
		"rpr":     1474.7452159936,
		"rprd":    115.09180605287,
		"elo":     elo,
		"col1":    8,
		"oldelo":  "1057.7590112468",
	}
}

func userID(name string) string {
	var b strings.Builder
	for _, r := range name {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Messy is a log whose names disagree in spacing between the envelope, the
// transcript and the rating table, as real logs sometimes do.
const Messy = `{"winner":"Annika","seed":[1,1,1,1],"turns":2,"p1":"Annika","p2":"Rust Haters","p1team":[{"name":"Rotom","species":"Rotom-Fan","gender":"N","level":84,"moves":["airslash","voltswitch"],"ability":"Levitate","item":"Heavy-Duty Boots"}],"p2team":[{"name":"Drednaw","species":"Drednaw","gender":"","level":84,"moves":["stoneedge","liquidation"],"ability":"Swift Swim","item":"Life Orb"}],"score":[0,2],"inputLog":[">lol you thought i'd leak someone's real input log"],"log":["|j|☆Annika","|j|☆Rust Hater","|player|p1|Annika|cynthia|1400","|player|p2|Rust Hater|cynthia|1100","|teamsize|p1|6","|teamsize|p2|6","|gametype|singles","|gen|8","|tier|[Gen 8] Random Battle","|rated|"],"p1rating":{"entryid":"75790599","userid":"annika","w":"4","l":4,"t":"0","gxe":46.8,"r":1516.9377700433,"rd":121.36211247153,"rptime":1632906000,"rpr":1474.7452159936,"rprd":115.09180605287,"elo":1400.4859871929,"col1":8,"oldelo":"1057.7590112468"},"p2rating":{"entryid":"75790599","userid":"rusthater","w":"4","l":5,"t":"0","gxe":41.8,"r":"1516.9377700433","rd":"121.36211247153","rptime":"1632906000","rpr":1434.9434039083,"rprd":109.84367373045,"elo":1130.7522733629,"col1":9,"oldelo":"1040.4859871929"},"endType":"normal","timestamp":"Wed Nov 1 1970 00:00:01 GMT-0400 (Eastern Daylight Time)","roomid":"battle-gen8randombattle-1","format":"gen8randombattle", "comment": "if you're curious - this is my own rating info & teams from my battles - no violation of privacy here!"}`
