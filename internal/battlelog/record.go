package battlelog

import (
	"strconv"
	"strings"

	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/tidwall/gjson"
)

// EndType describes how a battle finished.
type EndType string

const (
	EndNormal  EndType = "normal"
	EndForfeit EndType = "forfeit"
	EndOther   EndType = "other"
)

// ParseEndType maps the endType field of a log. Unknown or absent values map to EndOther.
func ParseEndType(s string) EndType {
	switch s {
	case "normal":
		return EndNormal
	case "forfeit":
		return EndForfeit
	default:
		return EndOther
	}
}

// Rating is one player's rating table snapshot at the end of the battle.
type Rating struct {
	UserID string
	Elo    float64
	HasElo bool
	Wins   int64
	Losses int64
	Ties   int64
}

// Record is the view of a battle log shared by all analyses.
// It is built fresh for each file and dropped once that file is handled.
type Record struct {
	Players    [2]string
	IDs        [2]string // canonical identifiers of Players
	Ratings    [2]*Rating
	Winner     string
	WinnerSlot int // 1 or 2, 0 when there is no winner
	EndType    EndType
	Format     string
	RoomID     string
	Timestamp  string
	Transcript []string
	Teams      [2][]string // species per player
}

// Parse builds a Record from a raw battle log.
//
// A log is invalid when it is not JSON, when either player is missing, when
// both players share a canonical identifier, or when a winner is named that
// is neither player.
func Parse(doc []byte) (*Record, error) {
	if !gjson.ValidBytes(doc) {
		return nil, internalerrors.InvalidLogf("malformed JSON")
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() {
		return nil, internalerrors.InvalidLogf("battle log is not a JSON object")
	}

	rec := &Record{
		EndType:   ParseEndType(root.Get("endType").String()),
		Format:    root.Get("format").String(),
		RoomID:    root.Get("roomid").String(),
		Timestamp: root.Get("timestamp").String(),
	}

	for i, key := range [2]string{"p1", "p2"} {
		name := root.Get(key)
		if name.Type != gjson.String || name.Str == "" {
			return nil, internalerrors.InvalidLogf("no %s value", key)
		}
		rec.Players[i] = name.Str
		rec.IDs[i] = ToID(name.Str)
		if rec.IDs[i] == "" {
			return nil, internalerrors.InvalidLogf("%s name has no identifier characters", key)
		}

		rec.Ratings[i] = parseRating(root.Get(key + "rating"))
		rec.Teams[i] = parseTeam(root.Get(key + "team"))
	}
	if rec.IDs[0] == rec.IDs[1] {
		return nil, internalerrors.InvalidLogf("both players have the same identifier")
	}

	slot, err := WinnerSlot(rec.IDs, root.Get("winner").String())
	if err != nil {
		return nil, err
	}
	rec.WinnerSlot = slot
	if slot != 0 {
		rec.Winner = root.Get("winner").String()
	}

	if rec.Format == "" {
		rec.Format, _ = FormatFromRoom(rec.RoomID)
	}

	for _, line := range root.Get("log").Array() {
		rec.Transcript = append(rec.Transcript, line.String())
	}

	return rec, nil
}

// WinnerSlot resolves a winner name against the two player identifiers.
// An empty winner means the battle had no winner (tie or unfinished).
// Error messages never include player names, since they end up in logs.
func WinnerSlot(ids [2]string, winner string) (int, error) {
	if strings.TrimSpace(winner) == "" {
		return 0, nil
	}
	winnerID := ToID(winner)
	switch winnerID {
	case ids[0]:
		return 1, nil
	case ids[1]:
		return 2, nil
	default:
		return 0, internalerrors.InvalidLogf("winner matches neither player")
	}
}

func parseRating(r gjson.Result) *Rating {
	if !r.IsObject() {
		return nil
	}
	rating := &Rating{
		UserID: r.Get("userid").String(),
		Wins:   r.Get("w").Int(),
		Losses: r.Get("l").Int(),
		Ties:   r.Get("t").Int(),
	}
	rating.Elo, rating.HasElo = number(r.Get("elo"))
	return rating
}

func parseTeam(r gjson.Result) []string {
	var species []string
	for _, member := range r.Array() {
		s := member.Get("species").String()
		if s == "" {
			s = member.Get("name").String()
		}
		if s != "" {
			species = append(species, s)
		}
	}
	return species
}

// number reads a JSON number, or a string holding one. Rating tables mix both.
func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
