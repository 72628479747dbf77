// Package anonymize rewrites battle logs so they can be shared without
// revealing who played them.
//
// Every name a player is known by in a log (display name, canonical id,
// ladder user id and the name declared in the transcript) is replaced by
// one pseudonym, consistently across the whole document. Pseudonyms are
// drawn fresh for every file, so the same player cannot be linked across
// two anonymized battles through them.
package anonymize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/olegiv/battlelog-tools-go/internal/battlelog"
	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// sentinelTimestamp replaces the battle timestamp in safe mode.
const sentinelTimestamp = "Thu Jan 01 1970 00:00:00 GMT+0000 (Coordinated Universal Time)"

// placeholders numbers the outputs of logs without a battle number.
var placeholders atomic.Uint64

// Output is an anonymized log and the battle number that names its file.
type Output struct {
	JSON         []byte
	BattleNumber string
}

// Anonymizer rewrites battle logs. The zero value is ready to use.
type Anonymizer struct {
	// Safe also blanks ratings, timestamps and rating changes, which could
	// identify a battle even without names.
	Safe bool

	next pseudonymSource
}

// Anonymize returns an anonymized copy of raw. fileName is only used to find
// the battle number when the room id has none.
func (a *Anonymizer) Anonymize(raw []byte, fileName string) (*Output, error) {
	rec, err := battlelog.Parse(raw)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(raw)

	next := a.next
	if next == nil {
		next = randomPseudonym
	}
	pm, err := newPseudonymMap(aliases(rec), next)
	if err != nil {
		return nil, err
	}

	w := &rewriter{doc: append([]byte(nil), raw...)}

	// Names
	for slot, key := range [2]string{"p1", "p2"} {
		w.set(key, pm.Pseudonym(slot))
		if root.Get(key + "rating.userid").Exists() {
			w.set(key+"rating.userid", pm.Pseudonym(slot))
		}
		for i, member := range root.Get(key + "team").Array() {
			if nickname := member.Get("name"); nickname.Type == gjson.String {
				w.set(fmt.Sprintf("%steam.%d.name", key, i), pm.Replace(nickname.Str))
			}
		}
	}
	if rec.WinnerSlot != 0 {
		w.set("winner", pm.Pseudonym(rec.WinnerSlot-1))
	}
	if lines := root.Get("log"); lines.IsArray() {
		w.setLines("log", lines, func(line string) string { return rewriteLine(line, pm, a.Safe) })
	}
	if lines := root.Get("inputLog"); lines.IsArray() {
		w.setLines("inputLog", lines, func(line string) string { return rewriteLine(line, pm, false) })
	}

	// Battle identity
	if root.Get("comment").Exists() {
		w.delete("comment")
	}
	if rec.RoomID != "" {
		w.set("roomid", battlelog.PublicRoomID(rec.RoomID))
	}
	if a.Safe {
		for _, key := range [2]string{"p1rating", "p2rating"} {
			zeroRating(w, key, root.Get(key))
		}
		if root.Get("timestamp").Exists() {
			w.set("timestamp", sentinelTimestamp)
		}
	}

	if w.err != nil {
		return nil, internalerrors.InvalidLogf("failed to rewrite log: %v", w.err)
	}

	number, ok := battlelog.BattleNumber(rec.RoomID, fileName)
	if !ok {
		number = "unknown-" + strconv.FormatUint(placeholders.Add(1), 10)
	}
	return &Output{JSON: w.doc, BattleNumber: number}, nil
}

// aliases collects every name each player is known by in the log.
func aliases(rec *battlelog.Record) [2][]string {
	declared := playerNames(rec.Transcript)
	var out [2][]string
	for slot := range out {
		out[slot] = append(out[slot], rec.Players[slot], rec.IDs[slot])
		if r := rec.Ratings[slot]; r != nil && r.UserID != "" {
			out[slot] = append(out[slot], r.UserID)
		}
		out[slot] = append(out[slot], declared[slot]...)
	}
	return out
}

// zeroRating replaces every rating table value except the user id with a
// zero of the same JSON type, keeping the table's shape.
func zeroRating(w *rewriter, key string, table gjson.Result) {
	if !table.IsObject() {
		return
	}
	table.ForEach(func(k, v gjson.Result) bool {
		if k.Str == "userid" {
			return true
		}
		path := key + "." + escapePath(k.Str)
		switch v.Type {
		case gjson.Number:
			w.setRaw(path, "0")
		case gjson.String:
			w.set(path, "0")
		case gjson.True, gjson.False:
			w.setRaw(path, "false")
		}
		return true
	})
}

// escapePath escapes the characters gjson and sjson treat as path syntax.
func escapePath(component string) string {
	var b strings.Builder
	for _, r := range component {
		if strings.ContainsRune(`\.*?|#@!=<>%`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// rewriter applies a sequence of sjson edits, stopping at the first error.
type rewriter struct {
	doc []byte
	err error
}

func (w *rewriter) set(path string, value string) {
	if w.err != nil {
		return
	}
	w.doc, w.err = sjson.SetBytes(w.doc, path, value)
}

func (w *rewriter) setRaw(path, raw string) {
	if w.err != nil {
		return
	}
	w.doc, w.err = sjson.SetRawBytes(w.doc, path, []byte(raw))
}

func (w *rewriter) delete(path string) {
	if w.err != nil {
		return
	}
	w.doc, w.err = sjson.DeleteBytes(w.doc, path)
}

// setLines rewrites every line of a string array.
func (w *rewriter) setLines(path string, lines gjson.Result, rewrite func(string) string) {
	if w.err != nil {
		return
	}
	var out []string
	for _, line := range lines.Array() {
		out = append(out, rewrite(line.String()))
	}
	if out == nil {
		out = []string{}
	}

	// Transcripts are full of <, > and &; keep them readable.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		w.err = err
		return
	}
	w.doc, w.err = sjson.SetRawBytes(w.doc, path, bytes.TrimRight(buf.Bytes(), "\n"))
}
