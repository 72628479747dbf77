// Package battlelog reads the fields of a battle log that the analyses need.
//
// A battle log is one JSON document per file: player names, rating table
// snapshots, the winner, the end type and an embedded protocol transcript
// ("log"), one "|command|arg|arg" line per event.
package battlelog

import (
	"strings"
	"unicode"
)

// ToID converts a display name into its canonical identifier: lowercase,
// with everything outside [a-z0-9] removed.
func ToID(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
