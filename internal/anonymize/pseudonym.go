package anonymize

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
)

const (
	pseudonymPrefix       = "anon"
	maxPseudonymAttempts  = 64
	pseudonymRandomLength = 5 // bytes, i.e. 10 hex digits
)

// fallbackPrefixes are tried in order when an alias occurs in
// pseudonymPrefix. The single letters lie outside the hex alphabet.
var fallbackPrefixes = append([]string{"guest", "trainer"}, strings.Split("ghijklmnopqrstuvwxyz", "")...)

// pseudonymSource produces candidate pseudonyms starting with prefix.
type pseudonymSource func(prefix string) (string, error)

// randomPseudonym draws a pseudonym from the random bits of a version 4 UUID.
func randomPseudonym(prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate pseudonym: %w", err)
	}
	return prefix + hex.EncodeToString(id[:pseudonymRandomLength]), nil
}

// aliasMatcher matches one alias at the start of a string.
type aliasMatcher struct {
	re   *regexp.Regexp
	slot int
}

// pseudonymMap holds the pseudonyms of one battle. A new map is built for
// every file, so the same player gets unrelated pseudonyms in different
// battles.
type pseudonymMap struct {
	pseudonyms [2]string
	slots      map[string]int // lowercased alias -> player slot (0 or 1)
	pattern    *regexp.Regexp // any alias anywhere, case-insensitive
	matchers   []aliasMatcher // anchored, longest alias first
}

// newPseudonymMap assigns one pseudonym per player slot and prepares the
// matchers for every alias of either player. Empty aliases are ignored.
func newPseudonymMap(aliases [2][]string, next pseudonymSource) (*pseudonymMap, error) {
	m := &pseudonymMap{slots: make(map[string]int)}

	var all []string
	for slot, names := range aliases {
		for _, alias := range names {
			if alias == "" {
				continue
			}
			key := strings.ToLower(alias)
			if other, ok := m.slots[key]; ok {
				if other != slot {
					return nil, internalerrors.InvalidLogf("an alias of p%d also names p%d", slot+1, other+1)
				}
				continue
			}
			m.slots[key] = slot
			all = append(all, alias)
		}
	}

	prefix := choosePrefix(all)
	for slot := range m.pseudonyms {
		p, err := m.draw(next, prefix, all)
		if err != nil {
			return nil, err
		}
		m.pseudonyms[slot] = p
	}

	if len(all) > 0 {
		// Longest first, so that an alias never shadows a longer one it prefixes.
		sort.SliceStable(all, func(i, j int) bool { return len(all[i]) > len(all[j]) })
		quoted := make([]string, len(all))
		for i, alias := range all {
			quoted[i] = regexp.QuoteMeta(alias)
			re, err := regexp.Compile("(?i)^" + quoted[i])
			if err != nil {
				return nil, fmt.Errorf("failed to compile alias pattern: %w", err)
			}
			m.matchers = append(m.matchers, aliasMatcher{re: re, slot: m.slots[strings.ToLower(alias)]})
		}
		pattern, err := regexp.Compile("(?i)" + strings.Join(quoted, "|"))
		if err != nil {
			return nil, fmt.Errorf("failed to compile alias pattern: %w", err)
		}
		m.pattern = pattern
	}
	return m, nil
}

// choosePrefix returns the first prefix that contains no alias.
func choosePrefix(aliases []string) string {
	for _, prefix := range append([]string{pseudonymPrefix}, fallbackPrefixes...) {
		if !containsAlias(prefix, aliases) {
			return prefix
		}
	}
	return ""
}

// draw returns a candidate that contains no alias and differs from the
// pseudonyms already assigned.
func (m *pseudonymMap) draw(next pseudonymSource, prefix string, aliases []string) (string, error) {
	for attempt := 0; attempt < maxPseudonymAttempts; attempt++ {
		candidate, err := next(prefix)
		if err != nil {
			return "", err
		}
		if m.taken(candidate, aliases) {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no unique pseudonym after %d attempts", maxPseudonymAttempts)
}

func (m *pseudonymMap) taken(candidate string, aliases []string) bool {
	for _, p := range m.pseudonyms {
		if p != "" && strings.EqualFold(p, candidate) {
			return true
		}
	}
	return containsAlias(candidate, aliases)
}

// containsAlias reports whether any alias occurs in s, ignoring case.
func containsAlias(s string, aliases []string) bool {
	lower := strings.ToLower(s)
	for _, alias := range aliases {
		if strings.Contains(lower, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

// Pseudonym returns the pseudonym of a player slot (0 or 1).
func (m *pseudonymMap) Pseudonym(slot int) string {
	return m.pseudonyms[slot]
}

// Replace substitutes every alias occurring in s as a whole word, ignoring
// case, in a single pass. An alias only matches where the characters on
// either side of it are not letters or digits, so "☆Annika" is replaced and
// "Alakazam" is left alone for an alias "Al". Replaced text is never scanned
// again.
func (m *pseudonymMap) Replace(s string) string {
	if m.pattern == nil || !m.pattern.MatchString(s) {
		return s
	}

	var b strings.Builder
	last := 0
	for i := 0; i < len(s); {
		if wordStart(s, i) {
			if n, slot := m.matchAt(s, i); n > 0 {
				b.WriteString(s[last:i])
				b.WriteString(m.pseudonyms[slot])
				i += n
				last = i
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// matchAt returns the length and slot of the longest alias that starts at
// s[i:] and ends at a word boundary.
func (m *pseudonymMap) matchAt(s string, i int) (int, int) {
	for _, am := range m.matchers {
		loc := am.re.FindStringIndex(s[i:])
		if loc == nil || loc[1] == 0 {
			continue
		}
		if wordEnd(s, i+loc[1]) {
			return loc[1], am.slot
		}
	}
	return 0, 0
}

func wordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordEnd(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
