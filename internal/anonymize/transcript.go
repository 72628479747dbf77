package anonymize

import (
	"regexp"
	"strings"
)

// ratingSentinel replaces rating change announcements in safe mode.
const ratingSentinel = "[rating change redacted]"

var (
	// slotToken is a side ("p1") or an active position ("p1a").
	slotToken = regexp.MustCompile(`^p[1-4][a-z]?$`)
	// positionPrefix introduces a side or pokemon reference, as in
	// "p1a: Alakazam" or "[of] p2: Annika".
	positionPrefix = regexp.MustCompile(`\bp[1-4][a-z]?: `)
)

// sideCommands take a bare side token as their first argument.
var sideCommands = map[string]bool{
	"player":   true,
	"teamsize": true,
	"poke":     true,
}

// playerNames returns the names declared on |player|p1|<name>| and
// |player|p2|<name>| lines, per slot.
func playerNames(transcript []string) [2][]string {
	var names [2][]string
	for _, line := range transcript {
		if !strings.HasPrefix(line, "|player|") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 4 || fields[3] == "" {
			continue
		}
		switch fields[2] {
		case "p1":
			names[0] = append(names[0], fields[3])
		case "p2":
			names[1] = append(names[1], fields[3])
		}
	}
	return names
}

// rewriteLine replaces player aliases in one transcript line.
//
// The line is handled field by field so the number of "|" delimiters never
// changes. On protocol lines ("|command|arg|...") the command itself is left
// alone, as are side tokens and the position part of "p1a: Name"
// references. In safe mode, timestamps, ladder ratings and rating change
// announcements are blanked as well.
func rewriteLine(line string, pm *pseudonymMap, safe bool) string {
	if strings.HasPrefix(line, ">") {
		return rewriteInput(line, pm)
	}

	fields := strings.Split(line, "|")

	first := 0
	protocol := len(fields) >= 2 && fields[0] == ""
	if protocol {
		first = 2
	}
	for i := first; i < len(fields); i++ {
		if protocol && i == 2 && sideCommands[fields[1]] && slotToken.MatchString(fields[i]) {
			continue
		}
		fields[i] = replaceOutsidePositions(fields[i], pm)
	}

	if safe && protocol {
		redactFields(fields)
	}
	return strings.Join(fields, "|")
}

func redactFields(fields []string) {
	switch fields[1] {
	case "t:":
		if len(fields) > 2 {
			fields[2] = "0"
		}
	case "player":
		// |player|p1|name|avatar|rating
		if len(fields) > 5 {
			fields[5] = ""
		}
	case "raw":
		if len(fields) > 2 && strings.Contains(fields[2], "'s rating: ") {
			fields[2] = ratingSentinel
		}
	}
}

// replaceOutsidePositions replaces aliases in s but keeps every "p1a: "
// style position prefix as it is.
func replaceOutsidePositions(s string, pm *pseudonymMap) string {
	locs := positionPrefix.FindAllStringIndex(s, -1)
	if locs == nil {
		return pm.Replace(s)
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(pm.Replace(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(pm.Replace(s[last:]))
	return b.String()
}

// rewriteInput replaces aliases in an input log line such as
// `>player p1 {"name":"Annika"}` or `>p2 move 1`, keeping the command and
// side tokens.
func rewriteInput(line string, pm *pseudonymMap) string {
	keep := 1
	if strings.HasPrefix(line, ">player ") {
		keep = 2
	}
	parts := strings.SplitN(line, " ", keep+1)
	if len(parts) <= keep {
		return line
	}
	parts[keep] = pm.Replace(parts[keep])
	return strings.Join(parts, " ")
}
