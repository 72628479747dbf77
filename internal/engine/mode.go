package engine

import "fmt"

// Mode identifies which analysis a run performs.
type Mode string

// Supported modes.
const (
	ModeStatistics Mode = "statistics"
	ModeSearch     Mode = "search"
	ModeAnonymize  Mode = "anonymize"
)

// modeAliases are the short names accepted on the command line.
var modeAliases = map[string]Mode{
	"statistics": ModeStatistics,
	"stats":      ModeStatistics,
	"winrates":   ModeStatistics,
	"search":     ModeSearch,
	"s":          ModeSearch,
	"anonymize":  ModeAnonymize,
}

// ValidModes returns a list of valid mode strings.
// Useful for configuration validation.
func ValidModes() []string {
	return []string{
		string(ModeStatistics),
		string(ModeSearch),
		string(ModeAnonymize),
	}
}

// ParseMode converts a mode name or alias to a Mode.
// Returns an error if the string is not a known mode.
func ParseMode(s string) (Mode, error) {
	if m, ok := modeAliases[s]; ok {
		return m, nil
	}
	return "", fmt.Errorf("invalid mode: %q (valid modes: %v)", s, ValidModes())
}
