// Package search finds battles played by a given user.
package search

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/olegiv/battlelog-tools-go/internal/battlelog"
	"github.com/olegiv/battlelog-tools-go/internal/engine"
	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/olegiv/battlelog-tools-go/internal/logging"
)

var _ engine.Handler[bool] = (*Searcher)(nil)

// Logs are commonly archived in one directory per day.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Options configures a Searcher.
type Options struct {
	Username     string
	WinsOnly     bool // only battles the user won
	ForfeitsOnly bool // only battles that ended by forfeit
}

// Searcher is the search handler. It prints a line for every matching
// battle as soon as the battle is handled; the per-file result only reports
// whether the file matched.
type Searcher struct {
	userID string
	opts   Options
	log    *logging.SecureLogger

	mu  sync.Mutex
	out io.Writer

	matches int
}

// New creates a Searcher writing matches to out.
// Returns an error if the username has no identifier characters.
func New(opts Options, out io.Writer, log *logging.SecureLogger) (*Searcher, error) {
	userID := battlelog.ToID(opts.Username)
	if userID == "" {
		return nil, fmt.Errorf("search username %q has no letters or digits", opts.Username)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Searcher{userID: userID, opts: opts, out: out, log: log}, nil
}

// HandleLogFile checks one log against the search criteria and prints it
// when it matches.
func (s *Searcher) HandleLogFile(raw []byte, path string) (bool, error) {
	fields := battlelog.Fields(raw, "p1", "p2", "winner", "endType", "timestamp")
	if fields[0] == nil {
		return false, internalerrors.InvalidLogf("no p1 value")
	}
	if fields[1] == nil {
		return false, internalerrors.InvalidLogf("no p2 value")
	}

	ids := [2]string{
		battlelog.ToID(battlelog.Text(fields[0])),
		battlelog.ToID(battlelog.Text(fields[1])),
	}
	if ids[0] == "" || ids[1] == "" {
		return false, internalerrors.InvalidLogf("player without identifier characters")
	}
	if ids[0] == ids[1] {
		return false, internalerrors.InvalidLogf("both players have the same identifier")
	}

	winner := battlelog.Text(fields[2])
	winnerSlot, err := battlelog.WinnerSlot(ids, winner)
	if err != nil {
		return false, err
	}

	if ids[0] != s.userID && ids[1] != s.userID {
		return false, nil
	}
	if s.opts.WinsOnly && (winnerSlot == 0 || ids[winnerSlot-1] != s.userID) {
		return false, nil
	}
	forfeit := battlelog.ParseEndType(battlelog.Text(fields[3])) == battlelog.EndForfeit
	if s.opts.ForfeitsOnly && !forfeit {
		return false, nil
	}

	outcome := "there was no winner"
	if winnerSlot != 0 {
		how := "normally"
		if forfeit {
			how = "by forfeit"
		}
		outcome = fmt.Sprintf("%s won %s", winner, how)
	}

	line := fmt.Sprintf("(%s) <<%s>> %s vs. %s (%s)\n",
		battleDate(path, battlelog.Text(fields[4])), battlelog.RoomName(path), ids[0], ids[1], outcome)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, line); err != nil {
		return false, internalerrors.IOError("write", "search output", err)
	}
	return true, nil
}

// HandleResults counts the matches; the lines themselves are already written.
func (s *Searcher) HandleResults(results []bool) error {
	for _, matched := range results {
		if matched {
			s.matches++
		}
	}
	s.log.Info().
		Int("matches", s.matches).
		Bool("wins_only", s.opts.WinsOnly).
		Bool("forfeits_only", s.opts.ForfeitsOnly).
		Msg("Search complete")
	return nil
}

// Matches returns the number of matching battles once the run has finished.
func (s *Searcher) Matches() int {
	return s.matches
}

// battleDate prefers the day directory the log is stored in, then the
// timestamp recorded in the log.
func battleDate(path, timestamp string) string {
	if dir := filepath.Base(filepath.Dir(path)); datePattern.MatchString(dir) {
		return dir
	}
	if timestamp != "" {
		return timestamp
	}
	return "unknown date"
}
