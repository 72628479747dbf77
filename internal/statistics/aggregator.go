// Package statistics aggregates win/loss counts per format and per species.
package statistics

import (
	"sort"

	"github.com/olegiv/battlelog-tools-go/internal/battlelog"
	"github.com/olegiv/battlelog-tools-go/internal/engine"
	"github.com/olegiv/battlelog-tools-go/internal/logging"
)

// unknownFormat buckets logs that carry neither a format nor a parseable room id.
const unknownFormat = "unknown"

var _ engine.Handler[Result] = (*Aggregator)(nil)

// Options configures an Aggregator.
type Options struct {
	// MinimumElo excludes battles where either player is rated below it,
	// or has no rating at all. Only applied when HasMinimumElo is set.
	MinimumElo    float64
	HasMinimumElo bool
}

// Result is what one log contributes to the aggregate.
type Result struct {
	Format     string
	WinnerSlot int // 1 or 2, 0 for a tie or unfinished battle
	Teams      [2][]string
	Excluded   bool // filtered out by the minimum ELO
}

// Counters holds win/loss counts for one species.
type Counters struct {
	Wins   int
	Losses int
}

// Total is the number of decided battles the species took part in.
func (c *Counters) Total() int {
	return c.Wins + c.Losses
}

// WinRate is the percentage of decided battles won, or 0 without any.
func (c *Counters) WinRate() float64 {
	return winRate(c.Wins, c.Losses)
}

// FormatStats holds the counters of one format. Wins and Losses are counted
// from player 1's point of view; Total also includes battles without a winner.
type FormatStats struct {
	Wins    int
	Losses  int
	Total   int
	Species map[string]*Counters
}

// WinRate is player 1's percentage of decided battles.
func (f *FormatStats) WinRate() float64 {
	return winRate(f.Wins, f.Losses)
}

// Aggregator is the statistics handler. Per-file work only reads the log;
// counters are touched exclusively in HandleResults.
type Aggregator struct {
	opts     Options
	log      *logging.SecureLogger
	formats  map[string]*FormatStats
	excluded int
}

// New creates an Aggregator. A nil logger discards output.
func New(opts Options, log *logging.SecureLogger) *Aggregator {
	if log == nil {
		log = logging.Nop()
	}
	return &Aggregator{
		opts:    opts,
		log:     log,
		formats: make(map[string]*FormatStats),
	}
}

// HandleLogFile extracts the format, ratings, outcome and teams of one log.
func (a *Aggregator) HandleLogFile(raw []byte, _ string) (Result, error) {
	rec, err := battlelog.Parse(raw)
	if err != nil {
		return Result{}, err
	}

	if a.opts.HasMinimumElo && !a.passesMinimumElo(rec) {
		return Result{Excluded: true}, nil
	}

	format := rec.Format
	if format == "" {
		format = unknownFormat
	}
	return Result{
		Format:     format,
		WinnerSlot: rec.WinnerSlot,
		Teams:      rec.Teams,
	}, nil
}

func (a *Aggregator) passesMinimumElo(rec *battlelog.Record) bool {
	for _, r := range rec.Ratings {
		if r == nil || !r.HasElo || r.Elo < a.opts.MinimumElo {
			return false
		}
	}
	return true
}

// HandleResults merges every per-file result into the aggregate.
func (a *Aggregator) HandleResults(results []Result) error {
	for _, r := range results {
		if r.Excluded {
			a.excluded++
			continue
		}
		a.add(r)
	}

	a.log.Info().
		Int("formats", len(a.formats)).
		Int("included", len(results)-a.excluded).
		Int("excluded", a.excluded).
		Msg("Statistics aggregated")
	return nil
}

func (a *Aggregator) add(r Result) {
	stats, ok := a.formats[r.Format]
	if !ok {
		stats = &FormatStats{Species: make(map[string]*Counters)}
		a.formats[r.Format] = stats
	}

	stats.Total++
	switch r.WinnerSlot {
	case 1:
		stats.Wins++
	case 2:
		stats.Losses++
	default:
		return
	}

	for slot, team := range r.Teams {
		won := slot+1 == r.WinnerSlot
		seen := make(map[string]struct{}, len(team))
		for _, species := range team {
			if _, dup := seen[species]; dup {
				continue
			}
			seen[species] = struct{}{}

			c, ok := stats.Species[species]
			if !ok {
				c = &Counters{}
				stats.Species[species] = c
			}
			if won {
				c.Wins++
			} else {
				c.Losses++
			}
		}
	}
}

// Stats returns the aggregate keyed by format.
func (a *Aggregator) Stats() map[string]*FormatStats {
	return a.formats
}

// Excluded returns the number of battles filtered out by the minimum ELO.
func (a *Aggregator) Excluded() int {
	return a.excluded
}

// Formats returns the aggregated format names in sorted order.
func (a *Aggregator) Formats() []string {
	names := make([]string, 0, len(a.formats))
	for name := range a.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func winRate(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses) * 100
}
