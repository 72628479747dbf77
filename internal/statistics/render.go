package statistics

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
)

// formatRow marks the per-format totals row in CSV output.
const formatRow = "*"

// WriteCSV writes one row per format (species "*") followed by one row per
// species of that format. Formats are sorted by name.
func (a *Aggregator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"format", "species", "wins", "losses", "total", "win_rate"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, format := range a.Formats() {
		stats := a.formats[format]
		if err := cw.Write([]string{
			format, formatRow,
			strconv.Itoa(stats.Wins), strconv.Itoa(stats.Losses), strconv.Itoa(stats.Total),
			formatRate(stats.WinRate()),
		}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}

		for _, species := range sortedSpecies(stats) {
			c := stats.Species[species]
			if err := cw.Write([]string{
				format, species,
				strconv.Itoa(c.Wins), strconv.Itoa(c.Losses), strconv.Itoa(c.Total()),
				formatRate(c.WinRate()),
			}); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// WriteHumanReadable writes a summary line and a species table per format.
func (a *Aggregator) WriteHumanReadable(w io.Writer) error {
	formats := a.Formats()
	if len(formats) == 0 {
		_, err := fmt.Fprintln(w, "No battles matched.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, format := range formats {
		stats := a.formats[format]
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s: %d battles, player 1 won %d and lost %d (%s)\n",
			format, stats.Total, stats.Wins, stats.Losses, formatRate(stats.WinRate()))

		species := sortedSpecies(stats)
		if len(species) == 0 {
			continue
		}
		fmt.Fprintln(tw, "Species\tWins\tLosses\tWin rate\t")
		for _, name := range species {
			c := stats.Species[name]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", name, c.Wins, c.Losses, formatRate(c.WinRate()))
		}
	}
	if a.excluded > 0 {
		fmt.Fprintf(tw, "\n%d battles excluded by the minimum ELO filter\n", a.excluded)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write statistics table: %w", err)
	}
	return nil
}

// sortedSpecies orders species by win rate, then by battles played, then by name.
func sortedSpecies(stats *FormatStats) []string {
	names := make([]string, 0, len(stats.Species))
	for name := range stats.Species {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := stats.Species[names[i]], stats.Species[names[j]]
		if a.WinRate() != b.WinRate() {
			return a.WinRate() > b.WinRate()
		}
		if a.Total() != b.Total() {
			return a.Total() > b.Total()
		}
		return names[i] < names[j]
	})
	return names
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 2, 64) + "%"
}
