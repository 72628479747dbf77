package config

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/olegiv/battlelog-tools-go/internal/engine"
)

// CLIOptions holds command-line argument overrides
type CLIOptions struct {
	// Global flags
	Threads           int    // -threads, -j: worker pool size
	Exclude           string // -exclude: skip files and directories containing this
	Collection        string // -collection: collection ID from collections.json
	CollectionsConfig string // -collections-config: path to collections.json
	ListCollections   bool   // -list-collections: list available collections and exit
	ShowHelp          bool   // -help: show usage
	ShowVersion       bool   // -version: show version

	// Command and its positional arguments
	Mode        string
	Username    string // search only
	Directories []string

	// statistics
	CSVPath           string // -csv
	HumanReadablePath string // -human-readable, -pretty
	MinimumElo        float64
	MinimumEloSet     bool // -minimum-elo, -elo was given

	// search
	WinsOnly     bool // -wins-only, -w
	ForfeitsOnly bool // -forfeits-only, -f

	// anonymize
	OutputDir string // -output, -o
	Safe      bool   // -safe
}

// ParseCLI parses command-line arguments (without the program name).
//
// Global flags come before the command; command flags and directories may
// be mixed freely after it:
//
//	battletools [global flags] statistics [-csv file] [-human-readable file] [-minimum-elo n] dir...
//	battletools [global flags] search <username> [-wins-only] [-forfeits-only] dir...
//	battletools [global flags] anonymize -output dir [-safe] dir...
func ParseCLI(args []string) (*CLIOptions, error) {
	opts := &CLIOptions{}

	global := flag.NewFlagSet("battletools", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	global.IntVar(&opts.Threads, "threads", 0, "Maximum number of worker goroutines (default: number of CPUs)")
	global.IntVar(&opts.Threads, "j", 0, "Shorthand for -threads")
	global.StringVar(&opts.Exclude, "exclude", "", "Files and directories whose name contains this string are ignored")
	global.StringVar(&opts.Collection, "collection", "", "Collection ID from collections.json")
	global.StringVar(&opts.CollectionsConfig, "collections-config", "", "Path to collections.json configuration file")
	global.BoolVar(&opts.ListCollections, "list-collections", false, "List available collections from collections.json and exit")
	global.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	global.BoolVar(&opts.ShowHelp, "h", false, "Shorthand for -help")
	global.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	if err := global.Parse(args); err != nil {
		return nil, err
	}
	if opts.ShowHelp || opts.ShowVersion || opts.ListCollections {
		return opts, nil
	}

	rest := global.Args()
	if len(rest) == 0 {
		// Directories may still come from a default collection
		return opts, nil
	}

	mode, err := engine.ParseMode(rest[0])
	if err != nil {
		return nil, err
	}
	opts.Mode = string(mode)

	cmd := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	cmd.SetOutput(io.Discard)
	switch mode {
	case engine.ModeStatistics:
		cmd.StringVar(&opts.CSVPath, "csv", "", "Write statistics in CSV format to this file")
		cmd.StringVar(&opts.HumanReadablePath, "human-readable", "", "Write statistics as a table to this file")
		cmd.StringVar(&opts.HumanReadablePath, "pretty", "", "Shorthand for -human-readable")
		cmd.Float64Var(&opts.MinimumElo, "minimum-elo", 0, "Ignore battles in which either player is below this ELO rating")
		cmd.Float64Var(&opts.MinimumElo, "elo", 0, "Shorthand for -minimum-elo")
	case engine.ModeSearch:
		cmd.BoolVar(&opts.WinsOnly, "wins-only", false, "Only battles won by the searched user")
		cmd.BoolVar(&opts.WinsOnly, "w", false, "Shorthand for -wins-only")
		cmd.BoolVar(&opts.ForfeitsOnly, "forfeits-only", false, "Only battles that ended by forfeit")
		cmd.BoolVar(&opts.ForfeitsOnly, "f", false, "Shorthand for -forfeits-only")
	case engine.ModeAnonymize:
		cmd.StringVar(&opts.OutputDir, "output", "", "Directory to write anonymized battle logs to")
		cmd.StringVar(&opts.OutputDir, "o", "", "Shorthand for -output")
		cmd.BoolVar(&opts.Safe, "safe", false, "Also blank ratings, timestamps and rating changes")
	}

	positional, err := parseInterspersed(cmd, rest[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", mode, err)
	}
	cmd.Visit(func(f *flag.Flag) {
		if f.Name == "minimum-elo" || f.Name == "elo" {
			opts.MinimumEloSet = true
		}
	})

	if mode == engine.ModeSearch {
		if len(positional) == 0 {
			return nil, errors.New("search: a username is required")
		}
		opts.Username = positional[0]
		positional = positional[1:]
	}
	opts.Directories = positional

	return opts, nil
}

// parseInterspersed parses flags that may appear between positional
// arguments and returns the positional arguments in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// PrintUsage prints the command-line usage information
func PrintUsage(w io.Writer, program string) {
	_, _ = fmt.Fprintf(w, "Battlelog Tools - statistics, search and anonymization for battle logs\n\n")
	_, _ = fmt.Fprintf(w, "Usage: %s [options] <command> [command options] [directories...]\n\n", program)
	_, _ = fmt.Fprintf(w, "Options:\n")
	_, _ = fmt.Fprintf(w, "  -threads, -j n              Maximum number of worker goroutines (default: number of CPUs)\n")
	_, _ = fmt.Fprintf(w, "  -exclude s                  Ignore files and directories whose name contains s\n")
	_, _ = fmt.Fprintf(w, "  -collection id              Use the directories of a collection from collections.json\n")
	_, _ = fmt.Fprintf(w, "  -collections-config path    Path to collections.json\n")
	_, _ = fmt.Fprintf(w, "  -list-collections           List available collections and exit\n")
	_, _ = fmt.Fprintf(w, "  -help, -version\n")
	_, _ = fmt.Fprintf(w, "\nCommands:\n")
	_, _ = fmt.Fprintf(w, "  statistics (stats, winrates) [-csv file] [-human-readable file] [-minimum-elo n]\n")
	_, _ = fmt.Fprintf(w, "      Win/loss counts per format and species; prints a table to stdout unless a file is given\n")
	_, _ = fmt.Fprintf(w, "  search (s) <username> [-wins-only] [-forfeits-only]\n")
	_, _ = fmt.Fprintf(w, "      Print one line per battle played by username\n")
	_, _ = fmt.Fprintf(w, "  anonymize -output dir [-safe]\n")
	_, _ = fmt.Fprintf(w, "      Write anonymized copies of every battle log to dir as <battle number>.log.json\n")
	_, _ = fmt.Fprintf(w, "\nExamples:\n")
	_, _ = fmt.Fprintf(w, "  %s statistics -minimum-elo 1300 ./logs/2021-09\n", program)
	_, _ = fmt.Fprintf(w, "  %s -j 8 search Annika -wins-only ./logs\n", program)
	_, _ = fmt.Fprintf(w, "  %s -exclude private anonymize -output ./shared -safe ./logs\n", program)
	_, _ = fmt.Fprintf(w, "  %s -collection ladder statistics\n", program)
	_, _ = fmt.Fprintf(w, "\nEnvironment variables can be set in .env file or exported directly.\n")
	_, _ = fmt.Fprintf(w, "CLI arguments override environment variables.\n")
}
