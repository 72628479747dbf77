package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/olegiv/battlelog-tools-go/internal/anonymize"
	"github.com/olegiv/battlelog-tools-go/internal/config"
	"github.com/olegiv/battlelog-tools-go/internal/engine"
	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/olegiv/battlelog-tools-go/internal/logging"
	"github.com/olegiv/battlelog-tools-go/internal/notification"
	"github.com/olegiv/battlelog-tools-go/internal/search"
	"github.com/olegiv/battlelog-tools-go/internal/statistics"
	"github.com/olegiv/battlelog-tools-go/internal/storage"
	"github.com/olegiv/battlelog-tools-go/pkg/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

const programName = "battletools"

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cli, err := config.ParseCLI(args)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n\n", err)
		config.PrintUsage(stderr, programName)
		return exitFailure
	}

	if cli.ShowHelp {
		config.PrintUsage(stdout, programName)
		return exitSuccess
	}

	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s %s\n", programName, version)
		if gitCommit != "unknown" {
			_, _ = fmt.Fprintf(stdout, "  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			_, _ = fmt.Fprintf(stdout, "  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	if cli.ListCollections {
		return listCollections(cli.CollectionsConfig, stdout, stderr)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		if cli.Mode == "" {
			_, _ = fmt.Fprintln(stderr)
			config.PrintUsage(stderr, programName)
		}
		return exitFailure
	}

	baseLog := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     cfg.LogDir,
		Filename:   "battletools.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    cfg.LogConsole,
	})
	log := logging.NewSecure(baseLog)
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().
		Str("mode", string(cfg.Mode)).
		Int("directories", len(cfg.Directories)).
		Int("workers", cfg.Workers).
		Str("collection", cfg.CollectionID).
		Msg("Starting battle log run")

	if err := runTool(ctx, cfg, log, stdout, stderr); err != nil {
		log.Error().Err(err).Msg("Run failed")
		return exitFailure
	}

	log.Info().Msg("Run completed successfully")
	return exitSuccess
}

// runTool processes the configured directories in the selected mode, then
// prints a summary and records and reports the run.
func runTool(ctx context.Context, cfg *config.Config, log *logging.SecureLogger, stdout, stderr io.Writer) error {
	run := &storage.Run{
		Timestamp:    time.Now(),
		Mode:         string(cfg.Mode),
		CollectionID: cfg.CollectionID,
		Directories:  cfg.Directories,
	}

	var (
		report *engine.Report
		err    error
	)

	switch cfg.Mode {
	case engine.ModeStatistics:
		agg := statistics.New(statistics.Options{
			MinimumElo:    cfg.MinimumElo,
			HasMinimumElo: cfg.HasMinimumElo,
		}, log)
		report, err = process[statistics.Result](ctx, cfg, log, agg)
		if err == nil {
			if werr := writeStatistics(cfg, agg, stdout); werr != nil {
				err = werr
			}
		}
		run.Formats = formatCounts(agg)
		if agg.Excluded() > 0 {
			log.Info().Int("excluded", agg.Excluded()).Msg("Battles below the minimum ELO were skipped")
		}

	case engine.ModeSearch:
		var searcher *search.Searcher
		searcher, err = newSearcher(cfg, stdout, log)
		if err != nil {
			return err
		}
		report, err = process[bool](ctx, cfg, log, searcher)
		run.Matches = searcher.Matches()

	case engine.ModeAnonymize:
		var h *anonymize.Handler
		h, err = anonymize.NewHandler(anonymize.Options{
			OutputDir: cfg.OutputDir,
			Safe:      cfg.Safe,
		}, log)
		if err != nil {
			return err
		}
		report, err = process[anonymize.Result](ctx, cfg, log, h)
		run.Written = h.Written()
		run.Overwritten = h.Overwritten()

	default:
		return fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}

	if report == nil {
		return err
	}
	fillRun(run, report)
	printSummary(stderr, run)

	if ctx.Err() != nil {
		// Interrupted runs are neither recorded nor reported
		return err
	}

	saveRun(cfg, log, run)
	sendReport(cfg, log, run)

	return err
}

// process runs the engine over the configured directories with h
func process[R any](ctx context.Context, cfg *config.Config, log *logging.SecureLogger, h engine.Handler[R]) (*engine.Report, error) {
	return engine.New[R](cfg.EngineOptions(), log).Process(ctx, cfg.Directories, h)
}

// writeStatistics writes the requested statistics outputs, or the table to
// stdout when no output file was requested
func writeStatistics(cfg *config.Config, agg *statistics.Aggregator, stdout io.Writer) error {
	if cfg.CSVPath == "" && cfg.HumanReadablePath == "" {
		return agg.WriteHumanReadable(stdout)
	}
	if cfg.CSVPath != "" {
		if err := writeFile(cfg.CSVPath, agg.WriteCSV); err != nil {
			return err
		}
	}
	if cfg.HumanReadablePath != "" {
		if err := writeFile(cfg.HumanReadablePath, agg.WriteHumanReadable); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return internalerrors.IOError("create", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return internalerrors.IOError("create", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = internalerrors.IOError("close", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return internalerrors.IOError("write", path, err)
	}
	return nil
}

// formatCounts converts the aggregate into per-format counters for storage
func formatCounts(agg *statistics.Aggregator) []storage.FormatCount {
	stats := agg.Stats()
	counts := make([]storage.FormatCount, 0, len(stats))
	for _, format := range agg.Formats() {
		s := stats[format]
		counts = append(counts, storage.FormatCount{
			Format: format,
			Wins:   s.Wins,
			Losses: s.Losses,
			Total:  s.Total,
		})
	}
	return counts
}

// fillRun copies the engine report into run
func fillRun(run *storage.Run, report *engine.Report) {
	run.Attempted = report.Attempted
	run.Succeeded = report.Succeeded
	run.Duration = report.Duration
	for _, f := range report.Failures {
		run.Failures = append(run.Failures, storage.Failure{
			Path:    f.Path,
			Kind:    string(f.Kind),
			Message: internalerrors.SanitizeString(f.Err.Error()),
		})
	}
}

// printSummary writes a one-line run summary and the failure counts per
// kind to w
func printSummary(w io.Writer, run *storage.Run) {
	_, _ = fmt.Fprintf(w, "Processed %d files: %d succeeded, %d failed (%.2fs)\n",
		run.Attempted, run.Succeeded, run.Failed(), run.Duration.Seconds())

	if run.Failed() == 0 {
		return
	}
	kinds := make(map[string]int)
	for _, f := range run.Failures {
		kinds[f.Kind]++
	}
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		_, _ = fmt.Fprintf(w, "  %s: %d\n", k, kinds[k])
	}
}

// saveRun records the run in the history database, if enabled, and prunes
// runs older than the retention period. Failures are logged, not returned.
func saveRun(cfg *config.Config, log *logging.SecureLogger, run *storage.Run) {
	if !cfg.EnableDatabase {
		return
	}

	store, err := storage.New(cfg.DatabasePath, log)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize storage")
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	if err := store.SaveRun(run); err != nil {
		log.Warn().Err(err).Msg("Failed to save run to database")
	} else {
		log.Info().Int64("id", run.ID).Msg("Run saved to database")
		logHistory(store, log, run, cfg.HistoryRetentionDays)
	}

	deleted, err := store.CleanupOldRuns(cfg.HistoryRetentionDays)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to cleanup old runs")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Old runs cleaned up")
	}
}

// newSearcher builds the search handler. Matches go straight to stdout as
// each battle is handled.
func newSearcher(cfg *config.Config, stdout io.Writer, log *logging.SecureLogger) (*search.Searcher, error) {
	return search.New(search.Options{
		Username:     cfg.Username,
		WinsOnly:     cfg.WinsOnly,
		ForfeitsOnly: cfg.ForfeitsOnly,
	}, stdout, log)
}

// logHistory logs the totals kept in the history database and, for
// statistics runs, how the busiest format moved since the previous run
func logHistory(store *storage.Storage, log *logging.SecureLogger, run *storage.Run, days int) {
	stats, err := store.GetStatistics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read history statistics")
		return
	}
	total, _ := stats["total_runs"].(int)
	failures, _ := stats["total_failures"].(int)
	log.Debug().Int("total_runs", total).Int("total_failures", failures).Msg("Run history")

	if run.Mode != "statistics" || len(run.Formats) == 0 {
		return
	}
	top := run.Formats[0]
	for _, f := range run.Formats[1:] {
		if f.Total > top.Total {
			top = f
		}
	}
	points, err := store.GetFormatHistory(top.Format, days)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read format history")
		return
	}
	// The last point is the run just saved
	if len(points) < 2 {
		return
	}
	prev := points[len(points)-2]
	log.Info().
		Str("format", top.Format).
		Int("battles", top.Total).
		Int("previous", prev.Total).
		Int("change", top.Total-prev.Total).
		Msg("Format trend")
}

// sendReport sends the run report to Telegram, if configured.
// Failures are logged, not returned.
func sendReport(cfg *config.Config, log *logging.SecureLogger, run *storage.Run) {
	if !cfg.HasTelegram() {
		return
	}

	client, err := notification.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChannel)
	if err != nil {
		log.Warn().Err(err).
			Str("token", internalerrors.MaskCredential(cfg.TelegramBotToken)).
			Msg("Failed to initialize Telegram client")
		return
	}
	if info := client.GetBotInfo(); info != nil {
		username, _ := info["username"].(string)
		log.Debug().Str("bot", username).Int64("channel", cfg.TelegramChannel).Msg("Telegram client ready")
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Telegram client")
		}
	}()

	if err := client.SendRunReport(run); err != nil {
		log.Warn().Err(err).Msg("Failed to send Telegram run report")
		return
	}
	log.Info().Msg("Telegram run report sent")
}

// listCollections prints the collections defined in collections.json
func listCollections(configPath string, stdout, stderr io.Writer) int {
	collections, path, err := config.LoadCollectionsConfig(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if collections == nil {
		_, _ = fmt.Fprintln(stderr, "No collections.json found in ./collections.json, ./configs/collections.json "+
			"or ~/.config/battlelog-tools/collections.json")
		return exitFailure
	}

	_, _ = fmt.Fprintf(stdout, "Collections from %s:\n", path)
	for _, id := range collections.ListCollections() {
		c := collections.Collections[id]
		marker := " "
		if id == collections.DefaultCollection {
			marker = "*"
		}
		name := c.Name
		if name == "" {
			name = id
		}
		_, _ = fmt.Fprintf(stdout, "%s %-20s %s (%d directories)\n", marker, id, name, len(c.Directories))
	}
	return exitSuccess
}
