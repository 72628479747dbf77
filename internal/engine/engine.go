package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/olegiv/battlelog-tools-go/internal/logging"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAbort is wrapped by a handler error that should stop the whole run
	// instead of being recorded as a per-file failure.
	ErrAbort = errors.New("run aborted by handler")

	// ErrNoSuccessfulFiles is returned when not a single file was handled
	// successfully, including when no files were found at all.
	ErrNoSuccessfulFiles = errors.New("no battle log was processed successfully")
)

// Options configures an Engine.
type Options struct {
	Workers       int    // Worker pool size; defaults to the number of CPUs
	Exclude       string // Files and directories whose name contains this are skipped
	MaxFileSizeMB int    // Files larger than this are rejected; 0 disables the check
}

// Failure records a file that could not be handled.
type Failure struct {
	Path string
	Kind internalerrors.Kind
	Err  error
}

// Report summarizes a run.
// Failures may include directories that could not be walked; those are not
// counted in Attempted.
type Report struct {
	Attempted int
	Succeeded int
	Failures  []Failure
	Duration  time.Duration
}

// Failed returns the number of recorded failures.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// FailuresByKind counts failures per error kind.
func (r *Report) FailuresByKind() map[internalerrors.Kind]int {
	counts := make(map[internalerrors.Kind]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}

// Engine walks directories and feeds every file to a Handler.
type Engine[R any] struct {
	opts   Options
	reader *Reader
	log    *logging.SecureLogger
}

// New creates an engine. A nil logger discards output.
func New[R any](opts Options, log *logging.SecureLogger) *Engine[R] {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine[R]{
		opts:   opts,
		reader: NewReader(opts.MaxFileSizeMB),
		log:    log,
	}
}

type outcome[R any] struct {
	path   string
	result R
	err    error
}

// Process handles every regular file under directories with h.
//
// Files are handled concurrently by a bounded worker pool. Per-file errors
// are recorded in the report and do not stop the other workers, unless the
// error wraps ErrAbort. Once every file has been handled, h.HandleResults is
// called exactly once with all successful results, in no particular order.
// An error from HandleResults becomes the run's error.
func (e *Engine[R]) Process(ctx context.Context, directories []string, h Handler[R]) (*Report, error) {
	start := time.Now()
	report := &Report{}
	done := func(err error) (*Report, error) {
		report.Duration = time.Since(start)
		return report, err
	}

	paths, walkFailures := e.Files(directories)
	report.Failures = append(report.Failures, walkFailures...)

	e.log.Debug().
		Int("files", len(paths)).
		Int("workers", e.opts.Workers).
		Int("directories", len(directories)).
		Msg("Dispatching battle logs")

	// The collector is the only goroutine that touches report and results
	// until it has drained the channel.
	outcomes := make(chan outcome[R], e.opts.Workers)
	collected := make(chan struct{})
	var results []R
	go func() {
		defer close(collected)
		for o := range outcomes {
			report.Attempted++
			if o.err != nil {
				kind := internalerrors.KindOf(o.err)
				report.Failures = append(report.Failures, Failure{Path: o.path, Kind: kind, Err: o.err})
				e.log.Warn().
					Str("path", o.path).
					Str("kind", string(kind)).
					Err(o.err).
					Msg("Skipping battle log")
				continue
			}
			results = append(results, o.result)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		path := path
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := e.handleFile(h, path)
			outcomes <- outcome[R]{path: path, result: res, err: err}
			if err != nil && errors.Is(err, ErrAbort) {
				return fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	runErr := g.Wait()
	close(outcomes)
	<-collected
	report.Succeeded = len(results)

	if runErr != nil {
		return done(runErr)
	}
	if err := ctx.Err(); err != nil {
		return done(fmt.Errorf("run cancelled: %w", err))
	}

	if err := h.HandleResults(results); err != nil {
		return done(fmt.Errorf("failed to finalize results: %w", err))
	}

	report.Duration = time.Since(start)
	e.log.Info().
		Int("attempted", report.Attempted).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed()).
		Dur("duration", report.Duration).
		Msg("Run complete")

	if report.Succeeded == 0 {
		return done(ErrNoSuccessfulFiles)
	}
	return done(nil)
}

func (e *Engine[R]) handleFile(h Handler[R], path string) (R, error) {
	raw, err := e.reader.Read(path)
	if err != nil {
		var zero R
		return zero, err
	}
	return h.HandleLogFile(raw, path)
}

// Files lists every regular file under directories, skipping excluded names.
// A file reachable from more than one root is listed once. Directories that
// cannot be read are returned as failures.
func (e *Engine[R]) Files(directories []string) ([]string, []Failure) {
	seen := make(map[string]struct{})
	var paths []string
	var failures []Failure

	for _, root := range directories {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				failures = append(failures, Failure{
					Path: path,
					Kind: internalerrors.KindIO,
					Err:  internalerrors.IOError("walk", path, err),
				})
				return nil
			}
			if path != root && e.excluded(d.Name()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			key := path
			if abs, err := filepath.Abs(path); err == nil {
				key = abs
			}
			if _, dup := seen[key]; dup {
				return nil
			}
			seen[key] = struct{}{}
			paths = append(paths, path)
			return nil
		})
	}
	return paths, failures
}

func (e *Engine[R]) excluded(name string) bool {
	return e.opts.Exclude != "" && strings.Contains(name, e.opts.Exclude)
}
