package anonymize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/olegiv/battlelog-tools-go/internal/battlelog"
	"github.com/olegiv/battlelog-tools-go/internal/engine"
	internalerrors "github.com/olegiv/battlelog-tools-go/internal/errors"
	"github.com/olegiv/battlelog-tools-go/internal/logging"
)

var _ engine.Handler[Result] = (*Handler)(nil)

// errOutputDir means no file at all can be created in the output directory.
var errOutputDir = errors.New("output directory is not writable")

// Options configures a Handler.
type Options struct {
	OutputDir string
	Safe      bool
}

// Result describes one written file.
type Result struct {
	BattleNumber string
	OutputPath   string
}

// Handler anonymizes each log and writes it to <OutputDir>/<number>.log.json.
type Handler struct {
	anonymizer *Anonymizer
	outputDir  string
	log        *logging.SecureLogger

	written     int
	overwritten int
}

// NewHandler creates a Handler, creating the output directory if needed.
func NewHandler(opts Options, log *logging.SecureLogger) (*Handler, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("anonymize output directory is required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, internalerrors.IOError("create", opts.OutputDir, err)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		anonymizer: &Anonymizer{Safe: opts.Safe},
		outputDir:  opts.OutputDir,
		log:        log,
	}, nil
}

// HandleLogFile anonymizes one log and writes the result. The output file
// only appears once it is complete. Losing the output directory stops the
// whole run, since every later log would fail the same way.
func (h *Handler) HandleLogFile(raw []byte, path string) (Result, error) {
	out, err := h.anonymizer.Anonymize(raw, filepath.Base(path))
	if err != nil {
		return Result{}, err
	}

	target := filepath.Join(h.outputDir, out.BattleNumber+battlelog.LogFileSuffix)
	if err := writeFileAtomic(target, out.JSON); err != nil {
		if errors.Is(err, errOutputDir) {
			return Result{}, fmt.Errorf("%w: %w", engine.ErrAbort, err)
		}
		return Result{}, err
	}
	return Result{BattleNumber: out.BattleNumber, OutputPath: target}, nil
}

// HandleResults reports how many files were written. Logs sharing a battle
// number write to the same file; the last one wins.
func (h *Handler) HandleResults(results []Result) error {
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, dup := seen[r.OutputPath]; dup {
			h.overwritten++
			continue
		}
		seen[r.OutputPath] = struct{}{}
	}
	h.written = len(seen)

	event := h.log.Info()
	if h.overwritten > 0 {
		event = h.log.Warn()
	}
	event.
		Int("written", h.written).
		Int("overwritten", h.overwritten).
		Str("output_dir", h.outputDir).
		Msg("Anonymized logs written")
	return nil
}

// Written returns the number of distinct output files once the run has finished.
func (h *Handler) Written() int {
	return h.written
}

// Overwritten returns the number of logs whose output was replaced by
// another log with the same battle number.
func (h *Handler) Overwritten() int {
	return h.overwritten
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".anonymize-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", errOutputDir, internalerrors.IOError("create", path, err))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return internalerrors.IOError("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return internalerrors.IOError("write", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return internalerrors.IOError("chmod", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return internalerrors.IOError("rename", path, err)
	}
	return nil
}
