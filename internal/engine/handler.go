// Package engine runs an analysis over every battle log under a set of
// directories. Analyses plug in through the Handler interface, so the same
// walk, worker pool and failure accounting serve statistics, search and
// anonymization alike.
package engine

// Handler is the contract every analysis implements.
type Handler[R any] interface {
	// HandleLogFile processes the contents of one file and returns its
	// per-file result. It may do its own I/O (writing an anonymized copy,
	// printing a search hit) but must not mutate state shared across files.
	// Called concurrently from the worker pool.
	HandleLogFile(raw []byte, path string) (R, error)

	// HandleResults receives every successful per-file result once all
	// files have been handled. It runs exactly once, on a single goroutine,
	// and is the only place aggregate state may be mutated.
	HandleResults(results []R) error
}
