// Package storage keeps a history of runs in SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olegiv/battlelog-tools-go/internal/logging"
	_ "modernc.org/sqlite"
)

// Storage handles database operations
type Storage struct {
	db  *sql.DB
	log *logging.SecureLogger
}

// Run is one invocation of the tool over a set of directories
type Run struct {
	ID           int64
	Timestamp    time.Time
	Mode         string // "statistics", "search" or "anonymize"
	CollectionID string // Empty when directories were given directly
	Directories  []string
	Attempted    int
	Succeeded    int
	Duration     time.Duration
	Failures     []Failure
	Formats      []FormatCount // statistics runs only
	Matches      int           // search runs only
	Written      int           // anonymize runs only
	Overwritten  int           // anonymize runs only
}

// Failed returns the number of recorded failures
func (r *Run) Failed() int {
	return len(r.Failures)
}

// Failure is a file that could not be handled during a run
type Failure struct {
	Path    string
	Kind    string
	Message string
}

// FormatCount holds the per-format counters of a statistics run
type FormatCount struct {
	Format string
	Wins   int
	Losses int
	Total  int
}

// FormatPoint is one run's counters for a format, used for trends
type FormatPoint struct {
	RunID     int64
	Timestamp time.Time
	FormatCount
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute
)

// New creates a new storage instance. A nil logger discards output.
func New(dbPath string, log *logging.SecureLogger) (*Storage, error) {
	if log == nil {
		log = logging.Nop()
	}

	// Create directory if it doesn't exist (0700 for security - owner only)
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The busy timeout avoids "database is locked" errors when two runs overlap
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db, log: log}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations
const currentSchemaVersion = 2

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	// Create schema_version table first (tracks migration state)
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	if err := s.migrateSchema(s.getSchemaVersion()); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		return 0 // No version set, needs full migration
	}
	return version
}

// setSchemaVersion updates the schema version
func (s *Storage) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	s.log.Info().
		Int("from", currentVersion).
		Int("to", currentSchemaVersion).
		Msg("Migrating database schema")

	// Migration 0 -> 1: runs and their failures
	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	// Migration 1 -> 2: per-format counters of statistics runs
	if currentVersion < 2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	s.log.Debug().Int("version", currentSchemaVersion).Msg("Schema migration completed")
	return nil
}

// migrateV1 creates the runs and failures tables
func (s *Storage) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		mode TEXT NOT NULL,
		collection_id TEXT NOT NULL DEFAULT '',
		directories TEXT NOT NULL,
		attempted INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		matches INTEGER NOT NULL DEFAULT 0,
		written INTEGER NOT NULL DEFAULT 0,
		overwritten INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 creates the format_stats table
func (s *Storage) migrateV2() error {
	schema := `
	CREATE TABLE IF NOT EXISTS format_stats (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		format TEXT NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, format)
	);

	CREATE INDEX IF NOT EXISTS idx_format_stats_format ON format_stats(format);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun saves a run with its failures and format counters in one transaction
func (s *Storage) SaveRun(run *Run) (err error) {
	directoriesJSON, err := json.Marshal(run.Directories)
	if err != nil {
		return fmt.Errorf("failed to marshal directories: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.Exec(`
		INSERT INTO runs (
			timestamp, mode, collection_id, directories,
			attempted, succeeded, failed, duration_ms,
			matches, written, overwritten
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Timestamp.UTC().Format(time.RFC3339),
		run.Mode,
		run.CollectionID,
		string(directoriesJSON),
		run.Attempted,
		run.Succeeded,
		run.Failed(),
		run.Duration.Milliseconds(),
		run.Matches,
		run.Written,
		run.Overwritten,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for _, f := range run.Failures {
		if _, err = tx.Exec(
			`INSERT INTO failures (run_id, path, kind, message) VALUES (?, ?, ?, ?)`,
			id, f.Path, f.Kind, f.Message,
		); err != nil {
			return fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	for _, fc := range run.Formats {
		if _, err = tx.Exec(
			`INSERT INTO format_stats (run_id, format, wins, losses, total) VALUES (?, ?, ?, ?, ?)`,
			id, fc.Format, fc.Wins, fc.Losses, fc.Total,
		); err != nil {
			return fmt.Errorf("failed to insert format stats: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = id
	return nil
}

// GetRecentRuns retrieves runs from the last N days, newest first.
// An empty mode matches every mode.
func (s *Storage) GetRecentRuns(days int, mode string) ([]*Run, error) {
	cutoffDate := cutoff(days)

	query := `
		SELECT id, timestamp, mode, collection_id, directories,
		       attempted, succeeded, duration_ms, matches, written, overwritten
		FROM runs
		WHERE timestamp >= ?
	`
	args := []interface{}{cutoffDate}
	if mode != "" {
		query += ` AND mode = ?`
		args = append(args, mode)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			s.closeRows(rows)
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		s.closeRows(rows)
		return nil, err
	}
	s.closeRows(rows)

	// Children are loaded after the cursor is closed; the pool has a single connection
	for _, run := range runs {
		if err := s.loadChildren(run); err != nil {
			return nil, err
		}
	}

	return runs, nil
}

// GetFormatHistory returns the counters recorded for format over the last
// N days, oldest first
func (s *Storage) GetFormatHistory(format string, days int) ([]FormatPoint, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.timestamp, f.format, f.wins, f.losses, f.total
		FROM format_stats f
		JOIN runs r ON r.id = f.run_id
		WHERE f.format = ? AND r.timestamp >= ?
		ORDER BY r.timestamp ASC, r.id ASC
	`, format, cutoff(days))
	if err != nil {
		return nil, fmt.Errorf("failed to query format history: %w", err)
	}
	defer s.closeRows(rows)

	var points []FormatPoint
	for rows.Next() {
		var p FormatPoint
		var timestamp string
		if err := rows.Scan(&p.RunID, &timestamp, &p.Format, &p.Wins, &p.Losses, &p.Total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if p.Timestamp, err = time.Parse(time.RFC3339, timestamp); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// CleanupOldRuns deletes runs older than N days together with their
// failures and format counters
func (s *Storage) CleanupOldRuns(days int) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM runs WHERE timestamp < ?`, cutoff(days))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old runs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// GetStatistics returns database statistics
func (s *Storage) GetStatistics() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, err
	}
	stats["total_runs"] = total

	// Mode distribution
	rows, err := s.db.Query(`SELECT mode, COUNT(*) FROM runs GROUP BY mode`)
	if err != nil {
		return nil, err
	}
	modeDist := make(map[string]int)
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			s.closeRows(rows)
			return nil, err
		}
		modeDist[mode] = count
	}
	s.closeRows(rows)
	stats["mode_distribution"] = modeDist

	var attempted, succeeded int64
	if err := s.db.QueryRow(
		`SELECT COALESCE(SUM(attempted), 0), COALESCE(SUM(succeeded), 0) FROM runs`,
	).Scan(&attempted, &succeeded); err != nil {
		return nil, err
	}
	stats["total_files_attempted"] = attempted
	stats["total_files_succeeded"] = succeeded

	var failures int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM failures`).Scan(&failures); err != nil {
		return nil, err
	}
	stats["total_failures"] = failures

	return stats, nil
}

// loadChildren fills in the failures and format counters of run
func (s *Storage) loadChildren(run *Run) error {
	rows, err := s.db.Query(`SELECT path, kind, message FROM failures WHERE run_id = ? ORDER BY id`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query failures: %w", err)
	}
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Path, &f.Kind, &f.Message); err != nil {
			s.closeRows(rows)
			return fmt.Errorf("failed to scan failure: %w", err)
		}
		run.Failures = append(run.Failures, f)
	}
	s.closeRows(rows)

	rows, err = s.db.Query(`SELECT format, wins, losses, total FROM format_stats WHERE run_id = ? ORDER BY format`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query format stats: %w", err)
	}
	defer s.closeRows(rows)
	for rows.Next() {
		var fc FormatCount
		if err := rows.Scan(&fc.Format, &fc.Wins, &fc.Losses, &fc.Total); err != nil {
			return fmt.Errorf("failed to scan format stats: %w", err)
		}
		run.Formats = append(run.Formats, fc)
	}
	return rows.Err()
}

// scanRun scans a database row into a Run struct
func scanRun(rows *sql.Rows) (*Run, error) {
	var (
		run             Run
		timestamp       string
		directoriesJSON string
		durationMs      int64
	)

	err := rows.Scan(
		&run.ID, &timestamp, &run.Mode, &run.CollectionID, &directoriesJSON,
		&run.Attempted, &run.Succeeded, &durationMs,
		&run.Matches, &run.Written, &run.Overwritten,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if run.Timestamp, err = time.Parse(time.RFC3339, timestamp); err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(directoriesJSON), &run.Directories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal directories: %w", err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond

	return &run, nil
}

func (s *Storage) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close database rows")
	}
}

func cutoff(days int) string {
	return time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
