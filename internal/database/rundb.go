package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/wordcrawl/internal/model"
)

// FileName is the name of the database file inside the archive directory.
const FileName = "wordcrawl.db"

// storedTimeFormat has a fixed-width fraction so stored times sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrRunNotFound is returned when no archived run matches an ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an ID prefix matches several runs.
	ErrAmbiguousID = errors.New("run ID prefix matches several runs")
)

// RunDB stores finished run reports.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive in dbDir.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a search first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the database file path.
func (r *RunDB) Path() string {
	return r.dbPath
}

// Close closes the database connection.
func (r *RunDB) Close() error {
	return r.db.Close()
}

func (r *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		strategy TEXT NOT NULL,
		goal TEXT NOT NULL,
		started_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		index_size INTEGER NOT NULL,
		pages_visited INTEGER NOT NULL,
		pages_indexed INTEGER NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_query ON runs(query);

	-- Ranked words of each run, for aggregation across runs
	CREATE TABLE IF NOT EXISTS run_words (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		word TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, rank)
	);

	CREATE INDEX IF NOT EXISTS idx_run_words_word ON run_words(word);
	`

	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores report. Saving a report with an existing ID replaces it.
func (r *RunDB) SaveRun(ctx context.Context, report *model.RunReport) (err error) {
	if report == nil || report.ID == "" {
		return errors.New("report has no ID")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_words WHERE run_id = ?`, report.ID); err != nil {
		return fmt.Errorf("failed to clear run words: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, query, strategy, goal, started_at, elapsed_ms, index_size,
		pages_visited, pages_indexed, timed_out, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		query = excluded.query,
		strategy = excluded.strategy,
		goal = excluded.goal,
		started_at = excluded.started_at,
		elapsed_ms = excluded.elapsed_ms,
		index_size = excluded.index_size,
		pages_visited = excluded.pages_visited,
		pages_indexed = excluded.pages_indexed,
		timed_out = excluded.timed_out,
		error = excluded.error,
		report_json = excluded.report_json
	`,
		report.ID,
		report.Query.String(),
		report.Options.Strategy.String(),
		report.Options.Goal.String(),
		report.StartedAt.UTC().Format(storedTimeFormat),
		report.Elapsed.Milliseconds(),
		report.IndexSize,
		report.PagesVisited,
		report.PagesIndexed,
		report.TimedOut,
		report.Error,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for i, w := range report.Words {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO run_words (run_id, rank, word, count) VALUES (?, ?, ?, ?)`,
			report.ID, i+1, w.Word, w.Count,
		); err != nil {
			return fmt.Errorf("failed to save run word %q: %w", w.Word, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun returns the run whose ID equals id or, failing that, starts with it.
func (r *RunDB) GetRun(ctx context.Context, id string) (*model.RunReport, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}

	var reportJSON string
	err := r.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		reportJSON, err = r.getRunByPrefix(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

func (r *RunDB) getRunByPrefix(ctx context.Context, prefix string) (string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT report_json FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`,
		len(prefix), prefix,
	)
	if err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	matches := make([]string, 0, 2)
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return "", fmt.Errorf("failed to scan run: %w", err)
		}
		matches = append(matches, reportJSON)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
	}
}

// RunSummary is the metadata of an archived run, without its word list.
type RunSummary struct {
	ID           string        `json:"id"`
	Query        string        `json:"query"`
	Strategy     string        `json:"strategy"`
	Goal         string        `json:"goal"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed"`
	IndexSize    int           `json:"index_size"`
	PagesVisited int           `json:"pages_visited"`
	PagesIndexed int           `json:"pages_indexed"`
	TimedOut     bool          `json:"timed_out"`
	Error        string        `json:"error,omitempty"`
}

// ListRuns returns the most recent runs first. A limit below 1 returns all.
// A non-empty query restricts the list to runs of that exact query.
func (r *RunDB) ListRuns(ctx context.Context, query string, limit int) ([]RunSummary, error) {
	stmt := `
	SELECT id, query, strategy, goal, started_at, elapsed_ms, index_size,
		pages_visited, pages_indexed, timed_out, COALESCE(error, '')
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 2)
	if query != "" {
		stmt += " AND query = ?"
		args = append(args, model.NewQuery(query).String())
	}
	stmt += " ORDER BY started_at DESC"
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunSummary, 0)
	for rows.Next() {
		var (
			s         RunSummary
			startedAt string
			elapsedMS int64
		)
		if err := rows.Scan(
			&s.ID, &s.Query, &s.Strategy, &s.Goal, &startedAt, &elapsedMS,
			&s.IndexSize, &s.PagesVisited, &s.PagesIndexed, &s.TimedOut, &s.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		s.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, s)
	}
	return results, rows.Err()
}

// DeleteRun removes a run and its words. It returns ErrRunNotFound when no
// run has the exact ID.
func (r *RunDB) DeleteRun(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM run_words WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run words: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// WordTotal is a word aggregated over archived runs.
type WordTotal struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
	Runs  int    `json:"runs"`
}

// TopWords sums the ranked words of every archived run and returns the limit
// highest totals. Ties are ordered by word.
func (r *RunDB) TopWords(ctx context.Context, limit int) ([]WordTotal, error) {
	if limit < 1 {
		limit = model.DefaultResultCount
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT word, SUM(count) AS total, COUNT(DISTINCT run_id)
	FROM run_words
	GROUP BY word
	ORDER BY total DESC, word ASC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate words: %w", err)
	}
	defer rows.Close()

	results := make([]WordTotal, 0)
	for rows.Next() {
		var w WordTotal
		if err := rows.Scan(&w.Word, &w.Count, &w.Runs); err != nil {
			return nil, fmt.Errorf("failed to scan word: %w", err)
		}
		results = append(results, w)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries every known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
