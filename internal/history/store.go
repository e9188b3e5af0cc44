// Package history persists one record per finished installation task in a
// local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/quantmind-br/snapwiz/internal/core"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// DefaultMaxEntries is the size past which a warning is logged
const DefaultMaxEntries = 1000

// Store represents the history database with separate read/write pools
type Store struct {
	write      *sql.DB
	read       *sql.DB
	path       string
	maxEntries int
	log        *zerolog.Logger
}

// New opens (creating if needed) the history database at dbPath
func New(ctx context.Context, dbPath string, maxEntries int, log *zerolog.Logger) (*Store, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Connection string with pragmas
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)
	write.SetConnMaxLifetime(time.Hour)

	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(4)
	read.SetMaxIdleConns(2)
	read.SetConnMaxIdleTime(time.Minute)
	read.SetConnMaxLifetime(time.Hour)

	s := &Store{
		write:      write,
		read:       read,
		path:       dbPath,
		maxEntries: maxEntries,
		log:        log,
	}

	if err := s.initSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

// Path returns the database file
func (s *Store) Path() string {
	return s.path
}

// Close closes both database connections
func (s *Store) Close() error {
	writeErr := s.write.Close()
	readErr := s.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL,
    package_name TEXT NOT NULL,
    package_path TEXT NOT NULL,
    format TEXT NOT NULL,
    version TEXT,
    status TEXT NOT NULL,
    error_kind TEXT,
    message TEXT,
    attempts INTEGER NOT NULL DEFAULT 0,
    ts INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_ts ON history(ts);
CREATE INDEX IF NOT EXISTS idx_history_status ON history(status);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    description TEXT
);
	`

	if _, err := s.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	_, err := s.write.ExecContext(ctx,
		"INSERT OR IGNORE INTO schema_migrations (version, description) VALUES (?, ?)",
		schemaVersion, "history table")
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

// Record implements core.HistoryWriter
func (s *Store) Record(ctx context.Context, rec core.HistoryRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	query := `
INSERT INTO history (task_id, package_name, package_path, format, version, status, error_kind, message, attempts, ts)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.write.ExecContext(ctx, query,
		rec.TaskID,
		rec.PackageName,
		rec.PackagePath,
		string(rec.Format),
		rec.Version,
		string(rec.Status),
		rec.ErrorKind,
		rec.Message,
		rec.Attempts,
		rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > s.maxEntries {
		s.log.Warn().
			Int("entries", count).
			Int("max_entries", s.maxEntries).
			Msg("installation history is large, consider exporting and clearing it")
	}
	return nil
}

// Count returns the number of stored records
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.read.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status core.TaskStatus
	Format core.PackageFormat
	// Name is matched fuzzily against the package name
	Name  string
	Limit int
}

// List returns records newest first
func (s *Store) List(ctx context.Context, f Filter) ([]core.HistoryRecord, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Format != "" {
		where = append(where, "format = ?")
		args = append(args, string(f.Format))
	}

	query := `
SELECT id, task_id, package_name, package_path, format, version, status, error_kind, message, attempts, ts
FROM history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC"

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []core.HistoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if f.Name != "" && !fuzzy.MatchNormalizedFold(f.Name, rec.PackageName) {
			continue
		}
		records = append(records, rec)
		if f.Limit > 0 && len(records) >= f.Limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

// Get retrieves a record by id
func (s *Store) Get(ctx context.Context, id int64) (*core.HistoryRecord, error) {
	row := s.read.QueryRowContext(ctx, `
SELECT id, task_id, package_name, package_path, format, version, status, error_kind, message, attempts, ts
FROM history WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history record not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Clear deletes every record and returns how many were removed
func (s *Store) Clear(ctx context.Context) (int64, error) {
	result, err := s.write.ExecContext(ctx, "DELETE FROM history")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (core.HistoryRecord, error) {
	var rec core.HistoryRecord
	var format, status string
	var version, errorKind, message sql.NullString
	var ts int64

	err := row.Scan(
		&rec.ID,
		&rec.TaskID,
		&rec.PackageName,
		&rec.PackagePath,
		&format,
		&version,
		&status,
		&errorKind,
		&message,
		&rec.Attempts,
		&ts,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan history record: %w", err)
	}

	rec.Format = core.PackageFormat(format)
	rec.Status = core.TaskStatus(status)
	rec.Version = version.String
	rec.ErrorKind = errorKind.String
	rec.Message = message.String
	rec.Timestamp = time.Unix(0, ts)
	return rec, nil
}
