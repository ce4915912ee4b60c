package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, runs schema
// initialization, and configures WAL mode for concurrent reads.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS reports (
  session_id TEXT PRIMARY KEY,
  student_name TEXT NOT NULL DEFAULT '',
  project_title TEXT NOT NULL DEFAULT '',
  composite REAL NOT NULL,
  evaluation TEXT NOT NULL,
  questions INTEGER NOT NULL DEFAULT 0,
  answers INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema changes that were added after the
// initial schema. Each migration is idempotent so it is safe to call on every
// database open.
func runMigrations(db *sql.DB) error {
	// --- Migration v2: archived Q/A transcript ---
	hasTranscript, err := columnExists(db, "reports", "transcript")
	if err != nil {
		return fmt.Errorf("check transcript column: %w", err)
	}
	if !hasTranscript {
		if _, err := db.Exec(`ALTER TABLE reports ADD COLUMN transcript TEXT`); err != nil {
			return fmt.Errorf("run migration v2: %w", err)
		}
	}

	// --- Migration v3: composite ordering index ---
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_reports_composite ON reports(composite)`); err != nil {
		return fmt.Errorf("run migration v3: %w", err)
	}
	return nil
}

// ReportCount returns the total number of archived reports.
func (db *DB) ReportCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// columnExists checks if a column exists in a table. It properly closes the
// rows cursor before returning, avoiding deadlocks with MaxOpenConns(1).
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(
		fmt.Sprintf("SELECT name FROM pragma_table_info('%s') WHERE name = ?", table),
		column,
	)
	if err != nil {
		return false, err
	}
	found := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}
	return found, nil
}
