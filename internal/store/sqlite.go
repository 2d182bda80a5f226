package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/task"
)

const busyTimeoutMS = 5000

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		name   TEXT PRIMARY KEY,
		record TEXT NOT NULL
	)`,
}

// SQLiteStore keeps one row per task. The record column holds the same JSON
// record the file backend writes.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *logger.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string, log *logger.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMS)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: apply schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, path: path, logger: log}, nil
}

// Load reads every row. Rows whose record cannot be decoded are skipped.
func (s *SQLiteStore) Load() map[string]task.Task {
	tasks := map[string]task.Task{}

	rows, err := s.db.QueryContext(context.Background(), `SELECT name, record FROM tasks`)
	if err != nil {
		s.logger.Error("failed to query tasks", err,
			logger.Field{Key: "file", Value: s.path})
		return tasks
	}
	defer rows.Close()

	for rows.Next() {
		var name, record string
		if err := rows.Scan(&name, &record); err != nil {
			s.logger.Error("failed to scan task row", err)
			continue
		}

		var t task.Task
		if err := json.Unmarshal([]byte(record), &t); err != nil {
			s.logger.Warn("skipping malformed task record",
				logger.Field{Key: "task", Value: name},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		tasks[name] = t
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("failed to iterate task rows", err,
			logger.Field{Key: "file", Value: s.path})
		return map[string]task.Task{}
	}

	return withNames(tasks)
}

// Save replaces all rows in a single transaction.
func (s *SQLiteStore) Save(tasks map[string]task.Task) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("sqlite: clear tasks: %w", err)
	}

	for name, t := range tasks {
		record, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("sqlite: marshal task %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks (name, record) VALUES (?, ?)`, name, string(record)); err != nil {
			return fmt.Errorf("sqlite: insert task %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}

	s.logger.Debug("tasks saved",
		logger.Field{Key: "count", Value: len(tasks)},
		logger.Field{Key: "file", Value: s.path})

	return nil
}

// Lock takes a cross-process lock beside the database file so that a
// reload and the following Save are not interleaved with another writer.
func (s *SQLiteStore) Lock() (func(), error) {
	return lockPath(s.path)
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
