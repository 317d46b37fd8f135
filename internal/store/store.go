package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"offstore/internal/task"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added partial unique index on Objects(className, objectId)
const currentSchemaVersion = 1

// SQLite limits the number of bound parameters per statement. Batch
// operations over uuid lists must chunk to stay under it.
const maxSQLVariables = 999

// Store provides durable storage for cached object rows and their group
// membership edges. It is backed by SQLite with WAL mode.
//
// Every statement is funneled through a single dedicated goroutine (see
// task.Executor): the handle's transaction state is confined to that
// goroutine, which is what makes multi-statement transactions safe even
// though callers are concurrent. Store methods block the calling goroutine
// until their statement has run; they must never be called from inside an
// Update callback, which already runs on the executor.
type Store struct {
	db   *sql.DB
	exec *task.Executor
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent read access
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps transaction state on one handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, exec: task.NewExecutor()}, nil
}

// Close drains pending operations and closes the database.
func (s *Store) Close() error {
	if s.exec != nil {
		s.exec.Close()
	}
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the identity index for databases created before the
// schema carried it. CREATE INDEX IF NOT EXISTS is a no-op on new databases.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_objects_identity
		ON Objects(className, objectId)
		WHERE objectId IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// serialize runs fn on the store's executor goroutine and returns its
// error, or the context's error if cancelled before fn ran.
func (s *Store) serialize(ctx context.Context, fn func() error) error {
	var out error
	if err := s.exec.Do(ctx, func() { out = fn() }); err != nil {
		return err
	}
	return out
}
