// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. A personal catalog
// with a handful of tables is exactly the workload it is built for, and tests can
// use ":memory:" for a throwaway database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation of
// the SQLite C code, so no C compiler is needed and it builds everywhere Go does.
//
// WHY sqlx ON TOP OF database/sql?
// sqlx keeps the database/sql model (same pool, same ? placeholders) but adds
// Get/Select, which scan rows into structs by their `db:"..."` tags. That removes
// the long, order-sensitive Scan(&a, &b, &c...) lists for every model.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/learning-shelf/internal/apperror"
)

// driverName is the name modernc.org/sqlite registers with database/sql at init.
const driverName = "sqlite"

// DB wraps a sqlx connection pool and provides repository methods.
//
// A single *DB implements every repository interface (users, sessions, videos,
// resources). The compile-time checks live next to each group of methods.
type DB struct {
	conn *sqlx.DB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/shelf.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
//
// ONE CONNECTION:
// SQLite allows a single writer at a time, and every connection to ":memory:" is a
// different, empty database. Capping the pool at one connection gives every query
// the same database and serialises writes instead of surfacing SQLITE_BUSY.
// PRAGMAs are per-connection, so this also keeps foreign_keys=ON in effect.
func New(dbPath string) (*DB, error) {
	conn, err := sqlx.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// sql.Open does not connect; Ping surfaces a bad path or permissions now.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if dbPath != ":memory:" {
		// WAL lets readers proceed while a write is in progress.
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	// Foreign keys are OFF by default in SQLite (for backwards compatibility).
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema.
//
// CREATE TABLE IF NOT EXISTS makes every statement idempotent, so migrate runs on
// every start. Columns added after the first release go through
// addColumnIfNotExists, because ALTER TABLE has no IF NOT EXISTS form.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			title      TEXT NOT NULL DEFAULT '',
			video_id   TEXT,
			playlist   TEXT NOT NULL DEFAULT 'General',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_videos_user_playlist ON videos(user_id, playlist);
	`)
	if err != nil {
		return fmt.Errorf("creating videos table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS resources (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    INTEGER NOT NULL REFERENCES users(id),
			title      TEXT NOT NULL DEFAULT '',
			type       TEXT NOT NULL CHECK (type IN ('link', 'pdf')),
			content    TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_resources_user_id ON resources(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating resources table: %w", err)
	}

	// Sessions used to keep expires_at as DATETIME text. Rows are disposable
	// (at worst everyone signs in again), so an old table is simply replaced.
	if err := db.dropSessionsWithTextExpiry(); err != nil {
		return err
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
		CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}

	// GitHub sign-in: nullable github_id. SQLite cannot ADD COLUMN ... UNIQUE,
	// so uniqueness comes from a separate index (NULLs never collide).
	if err := db.addColumnIfNotExists("users", "github_id", "INTEGER"); err != nil {
		return fmt.Errorf("adding github_id to users: %w", err)
	}
	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id ON users(github_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users github_id index: %w", err)
	}

	return nil
}

// dropSessionsWithTextExpiry drops the sessions table when its expires_at
// column is not INTEGER.
func (db *DB) dropSessionsWithTextExpiry() error {
	var columnType string
	err := db.conn.Get(&columnType,
		`SELECT type FROM pragma_table_info('sessions') WHERE name = 'expires_at'`)
	if errors.Is(err, sql.ErrNoRows) || strings.EqualFold(columnType, "INTEGER") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking sessions.expires_at: %w", err)
	}
	if _, err := db.conn.Exec(`DROP TABLE sessions`); err != nil {
		return fmt.Errorf("dropping old sessions table: %w", err)
	}
	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent, so they are safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.Get(&count,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate value
// for a UNIQUE column or index.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// checkAffected turns "zero rows affected" into a NotFound error.
func checkAffected(rowsAffected int64, resource string, id int64) error {
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
