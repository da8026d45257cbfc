package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when an order id has no row.
var ErrNotFound = errors.New("order not found")

// connPragmas are set on every Open. Several peer processes may share one
// file, so a writer waits for the lock rather than failing with SQLITE_BUSY.
var connPragmas = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
}

// migrations[v] takes a file from user_version v to v+1. Append only.
var migrations = []string{
	// v1: board reads walk orders by creation time.
	`CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at, id)`,
}

// Store keeps the orders of every peer on a host in one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the order database at path and brings its schema up
// to date. Opening the same file again, from this process or another peer,
// is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open order database %s: %w", path, err)
	}
	// A single connection keeps the pragmas in force and matches SQLite's
	// single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func prepare(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect to order database: %w", err)
	}
	for _, p := range connPragmas {
		if _, err := db.Exec("PRAGMA " + p.name + " = " + p.value); err != nil {
			return fmt.Errorf("set pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create order tables: %w", err)
	}
	return migrate(db)
}

// migrate applies the migrations the file has not seen. Each one commits
// together with its version bump, so an interrupted Open resumes cleanly.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrateStep(db, v); err != nil {
			return fmt.Errorf("migrate order schema to v%d: %w", v+1, err)
		}
	}
	return nil
}

func migrateStep(db *sql.DB, from int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migrations[from]); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", from+1)); err != nil {
		return err
	}
	return tx.Commit()
}

// schemaVersion reads user_version.
func (s *Store) schemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// pragma returns the current value of a connection pragma.
func (s *Store) pragma(name string) (string, error) {
	var v string
	err := s.db.QueryRow("PRAGMA " + name).Scan(&v)
	return v, err
}
