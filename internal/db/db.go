package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrUniqueViolation marks an insert that lost a race against a concurrent
// writer of the same unique key.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Querier is satisfied by both *sql.DB and *sql.Tx so store functions can
// run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*sql.DB, error) {
	if err := ensureDirectory(path); err != nil {
		return nil, err
	}

	// Write transactions take the lock at BEGIN so concurrent writers queue
	// on busy_timeout instead of failing on a stale read snapshot.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	enableWAL(conn)
	return conn, nil
}

// OpenMemory opens a private in-memory database. A single connection is
// kept so every statement sees the same database.
func OpenMemory() (*sql.DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func ensureDirectory(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	return nil
}

func enableWAL(conn *sql.DB) {
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Printf("⚠️  Could not enable WAL mode: %v", err)
	}
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint failing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUniqueViolation) {
		return true
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Migration is one labelled DDL step.
type Migration struct {
	Label string
	SQL   string
}

// RunMigrations executes statements in order, logging each label.
func RunMigrations(ctx context.Context, conn *sql.DB, banner string, statements []Migration) error {
	log.Printf("📊 Running migration: %s", banner)
	for _, s := range statements {
		if _, err := conn.ExecContext(ctx, s.SQL); err != nil {
			return fmt.Errorf("migration failed at [%s]: %w", s.Label, err)
		}
		log.Printf("  ✓ %s", s.Label)
	}
	return nil
}
