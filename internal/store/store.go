// Package store provides the SQLite-backed code store for scandb.
//
// The store is a persistent set of decoded barcode payloads keyed by their
// literal value. Uniqueness is enforced by the table's primary key, so a
// code can only ever be stored once.
//
// Architecture:
//   - Database file: <data_dir>/SQLite/barcodes.db
//   - WAL mode: readers (status, list) never block the scan session
//   - Schema: a single barcodes table with code as primary key
//
// The store is not safe for interleaved check-then-insert sequences across
// goroutines; the scan controller serializes those.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrDuplicate is returned by Insert when the code is already stored.
var ErrDuplicate = errors.New("code already exists")

const (
	createTable = `CREATE TABLE IF NOT EXISTS barcodes (code TEXT PRIMARY KEY UNIQUE)`
	dropTable   = `DROP TABLE IF EXISTS barcodes`
)

// Store wraps the SQLite connection holding scanned codes.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store activity.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates a new store at the specified path.
//
// The parent directory is created if missing. The schema is not ensured;
// call EnsureSchema before use.
//
// The caller MUST call Close() when done.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// One connection: every statement runs in order on the same handle.
	conn.SetMaxOpenConns(1)

	s := &Store{
		conn:   conn,
		path:   path,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.conn.Exec(p); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s.logger.Printf("Opened database %s", path)
	return s, nil
}

// Path returns the location of the backing database file.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// EnsureSchema creates the barcodes table if it does not exist.
// This is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Exists reports whether code is already stored.
func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	var found int
	err := s.conn.QueryRowContext(ctx, "SELECT 1 FROM barcodes WHERE code = ?", code).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up code %q: %w", code, err)
	}
	return true, nil
}

// Insert stores code. It returns ErrDuplicate if the code is present.
func (s *Store) Insert(ctx context.Context, code string) error {
	res, err := s.conn.ExecContext(ctx,
		"INSERT INTO barcodes (code) VALUES (?) ON CONFLICT(code) DO NOTHING", code)
	if err != nil {
		return fmt.Errorf("failed to insert code %q: %w", code, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert code %q: %w", code, err)
	}
	if n == 0 {
		return ErrDuplicate
	}

	s.logger.Printf("Inserted code %q", code)
	return nil
}

// Count returns the number of stored codes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM barcodes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get code count: %w", err)
	}
	return count, nil
}

// DeleteAll removes every stored code, keeping the table.
func (s *Store) DeleteAll(ctx context.Context) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM barcodes")
	if err != nil {
		return fmt.Errorf("failed to delete codes: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Printf("Deleted %d codes", n)
	return nil
}

// Recreate drops the barcodes table and creates it again.
//
// The net effect on stored rows matches DeleteAll; the difference is that
// SQLite releases the table's pages instead of emptying them.
func (s *Store) Recreate(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, dropTable); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to recreate table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Println("Recreated barcodes table")
	return nil
}

// List returns stored codes in insertion order.
// A limit of 0 or less returns every code.
func (s *Store) List(ctx context.Context, limit int) ([]string, error) {
	query := "SELECT code FROM barcodes ORDER BY rowid ASC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating codes: %w", err)
	}

	return codes, nil
}

// Checkpoint folds the WAL into the main database file so the file on disk
// holds every committed code.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	return nil
}
