package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added participant lookup index on record_participants
const currentSchemaVersion = 2

// Supported database/sql driver names.
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverModernc = "sqlite"  // modernc.org/sqlite (pure Go)
)

// Store provides durable storage for owners and records.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db    *sql.DB
	ids   IDGenerator
	clock func() time.Time
}

// Option configures a Store.
type Option func(*options)

type options struct {
	driver string
	ids    IDGenerator
	clock  func() time.Time
}

// WithDriver selects the database/sql driver (DriverMattn or DriverModernc).
//
// Default: DriverMattn
func WithDriver(driver string) Option {
	return func(o *options) { o.driver = driver }
}

// WithIDGenerator overrides identity assignment for new owners and records.
//
// Default: UUIDv7Generator
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithNow overrides the source of created_at/updated_at timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Pass ":memory:" for an isolated in-memory database. This function is
// idempotent - safe to call multiple times on the same path.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{
		driver: DriverMattn,
		ids:    UUIDv7Generator{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver != DriverMattn && o.driver != DriverModernc {
		return nil, fmt.Errorf("unsupported driver %q: must be %q or %q", o.driver, DriverMattn, DriverModernc)
	}

	db, err := sql.Open(o.driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps per-connection pragmas and in-memory databases consistent.
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

	return &Store{db: db, ids: o.ids, clock: o.clock}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
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
	}
	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the participant lookup index for databases created
// before it was part of schema.sql.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_record_participants_participant
		ON record_participants(participant_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// migrateToV2 rewrites instants stored as integer Unix nanoseconds into
// fixed-width RFC 3339 text. SQLite truncates integer division toward zero,
// so the fraction is normalized to [0, 1e9) before splitting off seconds.
func migrateToV2(db *sql.DB) error {
	columns := []struct{ table, column string }{
		{"owners", "created_at"},
		{"records", "start_time"},
		{"records", "end_time"},
		{"records", "created_at"},
		{"records", "updated_at"},
	}
	for _, c := range columns {
		stmt := fmt.Sprintf(`
			UPDATE %[1]s
			SET %[2]s = strftime('%%Y-%%m-%%dT%%H:%%M:%%S',
					(%[2]s - (%[2]s %% 1000000000 + 1000000000) %% 1000000000) / 1000000000, 'unixepoch')
				|| '.' || printf('%%09d', (%[2]s %% 1000000000 + 1000000000) %% 1000000000) || 'Z'
			WHERE typeof(%[2]s) = 'integer'
		`, c.table, c.column)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v2: %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
