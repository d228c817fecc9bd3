package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the driver and placeholder style of a SQL store.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// SQL keeps each record as a JSON field map in a (k, fields, updated_at) table.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

// OpenDB opens and pings a database for the given dialect.
func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty DSN for %s store", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	if dialect == SQLite {
		// one writer avoids "database is locked"
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting busy timeout: %w", err)
		}
	}

	return db, nil
}

// NewSQL wraps an open database. The table name comes from configuration,
// never from request input.
func NewSQL(db *sql.DB, dialect Dialect, table string) (*SQL, error) {
	if !validIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQL{db: db, dialect: dialect, table: table, now: time.Now}, nil
}

// Init creates the backing table if it does not exist. Run it once at startup
// or from the provision command.
func (s *SQL) Init(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		k TEXT PRIMARY KEY,
		fields TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("error creating table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) (Record, error) {
	query := fmt.Sprintf("SELECT fields FROM %s WHERE k = %s", s.table, s.placeholder(1))

	var raw string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s from %s: %w", key, s.table, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("error decoding %s from %s: %w", key, s.table, err)
	}
	return rec, nil
}

func (s *SQL) Put(ctx context.Context, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("error encoding record %s: %w", key, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (k, fields, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT (k) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		s.table, s.placeholder(1), s.placeholder(2), s.placeholder(3))

	if _, err := s.db.ExecContext(ctx, query, key, string(raw), FormatTime(s.now())); err != nil {
		return fmt.Errorf("error writing %s to %s: %w", key, s.table, err)
	}
	return nil
}

func (s *SQL) placeholder(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
