package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ Ledger = (*SQLite)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS provider_calls (
	id          TEXT PRIMARY KEY,
	endpoint    TEXT NOT NULL,
	cache_key   TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	at_unix_ns  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS provider_calls_at ON provider_calls (at_unix_ns);
`

// SQLite stores the ledger in a SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Record(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_calls (id, endpoint, cache_key, outcome, duration_ms, at_unix_ns) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Endpoint, r.Key, r.Outcome, r.Duration.Milliseconds(), r.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert provider call: %w", err)
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint, COUNT(*) FROM provider_calls WHERE at_unix_ns >= ? AND at_unix_ns < ? GROUP BY endpoint`,
		from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("count provider calls: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var endpoint string
		var n int
		if err := rows.Scan(&endpoint, &n); err != nil {
			return nil, err
		}
		out[endpoint] = n
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
