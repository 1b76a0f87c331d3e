package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLite is the embedded store used for local runs and tests
type SQLite struct {
	*sqlStore
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{sqlStore: newSQLStore(sqlQuerier{db}, sqliteDialect), db: db}, nil
}

// Close closes the database
func (s *SQLite) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

var sqliteDialect = dialect{
	rebind:    func(q string) string { return q },
	timestamp: func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
	timeDest: func() (any, func() *time.Time) {
		var s sql.NullString
		return &s, func() *time.Time {
			if !s.Valid {
				return nil
			}
			t, err := time.Parse(time.RFC3339Nano, s.String)
			if err != nil {
				return nil
			}
			return &t
		}
	},
	isNoRows: func(err error) bool { return errors.Is(err, sql.ErrNoRows) },
}

type sqlQuerier struct {
	db *sql.DB
}

func (q sqlQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q sqlQuerier) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return q.db.QueryRowContext(ctx, query, args...)
}

func (q sqlQuerier) query(ctx context.Context, query string, args ...any) (rowIterator, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
