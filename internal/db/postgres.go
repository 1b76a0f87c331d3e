package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/postgres.sql
var postgresSchema string

// Postgres is the production store backed by a pgx connection pool
type Postgres struct {
	*sqlStore
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and applies the schema
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Postgres{sqlStore: newSQLStore(pgQuerier{pool}, postgresDialect), pool: pool}, nil
}

// Close closes the connection pool
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

var postgresDialect = dialect{
	rebind:    rebindDollar,
	timestamp: func(t time.Time) any { return t },
	timeDest: func() (any, func() *time.Time) {
		var t *time.Time
		return &t, func() *time.Time { return t }
	},
	isNoRows: func(err error) bool { return errors.Is(err, pgx.ErrNoRows) },
}

// rebindDollar rewrites ? placeholders to $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type pgQuerier struct {
	pool *pgxpool.Pool
}

func (q pgQuerier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := q.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q pgQuerier) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return q.pool.QueryRow(ctx, query, args...)
}

func (q pgQuerier) query(ctx context.Context, query string, args ...any) (rowIterator, error) {
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgRows{rows}, nil
}

// pgRows adapts pgx.Rows, whose Close reports nothing, to rowIterator
type pgRows struct {
	pgx.Rows
}

func (r pgRows) Close() error {
	r.Rows.Close()
	return r.Rows.Err()
}
