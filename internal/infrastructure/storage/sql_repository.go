package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"PulseWatch/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	postsTable    = "political_posts"
	analysesTable = "sentiment_analysis"
	healthTable   = "system_health"

	// lookupChunk keeps IN lists well below driver parameter limits.
	lookupChunk = 500
)

// Timestamps are stored as fixed-width UTC text so that ordering and MAX()
// behave the same on both drivers.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLRepository persists posts, analyses and health events in Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	driver  string
	now     func() time.Time
}

var _ ports.RecordStore = (*SQLRepository)(nil)

// NewSQLRepository wires an open sql.DB for the given driver.
func NewSQLRepository(db *sql.DB, driver string) (*SQLRepository, error) {
	var placeholder sq.PlaceholderFormat = sq.Dollar
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		placeholder = sq.Question
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return &SQLRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		driver:  driver,
		now:     time.Now,
	}, nil
}

// Open connects to the database and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*SQLRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One connection keeps pragmas effective for every statement.
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	repo, err := NewSQLRepository(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repo.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate creates missing tables and indexes.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("database is not configured")
	}
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *SQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLRepository) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *SQLRepository) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.QueryContext(ctx, query, args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.QueryRowContext(ctx, query, args...), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		out = append(out, items[start:min(start+size, len(items))])
	}
	return out
}
