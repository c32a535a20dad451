// Package store is the persistence layer: events, price bars,
// forecasts, realized impacts and the durable key-value table. It
// speaks sqlite (default) or postgres through one narrow surface;
// dialect differences are confined to the driver name and placeholder
// rebinding. All timestamps are persisted as ISO-8601 UTC strings with
// a trailing Z.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// TSFormat is the canonical persisted timestamp layout.
const TSFormat = "2006-01-02T15:04:05Z"

// Store wraps the database handle and exposes the repositories.
type Store struct {
	db      *sqlx.DB
	dialect string // "sqlite" or "postgres"
	log     zerolog.Logger
}

// Open connects according to databaseURL: "sqlite:<path>" or a
// postgres:// DSN. Init failures are fatal; runtime errors during
// optional upserts are the caller's to swallow.
func Open(databaseURL string, log zerolog.Logger) (*Store, error) {
	var (
		db      *sqlx.DB
		dialect string
		err     error
	)
	switch {
	case strings.HasPrefix(databaseURL, "sqlite:"):
		path := strings.TrimPrefix(databaseURL, "sqlite:")
		db, err = sqlx.Open("sqlite", path)
		dialect = "sqlite"
		if err == nil {
			// modernc sqlite serializes writes; one connection avoids
			// SQLITE_BUSY under concurrent handlers.
			db.SetMaxOpenConns(1)
		}
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		db, err = sqlx.Open("postgres", databaseURL)
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL %q", databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db, dialect: dialect, log: log.With().Str("component", "store").Logger()}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the handle.
func (s *Store) Close() error { return s.db.Close() }

// rebind translates '?' placeholders to the dialect's form.
func (s *Store) rebind(query string) string { return s.db.Rebind(query) }

// FormatTS renders t in the persisted layout.
func FormatTS(t time.Time) string { return t.UTC().Format(TSFormat) }

// ParseTS parses a persisted timestamp, tolerating fractional seconds.
func ParseTS(v string) (time.Time, error) {
	if t, err := time.Parse(TSFormat, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
