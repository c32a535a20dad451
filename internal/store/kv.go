package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KVGet reads a durable key, returning ok=false when absent.
func (s *Store) KVGet(ctx context.Context, key string) (string, bool, error) {
	var v string
	q := s.rebind(`SELECT v FROM kv_store WHERE k = ?`)
	err := s.db.GetContext(ctx, &v, q, key)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	return v, true, nil
}

// KVSet writes a durable key.
func (s *Store) KVSet(ctx context.Context, key, value string) error {
	q := s.rebind(`INSERT INTO kv_store (k, v, updated_at_utc) VALUES (?, ?, ?)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v, updated_at_utc = excluded.updated_at_utc`)
	if _, err := s.db.ExecContext(ctx, q, key, value, FormatTS(time.Now())); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// KVGetTime reads a durable timestamp checkpoint.
func (s *Store) KVGetTime(ctx context.Context, key string) (time.Time, bool, error) {
	v, ok, err := s.KVGet(ctx, key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := ParseTS(v)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// KVSetTime writes a durable timestamp checkpoint.
func (s *Store) KVSetTime(ctx context.Context, key string, t time.Time) error {
	return s.KVSet(ctx, key, FormatTS(t))
}
