package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
)

type barRow struct {
	Asset  string  `db:"asset"`
	TS     string  `db:"ts_utc"`
	Open   float64 `db:"open"`
	High   float64 `db:"high"`
	Low    float64 `db:"low"`
	Close  float64 `db:"close"`
	Volume float64 `db:"volume"`
}

// UpsertBars appends bars, replacing existing (asset, ts) keys.
func (s *Store) UpsertBars(ctx context.Context, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert bars: %w", err)
	}
	defer tx.Rollback()

	q := s.rebind(`INSERT INTO price_bars (asset, ts_utc, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (asset, ts_utc) DO UPDATE SET
		 open = excluded.open, high = excluded.high, low = excluded.low,
		 close = excluded.close, volume = excluded.volume`)
	for _, b := range bars {
		if _, err := tx.ExecContext(ctx, q, b.Asset, FormatTS(b.TS), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("upsert bar %s@%s: %w", b.Asset, FormatTS(b.TS), err)
		}
	}
	return tx.Commit()
}

// ListBars returns up to limit most recent bars for asset, oldest first.
func (s *Store) ListBars(ctx context.Context, asset string, limit int) ([]models.PriceBar, error) {
	var rows []barRow
	q := s.rebind(`SELECT asset, ts_utc, open, high, low, close, volume FROM price_bars
		WHERE asset = ? ORDER BY ts_utc DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, q, asset, limit); err != nil {
		return nil, fmt.Errorf("list bars %s: %w", asset, err)
	}
	out := make([]models.PriceBar, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		b, err := rows[i].toBar()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ListBarsBetween returns bars for asset in [from, to], oldest first.
func (s *Store) ListBarsBetween(ctx context.Context, asset string, from, to time.Time) ([]models.PriceBar, error) {
	var rows []barRow
	q := s.rebind(`SELECT asset, ts_utc, open, high, low, close, volume FROM price_bars
		WHERE asset = ? AND ts_utc >= ? AND ts_utc <= ? ORDER BY ts_utc ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, asset, FormatTS(from), FormatTS(to)); err != nil {
		return nil, fmt.Errorf("list bars between %s: %w", asset, err)
	}
	out := make([]models.PriceBar, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBar()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// CloseAt returns the close of the latest bar at or before ts, if one
// exists within the preceding day.
func (s *Store) CloseAt(ctx context.Context, asset string, ts time.Time) (float64, bool, error) {
	var row barRow
	q := s.rebind(`SELECT asset, ts_utc, open, high, low, close, volume FROM price_bars
		WHERE asset = ? AND ts_utc <= ? AND ts_utc >= ? ORDER BY ts_utc DESC LIMIT 1`)
	err := s.db.GetContext(ctx, &row, q, asset, FormatTS(ts), FormatTS(ts.Add(-24*time.Hour)))
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("close at %s@%s: %w", asset, FormatTS(ts), err)
	}
	return row.Close, true, nil
}

func (r barRow) toBar() (models.PriceBar, error) {
	ts, err := ParseTS(r.TS)
	if err != nil {
		return models.PriceBar{}, fmt.Errorf("parse bar ts %q: %w", r.TS, err)
	}
	return models.PriceBar{
		Asset: r.Asset, TS: ts,
		Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
	}, nil
}
