package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
)

type forecastRow struct {
	ID          string  `db:"id"`
	TS          string  `db:"ts_utc"`
	TF          string  `db:"tf"`
	Target      string  `db:"target"`
	Direction   int     `db:"direction"`
	Confidence  float64 `db:"confidence"`
	RawScore    float64 `db:"raw_score"`
	ExpiresAt   string  `db:"expires_at_utc"`
	DriversJSON string  `db:"drivers_json"`
	Rationale   string  `db:"rationale"`
}

type forecastDrivers struct {
	Market []models.ForecastDriver `json:"market"`
	News   []models.ForecastDriver `json:"news"`
}

// InsertForecast writes an immutable forecast row.
func (s *Store) InsertForecast(ctx context.Context, f models.Forecast) error {
	drivers, err := json.Marshal(forecastDrivers{Market: f.MarketDrivers, News: f.NewsDrivers})
	if err != nil {
		return fmt.Errorf("marshal drivers: %w", err)
	}
	q := s.rebind(`INSERT INTO forecasts
		(id, ts_utc, tf, target, direction, confidence, raw_score, expires_at_utc, drivers_json, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q,
		f.ID, FormatTS(f.TS), f.TF, f.Target, int(f.Direction), f.Confidence,
		f.RawScore, FormatTS(f.ExpiresAt), string(drivers), f.Rationale); err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

// LatestForecast returns the most recent forecast for (tf, target), or
// ok=false when none exists.
func (s *Store) LatestForecast(ctx context.Context, tf, target string) (models.Forecast, bool, error) {
	var row forecastRow
	q := s.rebind(`SELECT id, ts_utc, tf, target, direction, confidence, raw_score,
		expires_at_utc, COALESCE(drivers_json,'{}') AS drivers_json, COALESCE(rationale,'') AS rationale
		FROM forecasts WHERE tf = ? AND target = ? ORDER BY ts_utc DESC LIMIT 1`)
	err := s.db.GetContext(ctx, &row, q, tf, target)
	if err == sql.ErrNoRows {
		return models.Forecast{}, false, nil
	}
	if err != nil {
		return models.Forecast{}, false, fmt.Errorf("latest forecast %s/%s: %w", tf, target, err)
	}
	f, err := row.toForecast()
	return f, err == nil, err
}

// ListForecastsSince returns forecasts for tf issued at or after since,
// oldest first. An empty tf matches all timeframes.
func (s *Store) ListForecastsSince(ctx context.Context, tf string, since time.Time) ([]models.Forecast, error) {
	var rows []forecastRow
	query := `SELECT id, ts_utc, tf, target, direction, confidence, raw_score,
		expires_at_utc, COALESCE(drivers_json,'{}') AS drivers_json, COALESCE(rationale,'') AS rationale
		FROM forecasts WHERE ts_utc >= ?`
	args := []interface{}{FormatTS(since)}
	if tf != "" {
		query += ` AND tf = ?`
		args = append(args, tf)
	}
	query += ` ORDER BY ts_utc ASC`
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	out := make([]models.Forecast, 0, len(rows))
	for _, r := range rows {
		f, err := r.toForecast()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// UnscoredExpired returns forecasts whose expiry has passed and which
// have no score row yet.
func (s *Store) UnscoredExpired(ctx context.Context, now time.Time) ([]models.Forecast, error) {
	var rows []forecastRow
	q := s.rebind(`SELECT f.id, f.ts_utc, f.tf, f.target, f.direction, f.confidence, f.raw_score,
		f.expires_at_utc, COALESCE(f.drivers_json,'{}') AS drivers_json, COALESCE(f.rationale,'') AS rationale
		FROM forecasts f LEFT JOIN forecast_scores fs ON fs.forecast_id = f.id
		WHERE fs.forecast_id IS NULL AND f.expires_at_utc <= ? ORDER BY f.expires_at_utc ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, FormatTS(now)); err != nil {
		return nil, fmt.Errorf("unscored expired: %w", err)
	}
	out := make([]models.Forecast, 0, len(rows))
	for _, r := range rows {
		f, err := r.toForecast()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// InsertScore appends a forecast score exactly once; a second insert
// for the same forecast is a silent no-op.
func (s *Store) InsertScore(ctx context.Context, sc models.ForecastScore) error {
	q := s.rebind(`INSERT INTO forecast_scores (forecast_id, realized_return, hit, brier_component, scored_at_utc)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (forecast_id) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, q, sc.ForecastID, sc.RealizedReturn, sc.Hit, sc.Brier, FormatTS(sc.ScoredAt)); err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// ScoredForecast joins a forecast with its realized score.
type ScoredForecast struct {
	Forecast models.Forecast
	Score    models.ForecastScore
}

// ListScoredSince returns scored forecasts for tf issued at or after
// since, oldest first. An empty tf matches all timeframes.
func (s *Store) ListScoredSince(ctx context.Context, tf string, since time.Time) ([]ScoredForecast, error) {
	type joined struct {
		forecastRow
		RealizedReturn float64 `db:"realized_return"`
		Hit            int     `db:"hit"`
		Brier          float64 `db:"brier_component"`
		ScoredAt       string  `db:"scored_at_utc"`
	}
	query := `SELECT f.id, f.ts_utc, f.tf, f.target, f.direction, f.confidence, f.raw_score,
		f.expires_at_utc, COALESCE(f.drivers_json,'{}') AS drivers_json, COALESCE(f.rationale,'') AS rationale,
		fs.realized_return, fs.hit, fs.brier_component, fs.scored_at_utc
		FROM forecasts f JOIN forecast_scores fs ON fs.forecast_id = f.id
		WHERE f.ts_utc >= ?`
	args := []interface{}{FormatTS(since)}
	if tf != "" {
		query += ` AND f.tf = ?`
		args = append(args, tf)
	}
	query += ` ORDER BY f.ts_utc ASC`

	var rows []joined
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list scored: %w", err)
	}
	out := make([]ScoredForecast, 0, len(rows))
	for _, r := range rows {
		f, err := r.toForecast()
		if err != nil {
			return nil, err
		}
		scoredAt, err := ParseTS(r.ScoredAt)
		if err != nil {
			return nil, fmt.Errorf("parse scored_at %q: %w", r.ScoredAt, err)
		}
		out = append(out, ScoredForecast{
			Forecast: f,
			Score: models.ForecastScore{
				ForecastID:     f.ID,
				RealizedReturn: r.RealizedReturn,
				Hit:            r.Hit,
				Brier:          r.Brier,
				ScoredAt:       scoredAt,
			},
		})
	}
	return out, nil
}

func (r forecastRow) toForecast() (models.Forecast, error) {
	ts, err := ParseTS(r.TS)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("parse forecast ts %q: %w", r.TS, err)
	}
	exp, err := ParseTS(r.ExpiresAt)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("parse forecast expiry %q: %w", r.ExpiresAt, err)
	}
	var drivers forecastDrivers
	_ = json.Unmarshal([]byte(r.DriversJSON), &drivers)
	return models.Forecast{
		ID:            r.ID,
		TS:            ts,
		TF:            r.TF,
		Target:        r.Target,
		Direction:     models.Direction(r.Direction),
		Confidence:    r.Confidence,
		RawScore:      r.RawScore,
		ExpiresAt:     exp,
		MarketDrivers: drivers.Market,
		NewsDrivers:   drivers.News,
		Rationale:     r.Rationale,
	}, nil
}
