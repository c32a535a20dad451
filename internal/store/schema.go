package store

// Schema DDL is shared between dialects: TEXT timestamps, REAL scores,
// ON CONFLICT upserts (supported by both sqlite and postgres).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		event_id    TEXT PRIMARY KEY,
		ts_utc      TEXT NOT NULL,
		source      TEXT NOT NULL,
		source_tier TEXT NOT NULL,
		headline    TEXT NOT NULL,
		body        TEXT,
		url         TEXT,
		tags_json   TEXT,
		dedup_hash  TEXT,
		cluster_id  TEXT NOT NULL,
		credibility REAL NOT NULL DEFAULT 0,
		severity    REAL NOT NULL DEFAULT 0,
		impact      REAL NOT NULL DEFAULT 0,
		event_type  TEXT,
		category    TEXT,
		direction   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts_utc)`,
	`CREATE INDEX IF NOT EXISTS idx_events_cluster ON events (cluster_id)`,

	`CREATE TABLE IF NOT EXISTS event_asset_map (
		event_id        TEXT NOT NULL,
		asset_or_sector TEXT NOT NULL,
		relevance_score REAL NOT NULL,
		PRIMARY KEY (event_id, asset_or_sector)
	)`,

	`CREATE TABLE IF NOT EXISTS price_bars (
		asset  TEXT NOT NULL,
		ts_utc TEXT NOT NULL,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (asset, ts_utc)
	)`,

	`CREATE TABLE IF NOT EXISTS event_impact (
		cluster_id   TEXT NOT NULL,
		target       TEXT NOT NULL,
		tf           TEXT NOT NULL,
		realized_ret REAL,
		realized_z   REAL,
		computed_at  TEXT NOT NULL,
		PRIMARY KEY (cluster_id, target, tf)
	)`,

	`CREATE TABLE IF NOT EXISTS forecasts (
		id             TEXT PRIMARY KEY,
		ts_utc         TEXT NOT NULL,
		tf             TEXT NOT NULL,
		target         TEXT NOT NULL,
		direction      INTEGER NOT NULL,
		confidence     REAL NOT NULL,
		raw_score      REAL NOT NULL,
		expires_at_utc TEXT NOT NULL,
		drivers_json   TEXT,
		rationale      TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_forecasts_pair ON forecasts (tf, target, ts_utc)`,

	`CREATE TABLE IF NOT EXISTS forecast_scores (
		forecast_id     TEXT PRIMARY KEY,
		realized_return REAL NOT NULL,
		hit             INTEGER NOT NULL,
		brier_component REAL NOT NULL,
		scored_at_utc   TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS kv_store (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL,
		updated_at_utc TEXT NOT NULL
	)`,
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
