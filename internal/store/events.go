package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
)

type eventRow struct {
	EventID     string  `db:"event_id"`
	TS          string  `db:"ts_utc"`
	Source      string  `db:"source"`
	SourceTier  string  `db:"source_tier"`
	Headline    string  `db:"headline"`
	Body        string  `db:"body"`
	URL         string  `db:"url"`
	TagsJSON    string  `db:"tags_json"`
	DedupHash   string  `db:"dedup_hash"`
	ClusterID   string  `db:"cluster_id"`
	Credibility float64 `db:"credibility"`
	Severity    float64 `db:"severity"`
	Impact      float64 `db:"impact"`
	EventType   string  `db:"event_type"`
	Category    string  `db:"category"`
	Direction   int     `db:"direction"`
}

// UpsertCluster persists one event cluster and its target mappings.
// Re-ingesting the same event_id updates scores in place and never
// duplicates rows.
func (s *Store) UpsertCluster(ctx context.Context, ev models.EventCluster) error {
	tags, err := json.Marshal(ev.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert cluster: %w", err)
	}
	defer tx.Rollback()

	q := s.rebind(`INSERT INTO events
		(event_id, ts_utc, source, source_tier, headline, body, url, tags_json,
		 dedup_hash, cluster_id, credibility, severity, impact, event_type, category, direction)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE SET
		 credibility = excluded.credibility,
		 severity    = excluded.severity,
		 impact      = excluded.impact,
		 direction   = excluded.direction,
		 tags_json   = excluded.tags_json`)
	if _, err := tx.ExecContext(ctx, q,
		ev.EventID, FormatTS(ev.TS), ev.Source, string(ev.SourceTier), ev.Headline,
		ev.Body, ev.URL, string(tags), ev.DedupHash, ev.ClusterID,
		ev.Credibility, ev.Severity, ev.Impact, ev.EventType, ev.Category, int(ev.Direction)); err != nil {
		return fmt.Errorf("upsert event %s: %w", ev.EventID, err)
	}

	mq := s.rebind(`INSERT INTO event_asset_map (event_id, asset_or_sector, relevance_score)
		VALUES (?, ?, ?)
		ON CONFLICT (event_id, asset_or_sector) DO UPDATE SET relevance_score = excluded.relevance_score`)
	for _, t := range ev.Targets {
		if _, err := tx.ExecContext(ctx, mq, ev.EventID, t.Target, t.Relevance); err != nil {
			return fmt.Errorf("upsert target %s/%s: %w", ev.EventID, t.Target, err)
		}
	}
	return tx.Commit()
}

// ListClustersSince returns clusters with ts >= since, newest first,
// with their target mappings attached.
func (s *Store) ListClustersSince(ctx context.Context, since time.Time) ([]models.EventCluster, error) {
	var rows []eventRow
	q := s.rebind(`SELECT event_id, ts_utc, source, source_tier, headline,
		COALESCE(body,'') AS body, COALESCE(url,'') AS url, COALESCE(tags_json,'[]') AS tags_json,
		COALESCE(dedup_hash,'') AS dedup_hash, cluster_id, credibility, severity, impact,
		COALESCE(event_type,'') AS event_type, COALESCE(category,'') AS category, direction
		FROM events WHERE ts_utc >= ? ORDER BY ts_utc DESC`)
	if err := s.db.SelectContext(ctx, &rows, q, FormatTS(since)); err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}

	out := make([]models.EventCluster, 0, len(rows))
	for _, r := range rows {
		ev, err := s.hydrate(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) hydrate(ctx context.Context, r eventRow) (models.EventCluster, error) {
	ts, err := ParseTS(r.TS)
	if err != nil {
		return models.EventCluster{}, fmt.Errorf("parse event ts %q: %w", r.TS, err)
	}
	var tags []string
	_ = json.Unmarshal([]byte(r.TagsJSON), &tags)

	ev := models.EventCluster{
		EventID:     r.EventID,
		ClusterID:   r.ClusterID,
		TS:          ts,
		Source:      r.Source,
		SourceTier:  models.SourceTier(r.SourceTier),
		Headline:    r.Headline,
		Body:        r.Body,
		URL:         r.URL,
		Tags:        tags,
		DedupHash:   r.DedupHash,
		Credibility: r.Credibility,
		Severity:    r.Severity,
		Impact:      r.Impact,
		EventType:   r.EventType,
		Category:    r.Category,
		Direction:   models.Direction(r.Direction),
	}

	type mapRow struct {
		Target    string  `db:"asset_or_sector"`
		Relevance float64 `db:"relevance_score"`
	}
	var maps []mapRow
	mq := s.rebind(`SELECT asset_or_sector, relevance_score FROM event_asset_map
		WHERE event_id = ? ORDER BY asset_or_sector`)
	if err := s.db.SelectContext(ctx, &maps, mq, r.EventID); err != nil && err != sql.ErrNoRows {
		return models.EventCluster{}, fmt.Errorf("load targets %s: %w", r.EventID, err)
	}
	for _, m := range maps {
		ev.Targets = append(ev.Targets, models.TargetRelevance{Target: m.Target, Relevance: m.Relevance})
	}
	return ev, nil
}

// PurgeBefore removes events, bars, impacts, forecasts and scores older
// than the cutoff. Returns total rows removed.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := FormatTS(cutoff)
	var total int64
	stmts := []string{
		`DELETE FROM event_asset_map WHERE event_id IN (SELECT event_id FROM events WHERE ts_utc < ?)`,
		`DELETE FROM event_impact WHERE cluster_id IN (SELECT cluster_id FROM events WHERE ts_utc < ?)`,
		`DELETE FROM events WHERE ts_utc < ?`,
		`DELETE FROM price_bars WHERE ts_utc < ?`,
		`DELETE FROM forecast_scores WHERE forecast_id IN (SELECT id FROM forecasts WHERE ts_utc < ?)`,
		`DELETE FROM forecasts WHERE ts_utc < ?`,
	}
	for _, stmt := range stmts {
		res, err := s.db.ExecContext(ctx, s.rebind(stmt), ts)
		if err != nil {
			return total, fmt.Errorf("purge: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
