package pipeline

import (
	"context"
	"time"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/news"
)

const lastIngestKey = "news_last_ingest"

// BuildCluster converts a ranked, annotated NewsItem into its persisted
// event form. Deterministic: the cluster id doubles as the event id.
func BuildCluster(item *models.NewsItem, now time.Time) models.EventCluster {
	ts := now
	if item.PublishedAt != nil {
		ts = *item.PublishedAt
	}
	cl := models.EventCluster{
		EventID:     item.DedupClusterID,
		ClusterID:   item.DedupClusterID,
		TS:          ts.UTC(),
		Source:      item.SourceDomain,
		SourceTier:  news.SourceTierOf(item.SourceDomain),
		Headline:    item.Title,
		Body:        item.Description,
		URL:         item.CanonicalURL,
		Tags:        item.Tags,
		DedupHash:   item.DedupClusterID,
		Credibility: item.QualityScore / 100,
		Severity:    item.ImpactPotential / 100,
		Impact:      item.ImpactPotential,
		EventType:   item.EventType,
		Category:    item.Category,
		Direction:   models.ParseDirection(item.ExpectedDir),
		Targets:     news.RelevanceTargets(item),
	}
	return cl
}

// ingestNews persists ranked items as clusters, honoring the ingest
// cadence checkpoint and the retention purge. Write failures degrade to
// notes; ingest never fails the request.
func (o *Orchestrator) ingestNews(ctx context.Context, items []models.NewsItem, now time.Time) []string {
	var notes []string

	interval := time.Duration(o.cfg.NewsIngestIntervalMinutes) * time.Minute
	last, ok, err := o.store.KVGetTime(ctx, lastIngestKey)
	if err == nil && ok && now.Sub(last) < interval {
		return nil
	}

	written := 0
	for i := range items {
		if items[i].DedupClusterID == "" {
			continue
		}
		cl := BuildCluster(&items[i], now)
		if err := o.store.UpsertCluster(ctx, cl); err != nil {
			o.log.Warn().Err(err).Str("cluster", cl.ClusterID).Msg("cluster upsert failed")
			notes = append(notes, "store_error:upsert_cluster")
			continue
		}
		written++
	}
	if written > 0 {
		if err := o.store.KVSetTime(ctx, lastIngestKey, now); err != nil {
			notes = append(notes, "store_error:ingest_checkpoint")
		}
	}

	cutoff := now.AddDate(0, 0, -o.cfg.RetentionDays)
	if _, err := o.store.PurgeBefore(ctx, cutoff); err != nil {
		notes = append(notes, "store_error:purge")
	}
	return notes
}
