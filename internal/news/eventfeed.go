package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sawpanic/intelrun/internal/models"
	"github.com/sawpanic/intelrun/internal/providers"
)

const (
	eventsPerCategory = 10
	eventFeedMaxTotal = 40
	eventTimeBucket   = 2 * time.Hour
)

// eventCategoryQueries drive the dedicated per-category feed fetches.
var eventCategoryQueries = map[models.EventCategory]string{
	models.CatRegional: `("middle east" OR "europe" OR "turkey" OR "taiwan") (conflict OR sanctions OR election OR energy)`,
	models.CatCompany:  `(earnings OR acquisition OR guidance OR lawsuit) (nvidia OR apple OR microsoft OR tesla OR "big tech")`,
	models.CatSector:   `("oil prices" OR semiconductor OR banking OR crypto OR defense) (outlook OR regulation OR supply)`,
	models.CatPersonal: `(powell OR lagarde OR erdogan OR zelensky OR putin OR "central bank governor")`,
}

// categoryOrder fixes iteration order for deterministic output.
var categoryOrder = []models.EventCategory{
	models.CatRegional, models.CatCompany, models.CatSector, models.CatPersonal,
}

// BuildEventFeed runs the per-category queries against the primary
// provider and buckets the results. When the primary is rate limited,
// the feed is synthesized from already-fetched news items so the
// endpoint still returns data.
func (e *Engine) BuildEventFeed(ctx context.Context, timespan string, wl Watchlist, fallback []models.NewsItem) (models.EventFeed, []string) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.EventFeedBudget)
	defer cancel()

	if wl.IsEmpty() {
		wl = DefaultWatchlist()
	}
	now := e.now()
	feed := models.EventFeed{Categories: make(map[models.EventCategory][]models.EventItem)}
	var notes []string

	// Without a primary searcher the feed is synthesized from whatever
	// the caller already fetched.
	if e.searcher == nil {
		notes = append(notes, "gdelt_disabled")
		if len(fallback) > 0 {
			synth, synthNotes := e.synthesizeFeed(fallback)
			feed = synth
			notes = append(notes, synthNotes...)
		}
		feed.Total = trimFeed(&feed, eventFeedMaxTotal)
		if feed.Total == 0 {
			notes = append(notes, "eventfeed_empty")
		}
		return feed, notes
	}

	rateLimited := false
	for _, cat := range categoryOrder {
		if ctx.Err() != nil {
			notes = append(notes, "eventfeed_budget_exceeded")
			break
		}
		if rateLimited {
			break
		}
		res := e.searchCategory(ctx, cat, timespan)
		if !res.OK {
			if res.Kind != providers.ErrNone {
				notes = append(notes, res.Note("gdelt"))
			}
			if res.Kind == providers.ErrRateLimited {
				rateLimited = true
			}
			continue
		}
		items := res.Data
		for i := range items {
			items[i].Category = string(cat)
			annotateItem(&items[i], wl, now, false, rankProfiles["default"])
		}
		items = Dedup(items, e.opts.DedupSimilarity)
		sortRanked(items)
		items = applyDomainSoftCap(items, e.opts.DomainSoftCap)
		feed.Categories[cat] = clusterEvents(items, cat, eventsPerCategory)
	}

	if rateLimited && len(fallback) > 0 {
		synth, synthNotes := e.synthesizeFeed(fallback)
		notes = append(notes, synthNotes...)
		for cat, items := range synth.Categories {
			if len(feed.Categories[cat]) == 0 {
				feed.Categories[cat] = items
			}
		}
	}

	feed.Total = trimFeed(&feed, eventFeedMaxTotal)
	if feed.Total == 0 {
		notes = append(notes, "eventfeed_empty")
	}
	return feed, notes
}

func (e *Engine) searchCategory(ctx context.Context, cat models.EventCategory, timespan string) providers.Result[[]models.NewsItem] {
	q, ok := eventCategoryQueries[cat]
	if !ok {
		return providers.Fail[[]models.NewsItem](providers.ErrEmpty, "unknown_category", 0)
	}
	out, err := e.breaker.Execute(func() (interface{}, error) {
		res := e.searcher.SearchNews(ctx, q, timespan, 30)
		if res.Kind == providers.ErrRateLimited {
			return res, errRateLimited
		}
		return res, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return providers.Fail[[]models.NewsItem](providers.ErrRateLimited, "circuit_open", 0)
	}
	return out.(providers.Result[[]models.NewsItem])
}

// synthesizeFeed rebuilds a feed purely from already-annotated items.
func (e *Engine) synthesizeFeed(items []models.NewsItem) (models.EventFeed, []string) {
	feed := models.EventFeed{Categories: make(map[models.EventCategory][]models.EventItem)}
	buckets := make(map[models.EventCategory][]models.NewsItem)
	for _, item := range items {
		cat := categorize(item)
		buckets[cat] = append(buckets[cat], item)
	}
	for _, cat := range categoryOrder {
		group := buckets[cat]
		sortRanked(group)
		feed.Categories[cat] = clusterEvents(group, cat, eventsPerCategory)
	}
	return feed, []string{"eventfeed_synthesized_from_news"}
}

// categorize maps an annotated item onto a feed category.
func categorize(item models.NewsItem) models.EventCategory {
	switch {
	case item.PersonEvent != nil:
		return models.CatPersonal
	case item.Scope == models.ScopeCompany:
		return models.CatCompany
	case item.Scope == models.ScopeGeopolitics || len(item.Countries) > 0:
		return models.CatRegional
	default:
		return models.CatSector
	}
}

// clusterEvents folds items published in the same time bucket with the
// same leading entities into one event, then takes the top-k.
func clusterEvents(items []models.NewsItem, cat models.EventCategory, topK int) []models.EventItem {
	type key struct {
		bucket int64
		ents   string
	}
	seen := make(map[key]bool)
	var events []models.EventItem
	for _, item := range items {
		k := key{ents: entityKey(item.Entities)}
		if item.PublishedAt != nil {
			k.bucket = item.PublishedAt.Truncate(eventTimeBucket).Unix()
		}
		if seen[k] && k.ents != "~none" {
			continue
		}
		seen[k] = true
		events = append(events, toEventItem(item, cat))
		if len(events) >= topK {
			break
		}
	}
	return events
}

func toEventItem(item models.NewsItem, cat models.EventCategory) models.EventItem {
	ev := models.EventItem{
		Title:        item.Title,
		URL:          item.URL,
		SourceDomain: item.SourceDomain,
		PublishedAt:  item.PublishedAt,
		Category:     cat,
		Entities:     item.Entities,
		Confidence:   models.Clip100(item.QualityScore),
		Score:        item.FinalRankScore,
	}
	for _, s := range item.SectorImpacts {
		ev.ImpactedAssets = appendUnique(ev.ImpactedAssets, s.Sector)
	}
	if item.ExpectedDir != "" {
		ev.MarketReaction = fmt.Sprintf("expected_%s", strings.ToLower(item.ExpectedDir))
	}
	return ev
}

// trimFeed enforces the global cap by shaving the weakest category
// tails round-robin, returning the final total.
func trimFeed(feed *models.EventFeed, maxTotal int) int {
	total := 0
	for _, items := range feed.Categories {
		total += len(items)
	}
	for total > maxTotal {
		// Drop one from the category with the lowest tail score.
		worstCat := models.EventCategory("")
		worstScore := 0.0
		for _, cat := range categoryOrder {
			items := feed.Categories[cat]
			if len(items) == 0 {
				continue
			}
			tail := items[len(items)-1].Score
			if worstCat == "" || tail < worstScore {
				worstCat, worstScore = cat, tail
			}
		}
		if worstCat == "" {
			break
		}
		items := feed.Categories[worstCat]
		feed.Categories[worstCat] = items[:len(items)-1]
		total--
	}
	return total
}
