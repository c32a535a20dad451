package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/models"
)

// GdeltClient is the primary news-search provider. The DOC API is
// keyless; rate-limit responses still surface as ErrRateLimited so the
// engine can open its 60 s circuit.
type GdeltClient struct {
	http    *HTTPClient
	baseURL string
	log     zerolog.Logger
}

// NewGdeltClient builds the GDELT adapter. baseURL is overridable for tests.
func NewGdeltClient(http *HTTPClient, log zerolog.Logger) *GdeltClient {
	return &GdeltClient{
		http:    http,
		baseURL: "https://api.gdeltproject.org/api/v2/doc/doc",
		log:     log.With().Str("provider", "gdelt").Logger(),
	}
}

// SetBaseURL points the client at a different endpoint (tests).
func (g *GdeltClient) SetBaseURL(u string) { g.baseURL = u }

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

type gdeltArticle struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	Language string `json:"language"`
	SeenDate string `json:"seendate"` // 20250101T120000Z
}

// SearchNews runs one query against the DOC API for the given timespan
// ("1h", "6h", "24h", "7d", "30d") and returns normalized items.
func (g *GdeltClient) SearchNews(ctx context.Context, query, timespan string, maxRecords int) Result[[]models.NewsItem] {
	q := url.Values{}
	q.Set("query", query)
	q.Set("mode", "ArtList")
	q.Set("format", "json")
	q.Set("timespan", timespan)
	q.Set("maxrecords", fmt.Sprintf("%d", maxRecords))
	q.Set("sort", "DateDesc")

	var resp gdeltResponse
	latency, kind, detail := g.http.GetJSON(ctx, "gdelt", g.baseURL+"?"+q.Encode(), &resp)
	if kind != ErrNone {
		return Fail[[]models.NewsItem](kind, detail, latency)
	}
	if len(resp.Articles) == 0 {
		return Fail[[]models.NewsItem](ErrEmpty, "no_articles", latency)
	}

	items := make([]models.NewsItem, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		item := models.NewsItem{
			Title:        strings.TrimSpace(a.Title),
			URL:          a.URL,
			SourceDomain: strings.ToLower(a.Domain),
		}
		if ts, err := time.Parse("20060102T150405Z", a.SeenDate); err == nil {
			utc := ts.UTC()
			item.PublishedAt = &utc
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return Fail[[]models.NewsItem](ErrEmpty, "no_usable_articles", latency)
	}
	return Ok(items, latency)
}
