package providers

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/models"
)

// FeedClient pulls syndication (RSS 2.0) feeds used by the news
// extras ladder: press-release wires and regional outlets.
type FeedClient struct {
	http *HTTPClient
	log  zerolog.Logger
}

// NewFeedClient builds the syndication feed adapter.
func NewFeedClient(http *HTTPClient, log zerolog.Logger) *FeedClient {
	return &FeedClient{http: http, log: log.With().Str("provider", "feeds").Logger()}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// Fetch pulls one feed URL and normalizes its items. The source domain
// is derived from each item link, falling back to the feed host.
func (f *FeedClient) Fetch(ctx context.Context, feedURL string) Result[[]models.NewsItem] {
	body, latency, kind, detail := f.http.GetBody(ctx, "feeds", feedURL)
	if kind != ErrNone {
		return Fail[[]models.NewsItem](kind, detail, latency)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return Fail[[]models.NewsItem](ErrSchema, err.Error(), latency)
	}

	feedHost := hostOf(feedURL)
	items := make([]models.NewsItem, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		if title == "" || link == "" {
			continue
		}
		item := models.NewsItem{
			Title:        title,
			URL:          link,
			SourceDomain: hostOrDefault(link, feedHost),
			Description:  strings.TrimSpace(it.Description),
			Tags:         []string{"FEED"},
		}
		if ts, ok := parsePubDate(it.PubDate); ok {
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return Fail[[]models.NewsItem](ErrEmpty, "no_feed_items", latency)
	}
	return Ok(items, latency)
}

func parsePubDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if ts, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func hostOrDefault(raw, def string) string {
	if h := hostOf(raw); h != "" {
		return h
	}
	return def
}
