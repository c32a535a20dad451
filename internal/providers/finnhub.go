package providers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/models"
)

// FinnhubClient serves two roles: company news for the extras ladder
// and quotes for the router.
type FinnhubClient struct {
	http    *HTTPClient
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewFinnhubClient builds the Finnhub adapter. An empty key makes every
// call fail with ErrMissingKey instead of burning a network round trip.
func NewFinnhubClient(http *HTTPClient, apiKey string, log zerolog.Logger) *FinnhubClient {
	return &FinnhubClient{
		http:    http,
		baseURL: "https://finnhub.io/api/v1",
		apiKey:  apiKey,
		log:     log.With().Str("provider", "finnhub").Logger(),
	}
}

// SetBaseURL points the client at a different endpoint (tests).
func (f *FinnhubClient) SetBaseURL(u string) { f.baseURL = u }

// Name implements the quote provider interface.
func (f *FinnhubClient) Name() string { return "finnhub" }

type finnhubNewsItem struct {
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	Datetime int64  `json:"datetime"` // unix seconds
}

// CompanyNews fetches recent company news for one ticker.
func (f *FinnhubClient) CompanyNews(ctx context.Context, ticker string, from, to time.Time) Result[[]models.NewsItem] {
	if f.apiKey == "" {
		return Fail[[]models.NewsItem](ErrMissingKey, "finnhub", 0)
	}
	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("from", from.UTC().Format("2006-01-02"))
	q.Set("to", to.UTC().Format("2006-01-02"))
	q.Set("token", f.apiKey)

	var raw []finnhubNewsItem
	latency, kind, detail := f.http.GetJSON(ctx, "finnhub", f.baseURL+"/company-news?"+q.Encode(), &raw)
	if kind != ErrNone {
		return Fail[[]models.NewsItem](kind, detail, latency)
	}
	items := make([]models.NewsItem, 0, len(raw))
	for _, n := range raw {
		if n.Headline == "" || n.URL == "" {
			continue
		}
		item := models.NewsItem{
			Title:        strings.TrimSpace(n.Headline),
			URL:          n.URL,
			SourceDomain: strings.ToLower(n.Source),
			Description:  n.Summary,
			Tags:         []string{"COMPANY", ticker},
		}
		if n.Datetime > 0 {
			ts := time.Unix(n.Datetime, 0).UTC()
			item.PublishedAt = &ts
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return Fail[[]models.NewsItem](ErrEmpty, "no_company_news", latency)
	}
	return Ok(items, latency)
}

type finnhubQuote struct {
	Current   float64 `json:"c"`
	ChangePct float64 `json:"dp"`
	TS        int64   `json:"t"`
}

// GetQuote resolves a current quote for symbol.
func (f *FinnhubClient) GetQuote(ctx context.Context, symbol string) Result[models.Quote] {
	if f.apiKey == "" {
		return Fail[models.Quote](ErrMissingKey, "finnhub", 0)
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("token", f.apiKey)

	var raw finnhubQuote
	latency, kind, detail := f.http.GetJSON(ctx, "finnhub", f.baseURL+"/quote?"+q.Encode(), &raw)
	if kind != ErrNone {
		return Fail[models.Quote](kind, detail, latency)
	}
	if raw.Current == 0 {
		return Fail[models.Quote](ErrMissingPrice, symbol, latency)
	}
	ts := time.Now().UTC()
	if raw.TS > 0 {
		ts = time.Unix(raw.TS, 0).UTC()
	}
	change := raw.ChangePct
	return Ok(models.Quote{
		Price:     raw.Current,
		ChangePct: &change,
		TS:        ts,
		Currency:  "USD",
		Meta:      models.QuoteMeta{Source: "finnhub"},
	}, latency)
}

type finnhubSearch struct {
	Result []struct {
		Symbol string `json:"symbol"`
	} `json:"result"`
}

// Search resolves a free-form symbol to a provider-native one.
func (f *FinnhubClient) Search(ctx context.Context, symbol string) (string, bool) {
	if f.apiKey == "" {
		return "", false
	}
	q := url.Values{}
	q.Set("q", symbol)
	q.Set("token", f.apiKey)

	var raw finnhubSearch
	_, kind, _ := f.http.GetJSON(ctx, "finnhub", f.baseURL+"/search?"+q.Encode(), &raw)
	if kind != ErrNone || len(raw.Result) == 0 {
		return "", false
	}
	return raw.Result[0].Symbol, true
}
