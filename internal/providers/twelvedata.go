package providers

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/models"
)

// TwelveDataClient is the third quote provider in the router order.
// Its free tier allows only 8 requests/minute, which the router's
// token bucket enforces locally.
type TwelveDataClient struct {
	http    *HTTPClient
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewTwelveDataClient builds the TwelveData adapter.
func NewTwelveDataClient(http *HTTPClient, apiKey string, log zerolog.Logger) *TwelveDataClient {
	return &TwelveDataClient{
		http:    http,
		baseURL: "https://api.twelvedata.com",
		apiKey:  apiKey,
		log:     log.With().Str("provider", "twelvedata").Logger(),
	}
}

// SetBaseURL points the client at a different endpoint (tests).
func (t *TwelveDataClient) SetBaseURL(u string) { t.baseURL = u }

// Name implements the quote provider interface.
func (t *TwelveDataClient) Name() string { return "twelvedata" }

type twelveDataQuote struct {
	Price         string `json:"close"`
	PercentChange string `json:"percent_change"`
	Timestamp     int64  `json:"timestamp"`
	Currency      string `json:"currency"`
	Code          int    `json:"code"`    // set on API-level errors
	Message       string `json:"message"` // set on API-level errors
}

// GetQuote resolves a current quote for symbol.
func (t *TwelveDataClient) GetQuote(ctx context.Context, symbol string) Result[models.Quote] {
	if t.apiKey == "" {
		return Fail[models.Quote](ErrMissingKey, "twelvedata", 0)
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("apikey", t.apiKey)

	var raw twelveDataQuote
	latency, kind, detail := t.http.GetJSON(ctx, "twelvedata", t.baseURL+"/quote?"+q.Encode(), &raw)
	if kind != ErrNone {
		return Fail[models.Quote](kind, detail, latency)
	}
	// TwelveData reports rate limits in-body with HTTP 200.
	if raw.Code == 429 {
		return Fail[models.Quote](ErrRateLimited, raw.Message, latency)
	}
	if raw.Code >= 400 {
		return Fail[models.Quote](ErrHTTP4xx, raw.Message, latency)
	}
	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil || price == 0 {
		return Fail[models.Quote](ErrMissingPrice, symbol, latency)
	}
	ts := time.Now().UTC()
	if raw.Timestamp > 0 {
		ts = time.Unix(raw.Timestamp, 0).UTC()
	}
	quote := models.Quote{
		Price:    price,
		TS:       ts,
		Currency: raw.Currency,
		Meta:     models.QuoteMeta{Source: "twelvedata"},
	}
	if change, err := strconv.ParseFloat(raw.PercentChange, 64); err == nil {
		quote.ChangePct = &change
	}
	return Ok(quote, latency)
}

type twelveDataSearch struct {
	Data []struct {
		Symbol string `json:"symbol"`
	} `json:"data"`
}

// Search resolves a free-form symbol to a provider-native one.
func (t *TwelveDataClient) Search(ctx context.Context, symbol string) (string, bool) {
	if t.apiKey == "" {
		return "", false
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("apikey", t.apiKey)

	var raw twelveDataSearch
	_, kind, _ := t.http.GetJSON(ctx, "twelvedata", t.baseURL+"/symbol_search?"+q.Encode(), &raw)
	if kind != ErrNone || len(raw.Data) == 0 {
		return "", false
	}
	return raw.Data[0].Symbol, true
}
