package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/models"
)

// YahooClient resolves quotes and candle history through the public
// chart API. It is the first provider in the router's default order.
type YahooClient struct {
	http    *HTTPClient
	baseURL string
	log     zerolog.Logger
}

// NewYahooClient builds the Yahoo adapter.
func NewYahooClient(http *HTTPClient, log zerolog.Logger) *YahooClient {
	return &YahooClient{
		http:    http,
		baseURL: "https://query1.finance.yahoo.com",
		log:     log.With().Str("provider", "yahoo").Logger(),
	}
}

// SetBaseURL points the client at a different endpoint (tests).
func (y *YahooClient) SetBaseURL(u string) { y.baseURL = u }

// Name implements the quote provider interface.
func (y *YahooClient) Name() string { return "yahoo" }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
				Currency           string  `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetQuote resolves a current quote for symbol via the chart meta block.
func (y *YahooClient) GetQuote(ctx context.Context, symbol string) Result[models.Quote] {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=5m", y.baseURL, url.PathEscape(symbol))

	var raw yahooChart
	latency, kind, detail := y.http.GetJSON(ctx, "yahoo", u, &raw)
	if kind != ErrNone {
		return Fail[models.Quote](kind, detail, latency)
	}
	if raw.Chart.Error != nil {
		return Fail[models.Quote](ErrSchema, raw.Chart.Error.Code, latency)
	}
	if len(raw.Chart.Result) == 0 {
		return Fail[models.Quote](ErrEmpty, symbol, latency)
	}
	meta := raw.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return Fail[models.Quote](ErrMissingPrice, symbol, latency)
	}
	ts := time.Now().UTC()
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	quote := models.Quote{
		Price:    meta.RegularMarketPrice,
		TS:       ts,
		Currency: meta.Currency,
		Meta:     models.QuoteMeta{Source: "yahoo"},
	}
	if meta.ChartPreviousClose > 0 {
		change := (meta.RegularMarketPrice - meta.ChartPreviousClose) / meta.ChartPreviousClose * 100
		quote.ChangePct = &change
	}
	return Ok(quote, latency)
}

// Search is a no-op for Yahoo; the static symbol map covers its aliases.
func (y *YahooClient) Search(ctx context.Context, symbol string) (string, bool) {
	return "", false
}

// Chart fetches candle bars for symbol. interval and rng use Yahoo's
// own vocabulary ("15m", "1d"; "1d", "5d", "1mo").
func (y *YahooClient) Chart(ctx context.Context, symbol, interval, rng string) Result[[]models.PriceBar] {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		y.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	var raw yahooChart
	latency, kind, detail := y.http.GetJSON(ctx, "yahoo", u, &raw)
	if kind != ErrNone {
		return Fail[[]models.PriceBar](kind, detail, latency)
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return Fail[[]models.PriceBar](ErrEmpty, symbol, latency)
	}
	res := raw.Chart.Result[0]
	qs := res.Indicators.Quote[0]

	bars := make([]models.PriceBar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(qs.Close) || qs.Close[i] == 0 {
			continue
		}
		bar := models.PriceBar{
			Asset: symbol,
			TS:    time.Unix(ts, 0).UTC(),
			Close: qs.Close[i],
		}
		if i < len(qs.Open) {
			bar.Open = qs.Open[i]
		}
		if i < len(qs.High) {
			bar.High = qs.High[i]
		}
		if i < len(qs.Low) {
			bar.Low = qs.Low[i]
		}
		if i < len(qs.Volume) {
			bar.Volume = qs.Volume[i]
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return Fail[[]models.PriceBar](ErrEmpty, "no_bars", latency)
	}
	return Ok(bars, latency)
}
