package providers

import (
	"context"
	"fmt"
	"strings"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// GlobalMarket is the keyless CoinGecko global read used to seed the
// market snapshot.
type GlobalMarket struct {
	TotalMcapUSD   float64
	BTCDominance   float64
	ETHDominance   float64
	StableDom      float64
	McapChange24h  float64
}

// CoingeckoClient hits the free CoinGecko endpoints.
type CoingeckoClient struct {
	http    *HTTPClient
	baseURL string
}

func NewCoingeckoClient(http *HTTPClient) *CoingeckoClient {
	return &CoingeckoClient{http: http, baseURL: coingeckoBaseURL}
}

// SetBaseURL overrides the endpoint, used by tests.
func (c *CoingeckoClient) SetBaseURL(u string) { c.baseURL = strings.TrimSuffix(u, "/") }

func (c *CoingeckoClient) Name() string { return "coingecko" }

type cgGlobalResponse struct {
	Data struct {
		TotalMarketCap  map[string]float64 `json:"total_market_cap"`
		MarketCapPct    map[string]float64 `json:"market_cap_percentage"`
		McapChange24h   float64            `json:"market_cap_change_percentage_24h_usd"`
	} `json:"data"`
}

// GetGlobal fetches total market cap and dominance percentages. The
// stablecoin dominance is approximated by the USDT+USDC shares.
func (c *CoingeckoClient) GetGlobal(ctx context.Context) Result[GlobalMarket] {
	var out cgGlobalResponse
	latency, kind, detail := c.http.GetJSON(ctx, c.Name(), c.baseURL+"/global", &out)
	if kind != ErrNone {
		return Fail[GlobalMarket](kind, detail, latency)
	}
	g := GlobalMarket{
		TotalMcapUSD:  out.Data.TotalMarketCap["usd"],
		BTCDominance:  out.Data.MarketCapPct["btc"],
		ETHDominance:  out.Data.MarketCapPct["eth"],
		StableDom:     out.Data.MarketCapPct["usdt"] + out.Data.MarketCapPct["usdc"],
		McapChange24h: out.Data.McapChange24h,
	}
	if g.TotalMcapUSD <= 0 {
		return Fail[GlobalMarket](ErrEmpty, "no market cap data", latency)
	}
	return Ok(g, latency)
}

// FundingSnapshot is a coarse derivatives read from the keyless
// futures endpoints.
type FundingSnapshot struct {
	FundingZ float64
	OIDelta  float64
}

type cgDerivative struct {
	Symbol      string  `json:"symbol"`
	FundingRate float64 `json:"funding_rate"`
	OpenInterest float64 `json:"open_interest"`
}

// GetFunding aggregates BTC perp funding rates into a crude z-ish
// score. Best-effort: failures degrade to a zero snapshot upstream.
func (c *CoingeckoClient) GetFunding(ctx context.Context) Result[FundingSnapshot] {
	var rows []cgDerivative
	url := fmt.Sprintf("%s/derivatives?include_tickers=unexpired", c.baseURL)
	latency, kind, detail := c.http.GetJSON(ctx, c.Name(), url, &rows)
	if kind != ErrNone {
		return Fail[FundingSnapshot](kind, detail, latency)
	}
	sum, n := 0.0, 0
	for _, r := range rows {
		if !strings.HasPrefix(strings.ToUpper(r.Symbol), "BTC") {
			continue
		}
		sum += r.FundingRate
		n++
	}
	if n == 0 {
		return Fail[FundingSnapshot](ErrEmpty, "no btc derivatives", latency)
	}
	// Funding rates cluster near 0.01%/8h; scale the mean into a
	// rough z against that baseline.
	mean := sum / float64(n)
	return Ok(FundingSnapshot{FundingZ: (mean - 0.01) / 0.02}, latency)
}
