package providers

import (
	"context"
	"strconv"
	"strings"
)

const fearGreedURL = "https://api.alternative.me/fng/?limit=1"

// FearGreedClient reads the keyless crypto fear & greed index.
type FearGreedClient struct {
	http *HTTPClient
	url  string
}

func NewFearGreedClient(http *HTTPClient) *FearGreedClient {
	return &FearGreedClient{http: http, url: fearGreedURL}
}

// SetURL overrides the endpoint, used by tests.
func (c *FearGreedClient) SetURL(u string) { c.url = u }

func (c *FearGreedClient) Name() string { return "feargreed" }

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// Get returns the current index value on the 0..100 scale.
func (c *FearGreedClient) Get(ctx context.Context) Result[float64] {
	var out fngResponse
	latency, kind, detail := c.http.GetJSON(ctx, c.Name(), c.url, &out)
	if kind != ErrNone {
		return Fail[float64](kind, detail, latency)
	}
	if len(out.Data) == 0 {
		return Fail[float64](ErrEmpty, "no index data", latency)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(out.Data[0].Value), 64)
	if err != nil || v <= 0 {
		return Fail[float64](ErrSchema, "unparseable index value", latency)
	}
	return Ok(v, latency)
}
